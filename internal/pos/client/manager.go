package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verdant-pos/verdant-pos/internal/pos"
)

// SessionAPI is the server surface the manager drives.
type SessionAPI interface {
	GetOrCreate(ctx context.Context, registerID, locationID string, openingCash decimal.Decimal) (pos.Session, error)
	Status(ctx context.Context, sessionID string) (pos.StatusResult, error)
	Close(ctx context.Context, sessionID string) (pos.CloseResult, error)
	ProcessorActive(ctx context.Context, registerID string) (bool, error)
}

// ErrNoActiveSession is returned by operations that need a running session.
var ErrNoActiveSession = errors.New("no active session")

// LocalSession is the persisted register-side view of a session: the server
// session merged with display metadata the server does not echo back, plus
// the processor binding so payment flows skip a lookup per sale.
type LocalSession struct {
	pos.Session
	RegisterName string `json:"registerName,omitempty"`
	LocationName string `json:"locationName,omitempty"`
	HasProcessor bool   `json:"hasProcessor"`
	ProcessorID  string `json:"processorId,omitempty"`
}

// StartInput carries everything the register knows when it opens a session.
type StartInput struct {
	RegisterID   string
	LocationID   string
	RegisterName string
	LocationName string
	OpeningCash  decimal.Decimal
	HasProcessor bool
	ProcessorID  string
}

type selectedLocation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Manager keeps one register's session state in sync with the server. Local
// state is durable; the server is authoritative. A background poll detects
// sessions closed from elsewhere (another device, the reaper) and clears
// local state so the register stops selling against a dead session.
type Manager struct {
	api      SessionAPI
	store    Store
	interval time.Duration
	logger   *slog.Logger

	// OnRemoteClose runs when the poll finds the session closed server-side.
	OnRemoteClose func(sessionID string)
}

func NewManager(api SessionAPI, store Store, pollInterval time.Duration, logger *slog.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &Manager{api: api, store: store, interval: pollInterval, logger: logger}
}

// ActiveSession returns the locally persisted session, if any.
func (m *Manager) ActiveSession() (LocalSession, bool) {
	raw, ok := m.store.Get(KeyActiveSession)
	if !ok {
		return LocalSession{}, false
	}
	var sess LocalSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// Unreadable local state is as good as no state.
		return LocalSession{}, false
	}
	return sess, true
}

// ActiveSessionID returns the locally known session id, if any.
func (m *Manager) ActiveSessionID() (string, bool) {
	sess, ok := m.ActiveSession()
	if !ok {
		return "", false
	}
	return sess.ID, true
}

// StartSession binds the register to its open server session, merging in the
// display metadata and processor binding the server does not track. Repeated
// calls are safe: the server returns the same open session for the register.
func (m *Manager) StartSession(ctx context.Context, in StartInput) (LocalSession, error) {
	serverSess, err := m.api.GetOrCreate(ctx, in.RegisterID, in.LocationID, in.OpeningCash)
	if err != nil {
		return LocalSession{}, err
	}
	sess := LocalSession{
		Session:      serverSess,
		RegisterName: in.RegisterName,
		LocationName: in.LocationName,
		HasProcessor: in.HasProcessor,
		ProcessorID:  in.ProcessorID,
	}
	if err := m.persist(sess, in.RegisterID, selectedLocation{ID: in.LocationID, Name: in.LocationName}); err != nil {
		return LocalSession{}, err
	}
	m.logger.Info("session started",
		slog.String("session_id", sess.ID),
		slog.String("register_id", in.RegisterID))
	return sess, nil
}

// EndSession closes the active session and clears local state. With no
// active session it is a no-op, not an error.
func (m *Manager) EndSession(ctx context.Context) (pos.CloseResult, error) {
	sess, ok := m.ActiveSession()
	if !ok {
		return pos.CloseResult{}, nil
	}
	result, err := m.api.Close(ctx, sess.ID)
	if err != nil && !errors.Is(err, pos.ErrSessionNotFound) {
		return pos.CloseResult{}, err
	}
	m.clearLocal()
	m.logger.Info("session ended", slog.String("session_id", sess.ID))
	return result, nil
}

// RefreshProcessorStatus re-checks whether the register's bound processor
// can take card payments and folds the answer into the persisted session.
// False means fall back to cash-only. Intended to run after each
// transaction so a processor disabled mid-session is noticed.
func (m *Manager) RefreshProcessorStatus(ctx context.Context) (bool, error) {
	sess, ok := m.ActiveSession()
	if !ok {
		return false, ErrNoActiveSession
	}
	active, err := m.api.ProcessorActive(ctx, sess.RegisterID)
	if err != nil {
		return false, err
	}
	if sess.HasProcessor != active {
		sess.HasProcessor = active
		if raw, err := json.Marshal(sess); err == nil {
			if err := m.store.Set(KeyActiveSession, string(raw)); err != nil {
				m.logger.Warn("persist processor status failed", slog.String("error", err.Error()))
			}
		}
	}
	return active, nil
}

// Run polls the server until ctx is done. It is the reconciliation loop:
// local state never outlives the server session by more than one interval.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Manager) poll(ctx context.Context) {
	id, ok := m.ActiveSessionID()
	if !ok {
		return
	}
	status, err := m.api.Status(ctx, id)
	if err != nil {
		if errors.Is(err, pos.ErrSessionNotFound) {
			m.handleRemoteClose(id)
			return
		}
		// Transient server trouble: keep local state, try again next tick.
		m.logger.Warn("session poll failed", slog.String("session_id", id), slog.String("error", err.Error()))
		return
	}
	if !status.Open {
		m.handleRemoteClose(id)
	}
}

func (m *Manager) handleRemoteClose(sessionID string) {
	m.clearLocal()
	m.logger.Info("session closed remotely", slog.String("session_id", sessionID))
	if m.OnRemoteClose != nil {
		m.OnRemoteClose(sessionID)
	}
}

func (m *Manager) persist(sess LocalSession, registerID string, loc selectedLocation) error {
	rawSess, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	rawLoc, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	if err := m.store.Set(KeyActiveSession, string(rawSess)); err != nil {
		return err
	}
	if err := m.store.Set(KeyRegisterID, registerID); err != nil {
		return err
	}
	return m.store.Set(KeySelectedLocation, string(rawLoc))
}

func (m *Manager) clearLocal() {
	for _, key := range []string{KeyActiveSession, KeyRegisterID, KeySelectedLocation} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Warn("clear local state failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}
