package pos

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/verdant-pos/verdant-pos/internal/masterdata"
	"github.com/verdant-pos/verdant-pos/internal/payments"
	"github.com/verdant-pos/verdant-pos/internal/shared"
)

// SessionRepository persists sessions.
type SessionRepository interface {
	GetOrCreateOpen(ctx context.Context, vendorID, registerID, locationID, openedBy string, openingCash decimal.Decimal, processorID string) (Session, bool, error)
	Get(ctx context.Context, vendorID, sessionID string) (Session, error)
	Close(ctx context.Context, vendorID, sessionID, closedBy string, closingCash decimal.Decimal, notes string) (Session, bool, error)
	UpdateTotals(ctx context.Context, vendorID, sessionID string, salesTotal, refundsTotal decimal.Decimal) error
	ListStaleOpen(ctx context.Context, maxAge time.Duration, limit int) ([]Session, error)
}

// TransactionSource supplies the payment rows tied to a session.
type TransactionSource interface {
	ListForSession(ctx context.Context, vendorID, sessionID string) ([]payments.Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ProcessorSource answers whether a register can take card payments.
type ProcessorSource interface {
	GetProcessorForRegister(ctx context.Context, vendorID, registerID string) (masterdata.ProcessorConfig, error)
	GetProcessorForLocation(ctx context.Context, vendorID, locationID string) (masterdata.ProcessorConfig, error)
}

// Service manages register sessions. Status reads go through a short-lived
// redis cache because every client polls it on a fixed interval.
type Service struct {
	repo       SessionRepository
	txs        TransactionSource
	processors ProcessorSource
	cache      *redis.Client
	cacheTTL   time.Duration
	audit      AuditPort
	logger     *slog.Logger
	flight     singleflight.Group
}

func NewService(repo SessionRepository, txs TransactionSource, processors ProcessorSource, cache *redis.Client, cacheTTL time.Duration, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, txs: txs, processors: processors, cache: cache, cacheTTL: cacheTTL, audit: audit, logger: logger}
}

// GetOrCreate returns the register's open session, opening one if needed.
// Calling it twice for the same register yields the same session; only the
// first call's opening cash is recorded.
func (s *Service) GetOrCreate(ctx context.Context, vc shared.VendorContext, registerID, locationID string, openingCash decimal.Decimal) (Session, bool, error) {
	if registerID == "" || locationID == "" {
		return Session{}, false, errors.New("registerId and locationId are required")
	}
	if openingCash.IsNegative() {
		return Session{}, false, errors.New("openingCash must not be negative")
	}
	processorID := s.resolveProcessorID(ctx, vc, registerID, locationID)
	sess, created, err := s.repo.GetOrCreateOpen(ctx, vc.VendorID, registerID, locationID, vc.UserID, openingCash, processorID)
	if err != nil {
		return Session{}, false, err
	}
	if created {
		s.recordAudit(ctx, vc, "pos_session_open", sess.ID, map[string]any{
			"register_id":    registerID,
			"location_id":    locationID,
			"session_number": sess.SessionNumber,
			"opening_cash":   openingCash.String(),
		})
	}
	return sess, created, nil
}

// resolveProcessorID pins the register's processor binding onto the session
// row. Resolution failures degrade to an unbound (cash-only) session.
func (s *Service) resolveProcessorID(ctx context.Context, vc shared.VendorContext, registerID, locationID string) string {
	if s.processors == nil {
		return ""
	}
	cfg, err := s.processors.GetProcessorForRegister(ctx, vc.VendorID, registerID)
	if errors.Is(err, shared.ErrProcessorNotFound) {
		cfg, err = s.processors.GetProcessorForLocation(ctx, vc.VendorID, locationID)
	}
	if err != nil {
		return ""
	}
	return cfg.ID
}

// StatusResult is what the poll loop consumes.
type StatusResult struct {
	SessionID string     `json:"sessionId"`
	Status    string     `json:"status"`
	Open      bool       `json:"open"`
	OpenedAt  time.Time  `json:"openedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// Cache keys carry the vendor so a hit can never serve another tenant's
// session state.
func statusCacheKey(vendorID, sessionID string) string {
	return "pos:session_status:" + vendorID + ":" + sessionID
}

// Status reports whether a session is still open. A closed result may be up
// to cacheTTL stale, which is fine: the poll interval already exceeds it.
func (s *Service) Status(ctx context.Context, vc shared.VendorContext, sessionID string) (StatusResult, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, statusCacheKey(vc.VendorID, sessionID)).Bytes()
		if err == nil {
			var cached StatusResult
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("session status cache read failed", slog.String("error", err.Error()))
		}
	}

	// Every register polls on the same interval, so misses arrive in
	// bursts. Collapse concurrent loads for the same session.
	val, err, _ := s.flight.Do(vc.VendorID+":"+sessionID, func() (any, error) {
		return s.loadStatus(ctx, vc, sessionID)
	})
	if err != nil {
		return StatusResult{}, err
	}
	return val.(StatusResult), nil
}

func (s *Service) loadStatus(ctx context.Context, vc shared.VendorContext, sessionID string) (StatusResult, error) {
	sess, err := s.repo.Get(ctx, vc.VendorID, sessionID)
	if err != nil {
		return StatusResult{}, err
	}
	result := StatusResult{
		SessionID: sess.ID,
		Status:    sess.Status,
		Open:      sess.Open(),
		OpenedAt:  sess.OpenedAt,
		ClosedAt:  sess.ClosedAt,
	}
	if s.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, statusCacheKey(vc.VendorID, sessionID), raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("session status cache write failed", slog.String("error", err.Error()))
			}
		}
	}
	return result, nil
}

// CloseResult reports the closed session and its money movement.
type CloseResult struct {
	Session       Session `json:"session"`
	Totals        Totals  `json:"totals"`
	AlreadyClosed bool    `json:"alreadyClosed"`
}

// Close ends a session, storing the declared drawer count, and reconciles
// its totals. Closing twice returns the stored session with AlreadyClosed
// set instead of an error.
func (s *Service) Close(ctx context.Context, vc shared.VendorContext, sessionID string, closingCash decimal.Decimal, notes string) (CloseResult, error) {
	sess, closedNow, err := s.repo.Close(ctx, vc.VendorID, sessionID, vc.UserID, closingCash, notes)
	if err != nil {
		return CloseResult{}, err
	}
	totals, err := s.sessionTotals(ctx, vc.VendorID, sess.ID)
	if err != nil {
		return CloseResult{}, err
	}
	s.invalidateStatus(ctx, vc.VendorID, sess.ID)
	if closedNow {
		salesTotal := totals.CashTotal.Add(totals.CardTotal)
		if err := s.repo.UpdateTotals(ctx, vc.VendorID, sess.ID, salesTotal, totals.RefundTotal); err != nil {
			return CloseResult{}, err
		}
		sess.SalesTotal = salesTotal
		sess.RefundsTotal = totals.RefundTotal
		s.recordAudit(ctx, vc, "pos_session_close", sess.ID, map[string]any{
			"grand_total":  totals.GrandTotal.String(),
			"closing_cash": closingCash.String(),
			"transactions": totals.TransactionCount,
		})
	}
	return CloseResult{Session: sess, Totals: totals, AlreadyClosed: !closedNow}, nil
}

// Summary reads a session and its totals without changing its state. Used
// for mid-day checks and the close-of-day report.
func (s *Service) Summary(ctx context.Context, vc shared.VendorContext, sessionID string) (CloseResult, error) {
	sess, err := s.repo.Get(ctx, vc.VendorID, sessionID)
	if err != nil {
		return CloseResult{}, err
	}
	totals, err := s.sessionTotals(ctx, vc.VendorID, sess.ID)
	if err != nil {
		return CloseResult{}, err
	}
	return CloseResult{Session: sess, Totals: totals, AlreadyClosed: sess.Status == StatusClosed}, nil
}

func (s *Service) sessionTotals(ctx context.Context, vendorID, sessionID string) (Totals, error) {
	var t Totals
	if s.txs == nil {
		return t, nil
	}
	rows, err := s.txs.ListForSession(ctx, vendorID, sessionID)
	if err != nil {
		return Totals{}, err
	}
	for _, tx := range rows {
		if tx.Status != payments.StatusApproved {
			continue
		}
		switch tx.Kind {
		case payments.KindSale:
			t.TransactionCount++
			if tx.PaymentMethod == payments.PaymentMethodCash {
				t.CashTotal = t.CashTotal.Add(tx.TotalAmount)
			} else {
				t.CardTotal = t.CardTotal.Add(tx.TotalAmount)
			}
		case payments.KindRefund:
			t.RefundTotal = t.RefundTotal.Add(tx.TotalAmount)
		}
	}
	t.GrandTotal = t.CashTotal.Add(t.CardTotal).Sub(t.RefundTotal)
	return t, nil
}

// ProcessorStatus describes the card capability of one register.
type ProcessorStatus struct {
	Active bool   `json:"active"`
	Kind   string `json:"kind,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ProcessorStatusForRegister resolves the register's processor binding, or
// the location default when the register has none. No binding at all means
// the register is cash-only, which is a valid state, not an error.
func (s *Service) ProcessorStatusForRegister(ctx context.Context, vc shared.VendorContext, registerID, locationID string) (ProcessorStatus, error) {
	if s.processors == nil {
		return ProcessorStatus{}, nil
	}
	cfg, err := s.processors.GetProcessorForRegister(ctx, vc.VendorID, registerID)
	if errors.Is(err, shared.ErrProcessorNotFound) && locationID != "" {
		cfg, err = s.processors.GetProcessorForLocation(ctx, vc.VendorID, locationID)
	}
	if errors.Is(err, shared.ErrProcessorNotFound) {
		return ProcessorStatus{}, nil
	}
	if err != nil {
		return ProcessorStatus{}, err
	}
	return ProcessorStatus{Active: cfg.Active, Kind: cfg.Kind, Name: cfg.Name}, nil
}

// ReapStale closes open sessions that exceeded maxAge. Returns how many
// were closed.
func (s *Service) ReapStale(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	stale, err := s.repo.ListStaleOpen(ctx, maxAge, limit)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, sess := range stale {
		if _, closedNow, err := s.repo.Close(ctx, sess.VendorID, sess.ID, "system", decimal.Zero, "closed automatically after exceeding max shift length"); err != nil {
			s.logger.Error("reap session failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
		} else if closedNow {
			s.invalidateStatus(ctx, sess.VendorID, sess.ID)
			closed++
		}
	}
	return closed, nil
}

func (s *Service) invalidateStatus(ctx context.Context, vendorID, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statusCacheKey(vendorID, sessionID)).Err(); err != nil {
		s.logger.Warn("session status cache invalidate failed", slog.String("error", err.Error()))
	}
}

func (s *Service) recordAudit(ctx context.Context, vc shared.VendorContext, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor := vc.UserID
	if actor == "" {
		actor = vc.APIKeyID
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		VendorID: vc.VendorID,
		ActorID:  actor,
		Action:   action,
		Entity:   "pos_session",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.String("error", err.Error()))
	}
}
