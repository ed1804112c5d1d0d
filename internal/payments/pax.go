package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// paxProcessor speaks the POSLink-style dialect: amounts in cents, response
// code "000000" for approval.
type paxProcessor struct {
	gw *gatewayClient
}

func (p *paxProcessor) Kind() string { return GatewayPAX }

type paxRequest struct {
	SerialNumber string `json:"serialNumber"`
	Command      string `json:"command"`
	AmountCents  int64  `json:"amount"`
	TipCents     int64  `json:"tipAmount,omitempty"`
	ECRRefNum    string `json:"ecrRefNum,omitempty"`
	OrigRefNum   string `json:"origRefNum,omitempty"`
}

type paxResponse struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	HostCode        string `json:"hostCode"`
	AuthCode        string `json:"authCode"`
	RefNum          string `json:"refNum"`
	CardType        string `json:"cardType"`
	BogusPAN        string `json:"maskedPan"`
}

func cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}

func last4(maskedPAN string) string {
	if len(maskedPAN) < 4 {
		return ""
	}
	return maskedPAN[len(maskedPAN)-4:]
}

func (p *paxProcessor) ProcessSale(ctx context.Context, req SaleRequest) (SaleResult, error) {
	var resp paxResponse
	err := p.gw.post(ctx, "/poslink/v1/credit", paxRequest{
		SerialNumber: p.gw.terminalID,
		Command:      "SALE",
		AmountCents:  cents(req.Amount),
		TipCents:     cents(req.TipAmount),
		ECRRefNum:    req.ReferenceID,
	}, &resp)
	if err != nil {
		return SaleResult{}, err
	}
	if resp.ResponseCode != "000000" {
		return SaleResult{}, DeclinedError(resp.ResponseCode, resp.ResponseMessage)
	}
	return SaleResult{
		Success:           true,
		AuthorizationCode: resp.AuthCode,
		Message:           resp.ResponseMessage,
		CardType:          resp.CardType,
		CardLast4:         last4(resp.BogusPAN),
		ReceiptData:       receipt("", resp.RefNum),
	}, nil
}

func (p *paxProcessor) ProcessRefund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}
	var resp paxResponse
	err := p.gw.post(ctx, "/poslink/v1/credit", paxRequest{
		SerialNumber: p.gw.terminalID,
		Command:      "RETURN",
		AmountCents:  cents(amount),
		OrigRefNum:   req.OriginalTransactionID,
	}, &resp)
	if err != nil {
		return RefundResult{}, err
	}
	if resp.ResponseCode != "000000" {
		return RefundResult{}, DeclinedError(resp.ResponseCode, resp.ResponseMessage)
	}
	return RefundResult{
		Success:     true,
		Message:     resp.ResponseMessage,
		Amount:      amount,
		ReceiptData: receipt("", resp.RefNum),
	}, nil
}

func (p *paxProcessor) VoidTransaction(ctx context.Context, req VoidRequest) (VoidResult, error) {
	var resp paxResponse
	err := p.gw.post(ctx, "/poslink/v1/credit", paxRequest{
		SerialNumber: p.gw.terminalID,
		Command:      "VOID",
		OrigRefNum:   req.TransactionID,
	}, &resp)
	if err != nil {
		return VoidResult{}, err
	}
	if resp.ResponseCode != "000000" {
		return VoidResult{}, DeclinedError(resp.ResponseCode, resp.ResponseMessage)
	}
	return VoidResult{Success: true, Message: resp.ResponseMessage}, nil
}
