package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// dejavooProcessor speaks the SPIn-style REST dialect: amounts in dollars,
// result code "0" for approval, anything else is a host decline.
type dejavooProcessor struct {
	gw *gatewayClient
}

func (p *dejavooProcessor) Kind() string { return GatewayDejavoo }

type dejavooRequest struct {
	TPN           string `json:"tpn"`
	TransType     string `json:"transType"`
	Amount        string `json:"amount"`
	Tip           string `json:"tip,omitempty"`
	RefID         string `json:"refId,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
}

type dejavooResponse struct {
	ResultCode    string `json:"resultCode"`
	Message       string `json:"message"`
	AuthCode      string `json:"authCode"`
	TransactionID string `json:"transactionId"`
	CardType      string `json:"cardType"`
	Last4         string `json:"last4"`
	ReceiptText   string `json:"receiptText"`
}

func (p *dejavooProcessor) ProcessSale(ctx context.Context, req SaleRequest) (SaleResult, error) {
	var resp dejavooResponse
	err := p.gw.post(ctx, "/spin/v2/transaction", dejavooRequest{
		TPN:           p.gw.terminalID,
		TransType:     "Sale",
		Amount:        req.Amount.StringFixed(2),
		Tip:           req.TipAmount.StringFixed(2),
		RefID:         req.ReferenceID,
		InvoiceNumber: req.InvoiceNumber,
	}, &resp)
	if err != nil {
		return SaleResult{}, err
	}
	if resp.ResultCode != "0" {
		return SaleResult{}, DeclinedError(resp.ResultCode, resp.Message)
	}
	return SaleResult{
		Success:           true,
		AuthorizationCode: resp.AuthCode,
		Message:           resp.Message,
		CardType:          resp.CardType,
		CardLast4:         resp.Last4,
		ReceiptData:       receipt(resp.ReceiptText, resp.TransactionID),
	}, nil
}

func (p *dejavooProcessor) ProcessRefund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}
	var resp dejavooResponse
	err := p.gw.post(ctx, "/spin/v2/transaction", dejavooRequest{
		TPN:       p.gw.terminalID,
		TransType: "Return",
		Amount:    amount.StringFixed(2),
		RefID:     req.OriginalTransactionID,
	}, &resp)
	if err != nil {
		return RefundResult{}, err
	}
	if resp.ResultCode != "0" {
		return RefundResult{}, DeclinedError(resp.ResultCode, resp.Message)
	}
	return RefundResult{
		Success:     true,
		Message:     resp.Message,
		Amount:      amount,
		ReceiptData: receipt(resp.ReceiptText, resp.TransactionID),
	}, nil
}

func (p *dejavooProcessor) VoidTransaction(ctx context.Context, req VoidRequest) (VoidResult, error) {
	var resp dejavooResponse
	err := p.gw.post(ctx, "/spin/v2/transaction", dejavooRequest{
		TPN:       p.gw.terminalID,
		TransType: "Void",
		RefID:     req.TransactionID,
	}, &resp)
	if err != nil {
		return VoidResult{}, err
	}
	if resp.ResultCode != "0" {
		return VoidResult{}, DeclinedError(resp.ResultCode, resp.Message)
	}
	return VoidResult{Success: true, Message: resp.Message}, nil
}

func receipt(text, gatewayTxID string) map[string]string {
	if text == "" && gatewayTxID == "" {
		return nil
	}
	out := make(map[string]string, 2)
	if text != "" {
		out["receiptText"] = text
	}
	if gatewayTxID != "" {
		out["gatewayTransactionId"] = gatewayTxID
	}
	return out
}
