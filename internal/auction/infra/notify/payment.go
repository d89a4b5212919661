package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/nats-io/nats.go"
)

const chargeSubject = "payments.charge"

// NatsGateway implements domain.PaymentGateway over NATS request/reply: the
// platform's payment service owns the actual processor integration and
// answers on the charge subject. The idempotency key travels with the request
// so a re-presented charge deduplicates on the payment side.
type NatsGateway struct {
	nc *nats.Conn
}

func NewNatsGateway(nc *nats.Conn) *NatsGateway {
	return &NatsGateway{nc: nc}
}

type chargeMessage struct {
	PayerID            string `json:"payer_id"`
	PaymentSourceToken string `json:"payment_source_token"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	Memo               string `json:"memo"`
	PayoutAccount      string `json:"payout_account"`
	BeneficiaryID      string `json:"beneficiary_id"`
	IdempotencyKey     string `json:"idempotency_key"`
}

type chargeReply struct {
	ChargeID string `json:"charge_id"`
	Declined bool   `json:"declined"`
	Error    string `json:"error,omitempty"`
}

func (g *NatsGateway) Charge(ctx context.Context, req domain.ChargeRequest) (string, error) {
	payload, err := json.Marshal(chargeMessage{
		PayerID:            req.PayerID.String(),
		PaymentSourceToken: req.PaymentSourceToken,
		Amount:             req.Amount.Amount,
		Currency:           req.Amount.Currency,
		Memo:               req.Memo,
		PayoutAccount:      req.PayoutAccount,
		BeneficiaryID:      req.BeneficiaryID.String(),
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal charge request: %w", err)
	}

	msg, err := g.nc.RequestWithContext(ctx, chargeSubject, payload)
	if err != nil {
		return "", fmt.Errorf("charge request: %w", err)
	}

	var reply chargeReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return "", fmt.Errorf("decode charge reply: %w", err)
	}
	if reply.Declined {
		return "", fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, reply.Error)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("charge failed: %s", reply.Error)
	}
	return reply.ChargeID, nil
}
