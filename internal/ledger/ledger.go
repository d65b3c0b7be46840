// Package ledger implements the settlement engine's Ledger interface: card
// refunds go out through Stripe by charge reference, credits refunds settle
// the order and credit the balance in one store transaction.
package ledger

import (
	"context"
	"errors"

	"unionmade-backend/internal/models"
	"unionmade-backend/internal/settlement"
	"unionmade-backend/internal/store"

	stripe "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"
)

type Service struct {
	Store  *store.Store
	Stripe *stripeclient.API
}

func New(st *store.Store, stripeKey string) *Service {
	sc := &stripeclient.API{}
	sc.Init(stripeKey, nil)
	return &Service{Store: st, Stripe: sc}
}

// RefundToCredits reverses a credits payment. The settlement transition and
// the balance increment commit together, so losing the claim to a concurrent
// attempt leaves the balance untouched.
func (s *Service) RefundToCredits(ctx context.Context, o *models.Order) (bool, error) {
	return s.Store.RefundOrderToCredits(ctx, o.ID, o.UserID, o.TotalCents)
}

// RefundCharge issues a full refund of the charge behind a card order. A
// charge that turns out to be already fully refunded counts as success: the
// money is back with the buyer, which is all settlement cares about.
func (s *Service) RefundCharge(ctx context.Context, chargeRef string) (settlement.RefundStatus, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(chargeRef),
	}
	params.Context = ctx

	ref, err := s.Stripe.Refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeChargeAlreadyRefunded {
			return settlement.RefundSucceeded, nil
		}
		return settlement.RefundFailed, err
	}

	if ref.Status == stripe.RefundStatusSucceeded {
		return settlement.RefundSucceeded, nil
	}
	return settlement.RefundFailed, nil
}
