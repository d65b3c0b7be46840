package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unionmade-backend/internal/models"

	"github.com/google/uuid"
)

var (
	ErrMissingUserID      = errors.New("missing user id")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrMissingChargeRef   = errors.New("card payment requires a charge reference")
	ErrUnknownPaymentKind = errors.New("unknown payment kind")
)

// CheckoutStore is the storage slice checkout needs. PlaceOrder must append
// the order and bump the campaign's funded accumulator atomically with
// respect to concurrent checkouts.
type CheckoutStore interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	PlaceOrder(ctx context.Context, order *models.Order) error
}

type CartItem struct {
	CampaignID string
	Quantity   int
	Size       string
}

type Payment struct {
	Kind      models.PaymentKind
	ChargeRef string
}

type CheckoutService struct {
	Store CheckoutStore
}

// Checkout places one held order per cart item. Totals are computed
// server-side from the campaign price. Items are placed independently, in
// order; on the first failure the orders already placed stand and the error
// is returned with them.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, items []CartItem, pay Payment) ([]*models.Order, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	switch pay.Kind {
	case models.PaymentCredits:
	case models.PaymentCard:
		if pay.ChargeRef == "" {
			return nil, ErrMissingChargeRef
		}
	default:
		return nil, ErrUnknownPaymentKind
	}

	var placed []*models.Order
	for _, item := range items {
		if item.Quantity <= 0 {
			return placed, fmt.Errorf("campaign %s: %w", item.CampaignID, ErrInvalidQuantity)
		}

		campaign, err := s.Store.GetCampaign(ctx, item.CampaignID)
		if err != nil {
			return placed, fmt.Errorf("campaign %s: %w", item.CampaignID, err)
		}

		now := time.Now().UTC()
		order := &models.Order{
			ID:         uuid.NewString(),
			UserID:     userID,
			CampaignID: campaign.ID,
			Quantity:   item.Quantity,
			Size:       item.Size,
			TotalCents: int64(item.Quantity) * campaign.PriceCents,
			Stage:      campaign.Stage,
			Payment: models.PaymentMethod{
				Kind:      pay.Kind,
				ChargeRef: pay.ChargeRef,
				Status:    models.SettlementHold,
			},
			PlacedAt: now,
		}

		if err := s.Store.PlaceOrder(ctx, order); err != nil {
			return placed, fmt.Errorf("place order for campaign %s: %w", campaign.ID, err)
		}
		placed = append(placed, order)
	}
	return placed, nil
}
