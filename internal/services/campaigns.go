package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"unionmade-backend/internal/models"
	"unionmade-backend/internal/settlement"

	"github.com/google/uuid"
)

var (
	ErrInvalidCampaign  = errors.New("invalid campaign definition")
	ErrCampaignFrozen   = errors.New("campaign is expired and frozen")
	ErrInvalidStage     = errors.New("invalid stage")
)

// EventOrderStatusChanged is the admin-driven stage-change notification, the
// one notice that does not originate from settlement.
const EventOrderStatusChanged = settlement.Event("order-status-changed")

type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, includeExpired bool) ([]*models.Campaign, error)
	UpdateCampaignDetails(ctx context.Context, c *models.Campaign) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrderStage(ctx context.Context, orderID string, stage models.Stage) error
}

// CampaignService carries the admin-side campaign operations. Discontinue
// and RefundOrder delegate to the settlement engine so that admin refunds go
// through the same idempotent workflow primitive as the sweeps.
type CampaignService struct {
	Store    CampaignStore
	Engine   *settlement.Engine
	Notifier settlement.Notifier
}

type CampaignInput struct {
	Name           string
	Code           string
	Description    string
	PriceCents     int64
	Sizes          []string
	MinQty         int
	EndTime        time.Time
	OrganizationID string
}

func (s *CampaignService) Create(ctx context.Context, in CampaignInput) (*models.Campaign, error) {
	if in.Name == "" || in.PriceCents <= 0 || in.MinQty <= 0 || in.EndTime.IsZero() {
		return nil, ErrInvalidCampaign
	}
	if in.OrganizationID == "" {
		return nil, fmt.Errorf("%w: organization is required", ErrInvalidCampaign)
	}

	c := &models.Campaign{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Code:           in.Code,
		Description:    in.Description,
		PriceCents:     in.PriceCents,
		Sizes:          in.Sizes,
		MinQty:         in.MinQty,
		EndTime:        in.EndTime.UTC(),
		Stage:          models.StageMockup,
		OrganizationID: in.OrganizationID,
	}
	if err := s.Store.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update edits an open campaign. An end-time change lands in storage first
// and reaches the settlement worker through the campaign change
// subscription, so moving the end time into the past settles the campaign
// without waiting for the daily sweep.
func (s *CampaignService) Update(ctx context.Context, id string, in CampaignInput) (*models.Campaign, error) {
	c, err := s.Store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Expired {
		return nil, ErrCampaignFrozen
	}
	if in.Name == "" || in.PriceCents <= 0 || in.MinQty <= 0 || in.EndTime.IsZero() {
		return nil, ErrInvalidCampaign
	}

	c.Name = in.Name
	c.Code = in.Code
	c.Description = in.Description
	c.PriceCents = in.PriceCents
	c.Sizes = in.Sizes
	c.MinQty = in.MinQty
	c.EndTime = in.EndTime.UTC()

	if err := s.Store.UpdateCampaignDetails(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Discontinue pulls a campaign: every held order is refunded with the
// discontinued notice and the campaign is frozen. Safe to repeat.
func (s *CampaignService) Discontinue(ctx context.Context, id string) error {
	c, err := s.Store.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	return s.Engine.DiscontinueCampaign(ctx, c)
}

// RefundOrder cancels a single order on admin request.
func (s *CampaignService) RefundOrder(ctx context.Context, orderID string) error {
	return s.Engine.RefundOrder(ctx, orderID, settlement.EventDiscontinuedRefund)
}

// SetOrderStage updates an order's production stage and tells the buyer.
func (s *CampaignService) SetOrderStage(ctx context.Context, adminID, orderID string, stage models.Stage) error {
	if !validStage(stage) {
		return ErrInvalidStage
	}
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.Store.UpdateOrderStage(ctx, orderID, stage); err != nil {
		return err
	}

	notice := settlement.Notice{
		UserID: o.UserID,
		Event:  EventOrderStatusChanged,
		Title:  "Order status changed",
		Body:   fmt.Sprintf("Your order status has been updated to %q by the admin.", stage),
		Order:  o,
	}
	if err := s.Notifier.Notify(ctx, notice); err != nil {
		log.Printf("order status notification failed order=%s: %v", orderID, err)
	}
	return nil
}

func validStage(stage models.Stage) bool {
	switch stage {
	case models.StageMockup, models.StagePreProduction, models.StageProduction, models.StageShipped:
		return true
	}
	return false
}
