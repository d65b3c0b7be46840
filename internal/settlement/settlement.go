// Package settlement decides and executes the outcome of a campaign whose
// end time has passed: advance the production stage when the funding
// threshold was met, refund every held order when it was not. All of it is
// written to be re-entrant — two trigger sources can race into the same
// campaign and the conditional settlement transition in the store keeps every
// order settled exactly once.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"unionmade-backend/internal/models"
)

// Event identifies why a settlement notification was produced.
type Event string

const (
	EventUnderfundedRefund  Event = "underfunded-refund"
	EventStageAdvanced      Event = "stage-advanced"
	EventDiscontinuedRefund Event = "discontinued-refund"
)

// RefundStatus is the provider-reported outcome of a card refund.
type RefundStatus string

const (
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

var (
	ErrMalformedCampaign = errors.New("malformed campaign state")
	ErrMissingChargeRef  = errors.New("card order has no charge reference")
)

// Store is the slice of durable storage the engine needs. SettleOrder and
// DeferOrder must be atomic conditional updates: they report false when the
// order was no longer settleable, which the engine treats as "already
// settled by someone else".
type Store interface {
	OrdersByCampaign(ctx context.Context, campaignID string) ([]*models.Order, error)
	HeldOrdersByCampaign(ctx context.Context, campaignID string) ([]*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	SettleOrder(ctx context.Context, orderID string, to models.SettlementStatus) (bool, error)
	DeferOrder(ctx context.Context, orderID string) (bool, error)
	FinishCampaign(ctx context.Context, id string, stage models.Stage) error
	MarkCampaignExpired(ctx context.Context, id string) error
}

// Ledger abstracts payment reversal. RefundToCredits claims the terminal
// settlement transition and credits the buyer in one atomic operation, so a
// concurrent attempt can never move money twice; it reports false when the
// order was already settled.
type Ledger interface {
	RefundToCredits(ctx context.Context, o *models.Order) (bool, error)
	RefundCharge(ctx context.Context, chargeRef string) (RefundStatus, error)
}

// Notice is one outbound settlement notification.
type Notice struct {
	UserID string
	Event  Event
	Title  string
	Body   string
	Order  *models.Order
}

// Notifier delivers a notice. Delivery is best-effort: the engine logs
// failures and never lets them affect settlement state.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

type Engine struct {
	Store    Store
	Ledger   Ledger
	Notifier Notifier
	// CallTimeout bounds each external provider call (refund, credit).
	CallTimeout time.Duration
}

// EvaluateCampaign runs one evaluation pass for a campaign whose end time
// has passed. First evaluation compares funded against the minimum quantity
// and either refunds or advances; an already-expired campaign gets the
// straggler pass, re-settling residual held orders left by earlier partial
// failures or a post-funding discontinuation. Per-order failures are logged
// and aggregated — they never abort sibling orders.
func (e *Engine) EvaluateCampaign(ctx context.Context, c *models.Campaign) error {
	if c.MinQty <= 0 || c.EndTime.IsZero() {
		return fmt.Errorf("%w: campaign %s min_qty=%d end_time=%s", ErrMalformedCampaign, c.ID, c.MinQty, c.EndTime)
	}

	if c.Expired {
		return e.settleStragglers(ctx, c)
	}

	if c.Funded < c.MinQty {
		return e.settleUnderfunded(ctx, c)
	}
	return e.settleFunded(ctx, c)
}

func (e *Engine) settleUnderfunded(ctx context.Context, c *models.Campaign) error {
	orders, err := e.Store.HeldOrdersByCampaign(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list held orders for campaign %s: %w", c.ID, err)
	}
	log.Printf("campaign %s underfunded funded=%d min=%d held=%d", c.ID, c.Funded, c.MinQty, len(orders))

	failed := e.refundAll(ctx, orders, EventUnderfundedRefund)

	// The campaign flag flips after the order loop; orders left held are
	// retried by the straggler sweep.
	if err := e.Store.MarkCampaignExpired(ctx, c.ID); err != nil {
		return fmt.Errorf("mark campaign %s expired: %w", c.ID, err)
	}
	if failed > 0 {
		log.Printf("campaign %s settled with %d orders left for retry", c.ID, failed)
	}
	return nil
}

func (e *Engine) settleFunded(ctx context.Context, c *models.Campaign) error {
	log.Printf("campaign %s funded=%d min=%d, advancing to %s", c.ID, c.Funded, c.MinQty, models.StagePreProduction)

	orders, err := e.Store.OrdersByCampaign(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list orders for campaign %s: %w", c.ID, err)
	}

	for _, o := range orders {
		settled, err := e.MarkPaid(ctx, o)
		if err != nil {
			log.Printf("mark paid failed order=%s: %v", o.ID, err)
			continue
		}
		if !settled {
			continue
		}
		e.NotifyAndAudit(ctx, o, EventStageAdvanced)
	}

	// Stage advance and the expired flag land in one write after the loop.
	// Until then the campaign still matches the open-campaign sweep, so a
	// crash mid-loop gets re-evaluated instead of stranding its orders.
	if err := e.Store.FinishCampaign(ctx, c.ID, models.StagePreProduction); err != nil {
		return fmt.Errorf("finish campaign %s: %w", c.ID, err)
	}
	return nil
}

// settleStragglers refunds residual held orders on an already-expired
// campaign. The held-status guard makes the pass idempotent, so running it
// against a fully settled campaign is a no-op.
func (e *Engine) settleStragglers(ctx context.Context, c *models.Campaign) error {
	orders, err := e.Store.HeldOrdersByCampaign(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list held orders for campaign %s: %w", c.ID, err)
	}
	if len(orders) == 0 {
		return nil
	}
	log.Printf("campaign %s already expired, %d held orders remain", c.ID, len(orders))
	e.refundAll(ctx, orders, EventDiscontinuedRefund)
	return nil
}

// DiscontinueCampaign refunds every held order of a campaign being pulled by
// an admin and freezes it. Works on open and already-expired campaigns
// alike; the second call is a no-op.
func (e *Engine) DiscontinueCampaign(ctx context.Context, c *models.Campaign) error {
	orders, err := e.Store.HeldOrdersByCampaign(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list held orders for campaign %s: %w", c.ID, err)
	}
	e.refundAll(ctx, orders, EventDiscontinuedRefund)
	if err := e.Store.MarkCampaignExpired(ctx, c.ID); err != nil {
		return fmt.Errorf("mark campaign %s expired: %w", c.ID, err)
	}
	return nil
}

// RefundOrder is the admin manual-refund path for a single order. Same
// workflow primitive as the campaign loops, distinct entry point.
func (e *Engine) RefundOrder(ctx context.Context, orderID string, event Event) error {
	o, err := e.Store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order %s: %w", orderID, err)
	}
	if !o.Payment.Status.Held() {
		return nil
	}
	settled, err := e.RefundOrCredit(ctx, o)
	if err != nil {
		return err
	}
	if settled {
		e.NotifyAndAudit(ctx, o, event)
	}
	return nil
}

func (e *Engine) refundAll(ctx context.Context, orders []*models.Order, event Event) int {
	failed := 0
	for _, o := range orders {
		settled, err := e.RefundOrCredit(ctx, o)
		if err != nil {
			log.Printf("refund failed order=%s: %v", o.ID, err)
			failed++
			continue
		}
		if !settled {
			continue
		}
		e.NotifyAndAudit(ctx, o, event)
	}
	return failed
}

// RefundOrCredit reverses one held payment. Card orders go back through the
// provider by charge reference, then claim the terminal transition with a
// conditional update; a provider failure leaves the order settleable and is
// surfaced to the caller for aggregation. Credits orders claim the
// transition and increment the balance in one atomic ledger operation. On
// either path a concurrent settlement attempt makes this a no-op
// (settled=false, err=nil).
func (e *Engine) RefundOrCredit(ctx context.Context, o *models.Order) (settled bool, err error) {
	switch o.Payment.Kind {
	case models.PaymentCard:
		if o.Payment.ChargeRef == "" {
			return false, fmt.Errorf("order %s: %w", o.ID, ErrMissingChargeRef)
		}
		cctx, cancel := e.callCtx(ctx)
		status, err := e.Ledger.RefundCharge(cctx, o.Payment.ChargeRef)
		cancel()
		if err != nil || status != RefundSucceeded {
			if _, derr := e.Store.DeferOrder(ctx, o.ID); derr != nil {
				log.Printf("defer order %s failed: %v", o.ID, derr)
			}
			if err == nil {
				err = fmt.Errorf("provider reported %s", status)
			}
			return false, fmt.Errorf("refund charge for order %s: %w", o.ID, err)
		}
		updated, err := e.Store.SettleOrder(ctx, o.ID, models.SettlementRefunded)
		if err != nil {
			return false, fmt.Errorf("settle order %s: %w", o.ID, err)
		}
		if updated {
			o.Payment.Status = models.SettlementRefunded
		}
		return updated, nil
	case models.PaymentCredits:
		updated, err := e.Ledger.RefundToCredits(ctx, o)
		if err != nil {
			return false, fmt.Errorf("credit user %s for order %s: %w", o.UserID, o.ID, err)
		}
		if updated {
			o.Payment.Status = models.SettlementRefunded
		}
		return updated, nil
	default:
		return false, fmt.Errorf("order %s: unknown payment kind %q", o.ID, o.Payment.Kind)
	}
}

// MarkPaid finalizes a held payment on the funded path.
func (e *Engine) MarkPaid(ctx context.Context, o *models.Order) (bool, error) {
	updated, err := e.Store.SettleOrder(ctx, o.ID, models.SettlementPaid)
	if err != nil {
		return false, err
	}
	if updated {
		o.Payment.Status = models.SettlementPaid
	}
	return updated, nil
}

// NotifyAndAudit records and dispatches the outcome for one order. Failures
// are logged only; the audit record and settlement state never roll back on
// a delivery error.
func (e *Engine) NotifyAndAudit(ctx context.Context, o *models.Order, event Event) {
	n := Notice{
		UserID: o.UserID,
		Event:  event,
		Order:  o,
	}
	switch event {
	case EventUnderfundedRefund:
		n.Title = "Order Refunded"
		n.Body = fmt.Sprintf(
			"Refund has been applied because minimum quantity was not met. Refunded %s via %s.",
			formatCents(o.TotalCents), o.Payment.Kind)
	case EventDiscontinuedRefund:
		n.Title = "Order Refunded"
		n.Body = fmt.Sprintf(
			"Refund has been applied because the product was discontinued. The payment has been reversed to your original payment method (%q). The refunded amount is %s.",
			o.Payment.Kind, formatCents(o.TotalCents))
	case EventStageAdvanced:
		n.Title = "Product Stage Updated"
		n.Body = fmt.Sprintf("Product stage updated to %q", models.StagePreProduction)
	default:
		n.Title = "Order Update"
		n.Body = fmt.Sprintf("Your order %s was updated.", o.ID)
	}

	cctx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.Notifier.Notify(cctx, n); err != nil {
		log.Printf("notification failed order=%s event=%s: %v", o.ID, event, err)
	}
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.CallTimeout > 0 {
		return context.WithTimeout(ctx, e.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
