// Package notify implements the settlement engine's Notifier: every notice
// becomes a durable audit record, then is pushed to connected websockets and
// mailed through Mailtrap. Only the audit write can fail the call; mail and
// push are best-effort.
package notify

import (
	"context"
	"log"

	"unionmade-backend/internal/models"
	"unionmade-backend/internal/settlement"
	"unionmade-backend/internal/store"
	"unionmade-backend/internal/ws"

	"github.com/google/uuid"
)

type Service struct {
	Store *store.Store
	Mail  *MailtrapClient // nil disables mail delivery
	Hub   *ws.Hub         // nil disables websocket push
	// Templates maps settlement events to Mailtrap template ids. Events
	// without a template are audited and pushed but not mailed.
	Templates map[settlement.Event]string
}

func (s *Service) Notify(ctx context.Context, n settlement.Notice) error {
	rec := &models.Notification{
		ID:       uuid.NewString(),
		ToUserID: n.UserID,
		Title:    n.Title,
		Body:     n.Body,
		Event:    string(n.Event),
	}
	if err := s.Store.CreateNotification(ctx, rec); err != nil {
		return err
	}

	if s.Hub != nil {
		s.Hub.Publish(n.UserID, rec)
	}

	if s.Mail == nil {
		return nil
	}
	templateID := s.Templates[n.Event]
	if templateID == "" {
		return nil
	}

	user, err := s.Store.GetUser(ctx, n.UserID)
	if err != nil {
		log.Printf("mail skipped, user %s lookup failed: %v", n.UserID, err)
		return nil
	}

	vars := map[string]any{
		"name":  user.Name,
		"title": n.Title,
		"body":  n.Body,
	}
	if n.Order != nil {
		vars["order_id"] = n.Order.ID
		vars["quantity"] = n.Order.Quantity
		vars["total"] = n.Order.TotalCents
		vars["payment_method"] = string(n.Order.Payment.Kind)
	}

	if err := s.Mail.SendTemplate(ctx, user.Email, templateID, vars); err != nil {
		log.Printf("mail delivery failed user=%s event=%s: %v", n.UserID, n.Event, err)
	}
	return nil
}
