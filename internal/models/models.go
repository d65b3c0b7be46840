package models

import "time"

// Stage is the production pipeline position of a campaign and of the orders
// funded through it.
type Stage string

const (
	StageMockup        Stage = "Mockup"
	StagePreProduction Stage = "Pre-production"
	StageProduction    Stage = "Production"
	StageShipped       Stage = "Shipped"
)

// SettlementStatus tracks the held payment behind an order. Transitions are
// terminal: hold/pending -> refunded or hold/pending -> paid, enforced by a
// conditional update in the store.
type SettlementStatus string

const (
	SettlementHold     SettlementStatus = "hold"
	SettlementPending  SettlementStatus = "pending"
	SettlementPaid     SettlementStatus = "paid"
	SettlementRefunded SettlementStatus = "refunded"
)

// Held reports whether the status is still settleable. pending is a failed
// card refund awaiting the next sweep.
func (s SettlementStatus) Held() bool {
	return s == SettlementHold || s == SettlementPending
}

type PaymentKind string

const (
	PaymentCredits PaymentKind = "credits"
	PaymentCard    PaymentKind = "card"
)

// PaymentMethod describes how an order was paid. ChargeRef is set iff Kind
// is card.
type PaymentMethod struct {
	Kind      PaymentKind
	ChargeRef string
	Status    SettlementStatus
}

// Campaign is a time-boxed crowdfunding run for one product configuration.
// Once Expired is true, Stage and Funded are frozen.
type Campaign struct {
	ID             string
	Name           string
	Code           string
	Description    string
	PriceCents     int64
	Sizes          []string
	MinQty         int
	Funded         int
	EndTime        time.Time
	Stage          Stage
	Expired        bool
	OrganizationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Order struct {
	ID         string
	UserID     string
	CampaignID string
	Quantity   int
	Size       string
	TotalCents int64
	Stage      Stage
	Payment    PaymentMethod
	PlacedAt   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Notification is an immutable audit record of a settlement or admin event.
// Hidden is the only mutable field and does not affect settlement state.
type Notification struct {
	ID          string
	ToUserID    string
	FromAdminID string
	Title       string
	Body        string
	Event       string
	Hidden      bool
	CreatedAt   time.Time
}

type User struct {
	ID             string
	Email          string
	Name           string
	CreditsCents   int64
	OrganizationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
