package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"unionmade-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCampaignClosed      = errors.New("campaign is closed for orders")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO campaigns (
			id, name, code, description, price_cents, sizes,
			min_qty, funded, end_time, stage, expired, organization_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		c.ID,
		c.Name,
		c.Code,
		c.Description,
		c.PriceCents,
		c.Sizes,
		c.MinQty,
		c.Funded,
		c.EndTime,
		c.Stage,
		c.Expired,
		c.OrganizationID,
	)
	return err
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	row := s.Pool.QueryRow(ctx, campaignColumns+` FROM campaigns WHERE id=$1`, id)
	return scanCampaign(row)
}

func (s *Store) ListCampaigns(ctx context.Context, includeExpired bool) ([]*models.Campaign, error) {
	q := campaignColumns + ` FROM campaigns`
	if !includeExpired {
		q += ` WHERE expired=false`
	}
	q += ` ORDER BY created_at`
	rows, err := s.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// UpdateCampaignDetails edits admin-mutable fields. An end_time change fires
// the campaign_changes notification installed by the migrations, which feeds
// the reactive settlement trigger.
func (s *Store) UpdateCampaignDetails(ctx context.Context, c *models.Campaign) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE campaigns
		SET name=$2, code=$3, description=$4, price_cents=$5, sizes=$6,
			min_qty=$7, end_time=$8, updated_at=now()
		WHERE id=$1
	`, c.ID, c.Name, c.Code, c.Description, c.PriceCents, c.Sizes, c.MinQty, c.EndTime)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListExpiredOpenCampaigns returns campaigns past their end time that have
// never been evaluated.
func (s *Store) ListExpiredOpenCampaigns(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	rows, err := s.Pool.Query(ctx, campaignColumns+`
		FROM campaigns
		WHERE end_time <= $1 AND expired=false AND stage=$2
		ORDER BY end_time
	`, now, models.StageMockup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// ListExpiredCampaignsWithHeldOrders returns already-evaluated campaigns that
// still carry settleable orders, either stragglers from a partial failure or
// post-funding discontinuations.
func (s *Store) ListExpiredCampaignsWithHeldOrders(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	rows, err := s.Pool.Query(ctx, campaignColumns+`
		FROM campaigns c
		WHERE c.end_time <= $1 AND c.expired=true
			AND EXISTS (
				SELECT 1 FROM orders o
				WHERE o.campaign_id=c.id AND o.settlement_status IN ('hold','pending')
			)
		ORDER BY c.end_time
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

// MarkCampaignExpired flips the one-way expired flag. Already-expired rows
// are left untouched.
func (s *Store) MarkCampaignExpired(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE campaigns SET expired=true, updated_at=now()
		WHERE id=$1 AND expired=false
	`, id)
	return err
}

// FinishCampaign freezes a funded campaign: the stage advance and the
// expired flag land in one write so no crash can leave the stage moved while
// the campaign still reads as open.
func (s *Store) FinishCampaign(ctx context.Context, id string, stage models.Stage) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE campaigns SET stage=$2, expired=true, updated_at=now()
		WHERE id=$1 AND expired=false
	`, id, stage)
	return err
}

// PlaceOrder appends an order to an open campaign in one transaction: the
// funded accumulator increment is a guarded single-statement update so that
// concurrent checkouts never lose updates, and a credits payment debits the
// buyer atomically with a balance guard.
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE campaigns SET funded = funded + $2, updated_at=now()
		WHERE id=$1 AND expired=false AND end_time > now()
	`, order.CampaignID, order.Quantity)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrCampaignClosed
	}

	if order.Payment.Kind == models.PaymentCredits {
		res, err = tx.Exec(ctx, `
			UPDATE users SET credits_cents = credits_cents - $2, updated_at=now()
			WHERE id=$1 AND credits_cents >= $2
		`, order.UserID, order.TotalCents)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return ErrInsufficientCredits
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, campaign_id, quantity, size, total_cents,
			stage, payment_kind, charge_ref, settlement_status, placed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID,
		order.UserID,
		order.CampaignID,
		order.Quantity,
		order.Size,
		order.TotalCents,
		order.Stage,
		order.Payment.Kind,
		nullIfEmpty(order.Payment.ChargeRef),
		order.Payment.Status,
		order.PlacedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, orderColumns+` FROM orders WHERE id=$1`, id)
	return scanOrder(row)
}

func (s *Store) OrdersByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, orderColumns+`
		FROM orders WHERE user_id=$1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Store) OrdersByCampaign(ctx context.Context, campaignID string) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, orderColumns+`
		FROM orders WHERE campaign_id=$1 ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Store) HeldOrdersByCampaign(ctx context.Context, campaignID string) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, orderColumns+`
		FROM orders
		WHERE campaign_id=$1 AND settlement_status IN ('hold','pending')
		ORDER BY created_at
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Store) ListOrders(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.Pool.Query(ctx, orderColumns+` FROM orders ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// SettleOrder performs the terminal settlement transition. It reports false
// when the order was already settled by a concurrent attempt, which callers
// treat as a no-op rather than an error.
func (s *Store) SettleOrder(ctx context.Context, orderID string, to models.SettlementStatus) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET settlement_status=$2, updated_at=now()
		WHERE id=$1 AND settlement_status IN ('hold','pending')
	`, orderID, to)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// DeferOrder marks a failed card refund for retry on the next sweep.
func (s *Store) DeferOrder(ctx context.Context, orderID string) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET settlement_status=$2, updated_at=now()
		WHERE id=$1 AND settlement_status=$3
	`, orderID, models.SettlementPending, models.SettlementHold)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Store) UpdateOrderStage(ctx context.Context, orderID string, stage models.Stage) error {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET stage=$2, updated_at=now() WHERE id=$1
	`, orderID, stage)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, email, name, credits_cents, organization_id, created_at, updated_at
		FROM users WHERE id=$1
	`, id)
	var u models.User
	var orgID sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreditsCents, &orgID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if orgID.Valid {
		u.OrganizationID = orgID.String
	}
	return &u, nil
}

// RefundOrderToCredits claims the terminal settlement transition and credits
// the buyer in the same transaction. A concurrent attempt that loses the
// conditional update rolls back without touching the balance.
func (s *Store) RefundOrderToCredits(ctx context.Context, orderID, userID string, amountCents int64) (bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `
		UPDATE orders SET settlement_status=$2, updated_at=now()
		WHERE id=$1 AND settlement_status IN ('hold','pending')
	`, orderID, models.SettlementRefunded)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, nil
	}

	res, err = tx.Exec(ctx, `
		UPDATE users SET credits_cents = credits_cents + $2, updated_at=now()
		WHERE id=$1
	`, userID, amountCents)
	if err != nil {
		return false, err
	}
	if res.RowsAffected() == 0 {
		return false, pgx.ErrNoRows
	}
	return true, tx.Commit(ctx)
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO notifications (id, to_user_id, from_admin_id, title, body, event, hidden)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, n.ID, n.ToUserID, nullIfEmpty(n.FromAdminID), n.Title, n.Body, n.Event, n.Hidden)
	return err
}

func (s *Store) NotificationsForUser(ctx context.Context, userID string) ([]*models.Notification, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, to_user_id, from_admin_id, title, body, event, hidden, created_at
		FROM notifications
		WHERE to_user_id=$1 AND hidden=false
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		var from sql.NullString
		if err := rows.Scan(&n.ID, &n.ToUserID, &from, &n.Title, &n.Body, &n.Event, &n.Hidden, &n.CreatedAt); err != nil {
			return nil, err
		}
		if from.Valid {
			n.FromAdminID = from.String
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *Store) HideNotification(ctx context.Context, id string) error {
	res, err := s.Pool.Exec(ctx, `UPDATE notifications SET hidden=true WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const campaignColumns = `
	SELECT id, name, code, description, price_cents, sizes,
		min_qty, funded, end_time, stage, expired, organization_id,
		created_at, updated_at`

const orderColumns = `
	SELECT id, user_id, campaign_id, quantity, size, total_cents,
		stage, payment_kind, charge_ref, settlement_status, placed_at,
		created_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Code,
		&c.Description,
		&c.PriceCents,
		&c.Sizes,
		&c.MinQty,
		&c.Funded,
		&c.EndTime,
		&c.Stage,
		&c.Expired,
		&c.OrganizationID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCampaigns(rows pgx.Rows) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var chargeRef sql.NullString
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.CampaignID,
		&o.Quantity,
		&o.Size,
		&o.TotalCents,
		&o.Stage,
		&o.Payment.Kind,
		&chargeRef,
		&o.Payment.Status,
		&o.PlacedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if chargeRef.Valid {
		o.Payment.ChargeRef = chargeRef.String
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
