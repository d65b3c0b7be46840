package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"unionmade-backend/internal/models"
)

var errClosed = errors.New("campaign is closed")

type fakeCheckoutStore struct {
	mu        sync.Mutex
	campaigns map[string]*models.Campaign
	orders    []*models.Order
}

func newFakeCheckoutStore(campaigns ...*models.Campaign) *fakeCheckoutStore {
	f := &fakeCheckoutStore{campaigns: map[string]*models.Campaign{}}
	for _, c := range campaigns {
		f.campaigns[c.ID] = c
	}
	return f
}

func (f *fakeCheckoutStore) GetCampaign(_ context.Context, id string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCheckoutStore) PlaceOrder(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[order.CampaignID]
	if !ok {
		return errors.New("no rows")
	}
	if c.Expired || !c.EndTime.After(time.Now().UTC()) {
		return errClosed
	}
	c.Funded += order.Quantity
	f.orders = append(f.orders, order)
	return nil
}

func openCampaign(id string, priceCents int64) *models.Campaign {
	return &models.Campaign{
		ID:         id,
		Name:       "tee-" + id,
		PriceCents: priceCents,
		MinQty:     10,
		EndTime:    time.Now().UTC().Add(24 * time.Hour),
		Stage:      models.StageMockup,
	}
}

func TestCheckoutValidation(t *testing.T) {
	svc := &CheckoutService{Store: newFakeCheckoutStore()}
	items := []CartItem{{CampaignID: "c1", Quantity: 1}}
	credits := Payment{Kind: models.PaymentCredits}

	if _, err := svc.Checkout(context.Background(), "", items, credits); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("empty user: err = %v, want ErrMissingUserID", err)
	}
	if _, err := svc.Checkout(context.Background(), "alice", nil, credits); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("empty cart: err = %v, want ErrEmptyCart", err)
	}
	card := Payment{Kind: models.PaymentCard}
	if _, err := svc.Checkout(context.Background(), "alice", items, card); !errors.Is(err, ErrMissingChargeRef) {
		t.Errorf("card without charge: err = %v, want ErrMissingChargeRef", err)
	}
	cheque := Payment{Kind: models.PaymentKind("cheque")}
	if _, err := svc.Checkout(context.Background(), "alice", items, cheque); !errors.Is(err, ErrUnknownPaymentKind) {
		t.Errorf("unknown kind: err = %v, want ErrUnknownPaymentKind", err)
	}
}

func TestCheckoutComputesTotalsServerSide(t *testing.T) {
	st := newFakeCheckoutStore(openCampaign("c1", 2500))
	svc := &CheckoutService{Store: st}

	placed, err := svc.Checkout(context.Background(), "alice",
		[]CartItem{{CampaignID: "c1", Quantity: 3, Size: "M"}},
		Payment{Kind: models.PaymentCard, ChargeRef: "ch_1"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(placed))
	}

	o := placed[0]
	if o.TotalCents != 7500 {
		t.Errorf("total = %d, want 7500 (3 x 2500)", o.TotalCents)
	}
	if o.Payment.Status != models.SettlementHold {
		t.Errorf("status = %s, want hold", o.Payment.Status)
	}
	if o.Payment.ChargeRef != "ch_1" {
		t.Errorf("charge ref = %q, want ch_1", o.Payment.ChargeRef)
	}
	if o.Stage != models.StageMockup {
		t.Errorf("stage = %s, want campaign stage Mockup", o.Stage)
	}
	if st.campaigns["c1"].Funded != 3 {
		t.Errorf("funded = %d, want 3", st.campaigns["c1"].Funded)
	}
}

func TestCheckoutInvalidQuantityKeepsEarlierItems(t *testing.T) {
	st := newFakeCheckoutStore(openCampaign("c1", 1000))
	svc := &CheckoutService{Store: st}

	placed, err := svc.Checkout(context.Background(), "alice",
		[]CartItem{
			{CampaignID: "c1", Quantity: 2},
			{CampaignID: "c1", Quantity: 0},
		},
		Payment{Kind: models.PaymentCredits})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
	if len(placed) != 1 {
		t.Errorf("placed %d orders, want the 1 placed before the failure", len(placed))
	}
	if st.campaigns["c1"].Funded != 2 {
		t.Errorf("funded = %d, want 2", st.campaigns["c1"].Funded)
	}
}

func TestCheckoutClosedCampaign(t *testing.T) {
	c := openCampaign("c1", 1000)
	c.EndTime = time.Now().UTC().Add(-time.Minute)
	st := newFakeCheckoutStore(c)
	svc := &CheckoutService{Store: st}

	placed, err := svc.Checkout(context.Background(), "alice",
		[]CartItem{{CampaignID: "c1", Quantity: 1}},
		Payment{Kind: models.PaymentCredits})
	if !errors.Is(err, errClosed) {
		t.Fatalf("err = %v, want the store's closed error", err)
	}
	if len(placed) != 0 {
		t.Errorf("placed %d orders, want 0", len(placed))
	}
	if c.Funded != 0 {
		t.Errorf("funded = %d, want 0 after rejected order", c.Funded)
	}
}

func TestConcurrentCheckoutsCountEveryOrder(t *testing.T) {
	st := newFakeCheckoutStore(openCampaign("c1", 1000))
	svc := &CheckoutService{Store: st}

	const buyers = 20
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), "alice",
				[]CartItem{{CampaignID: "c1", Quantity: 1}},
				Payment{Kind: models.PaymentCredits})
			if err != nil {
				t.Errorf("checkout: %v", err)
			}
		}()
	}
	wg.Wait()

	if st.campaigns["c1"].Funded != buyers {
		t.Errorf("funded = %d, want %d", st.campaigns["c1"].Funded, buyers)
	}
	if len(st.orders) != buyers {
		t.Errorf("orders = %d, want %d", len(st.orders), buyers)
	}
}
