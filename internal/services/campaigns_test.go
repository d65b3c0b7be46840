package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"unionmade-backend/internal/models"
	"unionmade-backend/internal/settlement"
)

type fakeCampaignStore struct {
	campaigns map[string]*models.Campaign
	orders    map[string]*models.Order
	updated   []*models.Campaign
	staged    map[string]models.Stage
}

func newFakeCampaignStore() *fakeCampaignStore {
	return &fakeCampaignStore{
		campaigns: map[string]*models.Campaign{},
		orders:    map[string]*models.Order{},
		staged:    map[string]models.Stage{},
	}
}

func (f *fakeCampaignStore) CreateCampaign(_ context.Context, c *models.Campaign) error {
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeCampaignStore) GetCampaign(_ context.Context, id string) (*models.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignStore) ListCampaigns(context.Context, bool) ([]*models.Campaign, error) {
	return nil, nil
}

func (f *fakeCampaignStore) UpdateCampaignDetails(_ context.Context, c *models.Campaign) error {
	f.updated = append(f.updated, c)
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeCampaignStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeCampaignStore) UpdateOrderStage(_ context.Context, orderID string, stage models.Stage) error {
	f.staged[orderID] = stage
	return nil
}

type noticeRecorder struct {
	notices []settlement.Notice
	err     error
}

func (r *noticeRecorder) Notify(_ context.Context, n settlement.Notice) error {
	if r.err != nil {
		return r.err
	}
	r.notices = append(r.notices, n)
	return nil
}

func validInput() CampaignInput {
	return CampaignInput{
		Name:           "union tee",
		Code:           "UT-1",
		PriceCents:     2500,
		Sizes:          []string{"S", "M", "L"},
		MinQty:         10,
		EndTime:        time.Now().Add(72 * time.Hour),
		OrganizationID: "org1",
	}
}

func TestCreateCampaign(t *testing.T) {
	st := newFakeCampaignStore()
	svc := &CampaignService{Store: st}

	c, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" {
		t.Error("campaign should get an id")
	}
	if c.Stage != models.StageMockup {
		t.Errorf("stage = %s, want Mockup", c.Stage)
	}
	if c.Expired {
		t.Error("new campaign must be open")
	}
	if _, ok := st.campaigns[c.ID]; !ok {
		t.Error("campaign not persisted")
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	svc := &CampaignService{Store: newFakeCampaignStore()}

	cases := map[string]func(*CampaignInput){
		"no name":    func(in *CampaignInput) { in.Name = "" },
		"zero price": func(in *CampaignInput) { in.PriceCents = 0 },
		"zero min":   func(in *CampaignInput) { in.MinQty = 0 },
		"no end":     func(in *CampaignInput) { in.EndTime = time.Time{} },
		"no org":     func(in *CampaignInput) { in.OrganizationID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrInvalidCampaign) {
				t.Errorf("err = %v, want ErrInvalidCampaign", err)
			}
		})
	}
}

func TestUpdateRejectsExpiredCampaign(t *testing.T) {
	st := newFakeCampaignStore()
	st.campaigns["c1"] = &models.Campaign{ID: "c1", Name: "old", Expired: true}
	svc := &CampaignService{Store: st}

	_, err := svc.Update(context.Background(), "c1", validInput())
	if !errors.Is(err, ErrCampaignFrozen) {
		t.Fatalf("err = %v, want ErrCampaignFrozen", err)
	}
	if len(st.updated) != 0 {
		t.Error("frozen campaign must not be written")
	}
}

func TestUpdateCampaign(t *testing.T) {
	st := newFakeCampaignStore()
	st.campaigns["c1"] = &models.Campaign{
		ID: "c1", Name: "old", PriceCents: 1000, MinQty: 5,
		EndTime: time.Now().Add(time.Hour), Stage: models.StageMockup,
	}
	svc := &CampaignService{Store: st}

	in := validInput()
	c, err := svc.Update(context.Background(), "c1", in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.Name != in.Name || c.PriceCents != in.PriceCents || c.MinQty != in.MinQty {
		t.Errorf("updated campaign = %+v", c)
	}
	if len(st.updated) != 1 {
		t.Fatalf("updates = %d, want 1", len(st.updated))
	}
}

func TestSetOrderStageNotifiesBuyer(t *testing.T) {
	st := newFakeCampaignStore()
	st.orders["o1"] = &models.Order{ID: "o1", UserID: "alice", Stage: models.StagePreProduction}
	rec := &noticeRecorder{}
	svc := &CampaignService{Store: st, Notifier: rec}

	if err := svc.SetOrderStage(context.Background(), "admin1", "o1", models.StageProduction); err != nil {
		t.Fatalf("set stage: %v", err)
	}
	if st.staged["o1"] != models.StageProduction {
		t.Errorf("stage = %s, want Production", st.staged["o1"])
	}
	if len(rec.notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(rec.notices))
	}
	n := rec.notices[0]
	if n.UserID != "alice" || n.Event != EventOrderStatusChanged {
		t.Errorf("notice = %+v", n)
	}
}

func TestSetOrderStageRejectsUnknownStage(t *testing.T) {
	svc := &CampaignService{Store: newFakeCampaignStore()}
	err := svc.SetOrderStage(context.Background(), "admin1", "o1", models.Stage("Folded"))
	if !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("err = %v, want ErrInvalidStage", err)
	}
}

func TestSetOrderStageSurvivesNotifierFailure(t *testing.T) {
	st := newFakeCampaignStore()
	st.orders["o1"] = &models.Order{ID: "o1", UserID: "alice"}
	svc := &CampaignService{Store: st, Notifier: &noticeRecorder{err: errors.New("smtp down")}}

	if err := svc.SetOrderStage(context.Background(), "admin1", "o1", models.StageShipped); err != nil {
		t.Fatalf("set stage: %v", err)
	}
	if st.staged["o1"] != models.StageShipped {
		t.Errorf("stage = %s, want Shipped despite notifier failure", st.staged["o1"])
	}
}
