package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"unionmade-backend/internal/models"
	"unionmade-backend/internal/services"
	"unionmade-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

type Handler struct {
	Checkout  *services.CheckoutService
	Campaigns *services.CampaignService
	Store     *store.Store
}

func NewHandler(checkout *services.CheckoutService, campaigns *services.CampaignService, st *store.Store) *Handler {
	return &Handler{Checkout: checkout, Campaigns: campaigns, Store: st}
}

type campaignResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Code           string   `json:"code,omitempty"`
	Description    string   `json:"description,omitempty"`
	PriceCents     int64    `json:"priceCents"`
	Sizes          []string `json:"sizes,omitempty"`
	MinQty         int      `json:"minQty"`
	Funded         int      `json:"funded"`
	EndTime        string   `json:"endTime"`
	Stage          string   `json:"stage"`
	Expired        bool     `json:"expired"`
	OrganizationID string   `json:"organizationId"`
}

func toCampaignResponse(c *models.Campaign) campaignResponse {
	return campaignResponse{
		ID:             c.ID,
		Name:           c.Name,
		Code:           c.Code,
		Description:    c.Description,
		PriceCents:     c.PriceCents,
		Sizes:          c.Sizes,
		MinQty:         c.MinQty,
		Funded:         c.Funded,
		EndTime:        c.EndTime.Format(time.RFC3339),
		Stage:          string(c.Stage),
		Expired:        c.Expired,
		OrganizationID: c.OrganizationID,
	}
}

type orderResponse struct {
	ID               string `json:"id"`
	CampaignID       string `json:"campaignId"`
	Quantity         int    `json:"quantity"`
	Size             string `json:"size,omitempty"`
	TotalCents       int64  `json:"totalCents"`
	Stage            string `json:"stage"`
	PaymentKind      string `json:"paymentKind"`
	SettlementStatus string `json:"settlementStatus"`
	PlacedAt         string `json:"placedAt"`
}

func toOrderResponse(o *models.Order) orderResponse {
	return orderResponse{
		ID:               o.ID,
		CampaignID:       o.CampaignID,
		Quantity:         o.Quantity,
		Size:             o.Size,
		TotalCents:       o.TotalCents,
		Stage:            string(o.Stage),
		PaymentKind:      string(o.Payment.Kind),
		SettlementStatus: string(o.Payment.Status),
		PlacedAt:         o.PlacedAt.Format(time.RFC3339),
	}
}

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	includeExpired := r.URL.Query().Get("all") == "1"
	campaigns, err := h.Store.ListCampaigns(r.Context(), includeExpired)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list campaigns failed")
		return
	}
	out := make([]campaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toCampaignResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignId")
	c, err := h.Store.GetCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get campaign failed")
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

type checkoutRequest struct {
	Items []struct {
		CampaignID string `json:"campaignId"`
		Quantity   int    `json:"quantity"`
		Size       string `json:"size"`
	} `json:"items"`
	Payment struct {
		Method    string `json:"method"`
		ChargeRef string `json:"chargeRef"`
	} `json:"payment"`
}

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	items := make([]services.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, services.CartItem{
			CampaignID: it.CampaignID,
			Quantity:   it.Quantity,
			Size:       it.Size,
		})
	}
	pay := services.Payment{
		Kind:      models.PaymentKind(req.Payment.Method),
		ChargeRef: req.Payment.ChargeRef,
	}

	userID := r.Header.Get("X-User-Id")
	placed, err := h.Checkout.Checkout(r.Context(), userID, items, pay)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingUserID):
			writeError(w, http.StatusUnauthorized, "missing user id")
		case errors.Is(err, services.ErrEmptyCart),
			errors.Is(err, services.ErrInvalidQuantity),
			errors.Is(err, services.ErrMissingChargeRef),
			errors.Is(err, services.ErrUnknownPaymentKind):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrCampaignClosed):
			writeError(w, http.StatusConflict, "campaign is closed for orders")
		case errors.Is(err, store.ErrInsufficientCredits):
			writeError(w, http.StatusPaymentRequired, "insufficient credits")
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "campaign not found")
		default:
			writeError(w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	out := make([]orderResponse, 0, len(placed))
	for _, o := range placed {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	orders, err := h.Store.OrdersByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list orders failed")
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListMyNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}
	notifications, err := h.Store.NotificationsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list notifications failed")
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *Handler) HideNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationId")
	if err := h.Store.HideNotification(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "hide notification failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success": "notification hidden"})
}

type campaignRequest struct {
	Name           string   `json:"name"`
	Code           string   `json:"code"`
	Description    string   `json:"description"`
	PriceCents     int64    `json:"priceCents"`
	Sizes          []string `json:"sizes"`
	MinQty         int      `json:"minQty"`
	EndTime        string   `json:"endTime"`
	OrganizationID string   `json:"organizationId"`
}

func (req campaignRequest) toInput() (services.CampaignInput, error) {
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return services.CampaignInput{}, err
	}
	return services.CampaignInput{
		Name:           req.Name,
		Code:           req.Code,
		Description:    req.Description,
		PriceCents:     req.PriceCents,
		Sizes:          req.Sizes,
		MinQty:         req.MinQty,
		EndTime:        endTime,
		OrganizationID: req.OrganizationID,
	}, nil
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end time")
		return
	}

	c, err := h.Campaigns.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCampaign) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "create campaign failed")
		return
	}
	writeJSON(w, http.StatusCreated, toCampaignResponse(c))
}

func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignId")
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end time")
		return
	}

	c, err := h.Campaigns.Update(r.Context(), id, in)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "campaign not found")
		case errors.Is(err, services.ErrCampaignFrozen):
			writeError(w, http.StatusConflict, "campaign is expired and frozen")
		case errors.Is(err, services.ErrInvalidCampaign):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "update campaign failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

func (h *Handler) DiscontinueCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignId")
	if err := h.Campaigns.Discontinue(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "discontinue campaign failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success": "campaign discontinued"})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list orders failed")
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	if err := h.Campaigns.RefundOrder(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusBadGateway, "refund failed, order left for retry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success": "order refunded"})
}

type orderStatusRequest struct {
	Stage string `json:"stage"`
}

func (h *Handler) SetOrderStage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	var req orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	adminID := r.Header.Get("X-Admin-Id")
	err := h.Campaigns.SetOrderStage(r.Context(), adminID, id, models.Stage(req.Stage))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStage):
			writeError(w, http.StatusBadRequest, "invalid stage")
		case errors.Is(err, pgx.ErrNoRows):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			writeError(w, http.StatusInternalServerError, "update order failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success": "order status updated"})
}
