package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/plan"
)

// PlanServiceInterface はプランハンドラーが必要とするサービスインターフェース。
// plan.Serviceが満たす。
type PlanServiceInterface interface {
	Status(ctx context.Context, sess *model.Session) (*plan.Status, error)
	CheckoutURL(ctx context.Context, sess *model.Session, offerID string) (string, error)
}

// PlanHandler はプレミアムプランのHTTPハンドラー。
type PlanHandler struct {
	service PlanServiceInterface
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(service PlanServiceInterface) *PlanHandler {
	return &PlanHandler{service: service}
}

type checkoutRequest struct {
	OfferID string `json:"offerId"`
}

// Me は呼び出し元がプレミアムプランかどうかを返す。
// GET /api/plans/me
func (h *PlanHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	st, err := h.service.Status(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"premium": st.Premium})
}

// Checkout は購入ページのURLを返す。offerIdを省略するとデフォルトのオファーを使う。
// POST /api/plans/checkout
func (h *PlanHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	url, err := h.service.CheckoutURL(r.Context(), sess, req.OfferID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}
