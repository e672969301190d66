package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/plan"
)

func TestPlanHandler_Me(t *testing.T) {
	svc := &mockPlanService{
		statusFn: func(ctx context.Context, sess *model.Session) (*plan.Status, error) {
			return &plan.Status{Premium: sess.UserID == "premium-user"}, nil
		},
	}
	h := NewPlanHandler(svc)

	tests := []struct {
		userID string
		want   bool
	}{
		{"premium-user", true},
		{"free-user", false},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodGet, "/api/plans/me", nil), tt.userID)
			w := httptest.NewRecorder()

			h.Me(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			result := decodeResponse(t, w)
			if result["premium"] != tt.want {
				t.Errorf("premium = %v, want %v", result["premium"], tt.want)
			}
		})
	}
}

func TestPlanHandler_Me_ProviderFailure(t *testing.T) {
	svc := &mockPlanService{
		statusFn: func(ctx context.Context, sess *model.Session) (*plan.Status, error) {
			return nil, errors.New("timeout")
		},
	}
	h := NewPlanHandler(svc)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/plans/me", nil), "user-123")
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestPlanHandler_Checkout(t *testing.T) {
	var gotOffer string
	svc := &mockPlanService{
		checkoutURLFn: func(ctx context.Context, sess *model.Session, offerID string) (string, error) {
			gotOffer = offerID
			return "https://billing.example.com/c/123", nil
		},
	}
	h := NewPlanHandler(svc)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/plans/checkout", bytes.NewBufferString(`{"offerId": "offer-9"}`)), "user-123")
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotOffer != "offer-9" {
		t.Errorf("offerID = %q, want %q", gotOffer, "offer-9")
	}
	result := decodeResponse(t, w)
	if result["url"] != "https://billing.example.com/c/123" {
		t.Errorf("url = %v", result["url"])
	}
}

func TestPlanHandler_Checkout_EmptyBodyUsesDefault(t *testing.T) {
	var gotOffer = "unset"
	svc := &mockPlanService{
		checkoutURLFn: func(ctx context.Context, sess *model.Session, offerID string) (string, error) {
			gotOffer = offerID
			return "https://billing.example.com/c/1", nil
		},
	}
	h := NewPlanHandler(svc)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/plans/checkout", nil), "user-123")
	w := httptest.NewRecorder()

	h.Checkout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotOffer != "" {
		t.Errorf("offerID = %q, want empty so the service applies its default", gotOffer)
	}
}
