package plan

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/blossom/internal/model"
)

type mockBilling struct {
	getUserFn  func(ctx context.Context, userID string) (*model.User, error)
	checkoutFn func(ctx context.Context, userID, offerID string) (string, error)
}

func (m *mockBilling) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockBilling) CreateCheckoutURL(ctx context.Context, userID, offerID string) (string, error) {
	if m.checkoutFn != nil {
		return m.checkoutFn(ctx, userID, offerID)
	}
	return "", nil
}

func TestService_Status(t *testing.T) {
	tests := []struct {
		name    string
		user    *model.User
		premium bool
	}{
		{"active", &model.User{ID: "u1", SubscriptionStatus: "active"}, true},
		{"canceled", &model.User{ID: "u1", SubscriptionStatus: "canceled"}, false},
		{"no metadata", &model.User{ID: "u1"}, false},
		{"unknown user", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockBilling{getUserFn: func(context.Context, string) (*model.User, error) {
				return tt.user, nil
			}}, "", slog.Default())

			st, err := svc.Status(context.Background(), &model.Session{UserID: "u1"})
			require.NoError(t, err)
			assert.Equal(t, tt.premium, st.Premium)
		})
	}
}

func TestService_Status_ProviderError(t *testing.T) {
	svc := NewService(&mockBilling{getUserFn: func(context.Context, string) (*model.User, error) {
		return nil, errors.New("timeout")
	}}, "", slog.Default())

	_, err := svc.Status(context.Background(), &model.Session{UserID: "u1"})
	assert.ErrorContains(t, err, "timeout")
}

func TestService_CheckoutURL_DefaultOffer(t *testing.T) {
	var gotOffer, gotUser string
	billing := &mockBilling{checkoutFn: func(_ context.Context, userID, offerID string) (string, error) {
		gotUser, gotOffer = userID, offerID
		return "https://pay.example.com/c/1", nil
	}}

	svc := NewService(billing, "", slog.Default())
	url, err := svc.CheckoutURL(context.Background(), &model.Session{UserID: "u1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/c/1", url)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, DefaultOfferID, gotOffer)

	_, err = svc.CheckoutURL(context.Background(), &model.Session{UserID: "u1"}, "offer-9")
	require.NoError(t, err)
	assert.Equal(t, "offer-9", gotOffer)

	configured := NewService(billing, "offer-3", slog.Default())
	_, err = configured.CheckoutURL(context.Background(), &model.Session{UserID: "u1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "offer-3", gotOffer)
}
