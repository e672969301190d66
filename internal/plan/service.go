// Package plan はプレミアムプランの判定と購入URLの発行を提供する。
package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/blossom/internal/model"
)

// DefaultOfferID は購入時に使うデフォルトのオファーID。
const DefaultOfferID = "offer-2"

// subscriptionActive はIdPのユーザーメタデータで有効な購読を表す値。
const subscriptionActive = "active"

// Billing はIdPのユーザー参照と購入URL発行のインターフェース。
// identity.Clientが満たす。
type Billing interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	CreateCheckoutURL(ctx context.Context, userID, offerID string) (string, error)
}

// Status はユーザーのプラン状態。
type Status struct {
	Premium bool
}

// Service はプラン関連のサービス層。
type Service struct {
	billing        Billing
	defaultOfferID string
	logger         *slog.Logger
}

// NewService はServiceを生成する。defaultOfferIDが空の場合はDefaultOfferIDを使う。
func NewService(billing Billing, defaultOfferID string, logger *slog.Logger) *Service {
	if defaultOfferID == "" {
		defaultOfferID = DefaultOfferID
	}
	return &Service{billing: billing, defaultOfferID: defaultOfferID, logger: logger}
}

// Status は呼び出し元のプラン状態を返す。
// IdPにユーザーが存在しない場合は無料プランとして扱う。
func (s *Service) Status(ctx context.Context, sess *model.Session) (*Status, error) {
	u, err := s.billing.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザー情報の取得に失敗しました: %w", err)
	}
	if u == nil {
		return &Status{}, nil
	}
	return &Status{Premium: u.SubscriptionStatus == subscriptionActive}, nil
}

// CheckoutURL はプレミアムプラン購入ページのURLを発行する。
func (s *Service) CheckoutURL(ctx context.Context, sess *model.Session, offerID string) (string, error) {
	if offerID == "" {
		offerID = s.defaultOfferID
	}
	url, err := s.billing.CreateCheckoutURL(ctx, sess.UserID, offerID)
	if err != nil {
		return "", fmt.Errorf("購入URLの発行に失敗しました: %w", err)
	}
	s.logger.Info("購入URLを発行しました",
		slog.String("user_id", sess.UserID),
		slog.String("offer_id", offerID),
	)
	return url, nil
}
