// Package deck は個人デッキとそのカードのドメインロジックを提供する。
// 個人デッキはチームに属さず、所有者本人だけが参照・変更できる。
package deck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/blossom/internal/metrics"
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/repository"
	"github.com/hitoshi/blossom/internal/security"
)

// Service は個人デッキ・カードのサービス層。
type Service struct {
	decks     repository.DeckRepository
	cards     repository.CardRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() int64
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	decks repository.DeckRepository,
	cards repository.CardRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		decks:     decks,
		cards:     cards,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		now:       model.NowMillis,
		newID:     uuid.NewString,
	}
}

// ownedDeck は呼び出し元の個人デッキを取得する。
// 存在しない、チームデッキ、他人のデッキのいずれも見つからないものとして扱う。
func (s *Service) ownedDeck(ctx context.Context, sess *model.Session, deckID string) (*model.Deck, error) {
	d, err := s.decks.FindByID(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
	}
	if d == nil || d.TeamID != "" || d.OwnerID != sess.UserID {
		return nil, model.NewDeckNotFoundError(deckID)
	}
	return d, nil
}

// ownedCard は呼び出し元の個人デッキに属するカードを取得する。
func (s *Service) ownedCard(ctx context.Context, sess *model.Session, cardID string) (*model.Card, error) {
	c, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCardNotFoundError(cardID)
	}
	if _, err := s.ownedDeck(ctx, sess, c.DeckID); err != nil {
		if model.IsAPIError(err) {
			return nil, model.NewCardNotFoundError(cardID)
		}
		return nil, err
	}
	return c, nil
}

// ListDecks は呼び出し元の個人デッキを作成日時の降順で返す。
func (s *Service) ListDecks(ctx context.Context, sess *model.Session) ([]*model.Deck, error) {
	decks, err := s.decks.ListByOwner(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("デッキ一覧の取得に失敗しました: %w", err)
	}
	return decks, nil
}

// GetDeck は個人デッキを1件返す。
func (s *Service) GetDeck(ctx context.Context, sess *model.Session, deckID string) (*model.Deck, error) {
	return s.ownedDeck(ctx, sess, deckID)
}

// CreateDeck は個人デッキを作成する。作成直後はCreatedAtとUpdatedAtが等しい。
func (s *Service) CreateDeck(ctx context.Context, sess *model.Session, title, description string) (*model.Deck, error) {
	title = s.sanitizer.Sanitize(title)
	if title == "" {
		return nil, model.NewRequiredFieldError("title")
	}

	now := s.now()
	d := &model.Deck{
		ID:          s.newID(),
		Title:       title,
		Description: s.sanitizer.Sanitize(description),
		OwnerID:     sess.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.decks.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("デッキの作成に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("deck", "create")
	return d, nil
}

// UpdateDeck はpatchで指定されたフィールドのみを更新する。UpdatedAtは必ず増加する。
func (s *Service) UpdateDeck(ctx context.Context, sess *model.Session, deckID string, patch model.DeckPatch) (*model.Deck, error) {
	if _, err := s.ownedDeck(ctx, sess, deckID); err != nil {
		return nil, err
	}

	patch, err := SanitizeDeckPatch(s.sanitizer, patch)
	if err != nil {
		return nil, err
	}

	d, err := s.decks.Update(ctx, deckID, patch, s.now())
	if err != nil {
		return nil, fmt.Errorf("デッキの更新に失敗しました: %w", err)
	}
	if d == nil {
		return nil, model.NewDeckNotFoundError(deckID)
	}

	s.metrics.RecordMutation("deck", "update")
	return d, nil
}

// DeleteDeck はデッキのカードを1枚ずつ削除してからデッキを削除する。
// 途中で失敗した場合は一部のカードだけが削除された状態になりうる。
func (s *Service) DeleteDeck(ctx context.Context, sess *model.Session, deckID string) error {
	if _, err := s.ownedDeck(ctx, sess, deckID); err != nil {
		return err
	}

	cards, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return fmt.Errorf("削除対象カードの取得に失敗しました: %w", err)
	}
	for _, c := range cards {
		if err := s.cards.Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("カードの削除に失敗しました: %w", err)
		}
	}
	if err := s.decks.Delete(ctx, deckID); err != nil {
		return fmt.Errorf("デッキの削除に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("deck", "delete")
	s.logger.Info("デッキを削除しました",
		slog.String("deck_id", deckID),
		slog.String("user_id", sess.UserID),
		slog.Int("cards_deleted", len(cards)),
	)
	return nil
}

// ListCards はデッキのカードを作成日時の降順で返す。
func (s *Service) ListCards(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error) {
	if _, err := s.ownedDeck(ctx, sess, deckID); err != nil {
		return nil, err
	}

	cards, err := s.cards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}
	return cards, nil
}

// SearchCards はデッキの全カードを取得してから、表・裏・タグで絞り込む。
func (s *Service) SearchCards(ctx context.Context, sess *model.Session, deckID, query string) ([]*model.Card, error) {
	cards, err := s.ListCards(ctx, sess, deckID)
	if err != nil {
		return nil, err
	}
	return FilterCards(cards, query), nil
}

// GetCard はカードを1件返す。
func (s *Service) GetCard(ctx context.Context, sess *model.Session, cardID string) (*model.Card, error) {
	return s.ownedCard(ctx, sess, cardID)
}

// CreateCard はデッキにカードを追加する。TeamIDはデッキからコピーする。
func (s *Service) CreateCard(ctx context.Context, sess *model.Session, deckID, front, back string, tags []string) (*model.Card, error) {
	d, err := s.ownedDeck(ctx, sess, deckID)
	if err != nil {
		return nil, err
	}

	c, err := NewCard(s.sanitizer, d, front, back, tags, sess.UserID, s.now())
	if err != nil {
		return nil, err
	}
	c.ID = s.newID()

	if err := s.cards.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("カードの作成に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("card", "create")
	return c, nil
}

// UpdateCard はpatchで指定されたフィールドのみを更新する。
func (s *Service) UpdateCard(ctx context.Context, sess *model.Session, cardID string, patch model.CardPatch) (*model.Card, error) {
	if _, err := s.ownedCard(ctx, sess, cardID); err != nil {
		return nil, err
	}

	patch, err := SanitizeCardPatch(s.sanitizer, patch)
	if err != nil {
		return nil, err
	}

	c, err := s.cards.Update(ctx, cardID, patch, s.now())
	if err != nil {
		return nil, fmt.Errorf("カードの更新に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCardNotFoundError(cardID)
	}

	s.metrics.RecordMutation("card", "update")
	return c, nil
}

// DeleteCard はカードを削除する。
func (s *Service) DeleteCard(ctx context.Context, sess *model.Session, cardID string) error {
	if _, err := s.ownedCard(ctx, sess, cardID); err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, cardID); err != nil {
		return fmt.Errorf("カードの削除に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("card", "delete")
	return nil
}

// CardCounts は呼び出し元の個人デッキごとのカード数を返す。
// カードのないデッキも0として含める。
func (s *Service) CardCounts(ctx context.Context, sess *model.Session) (map[string]int, error) {
	decks, err := s.ListDecks(ctx, sess)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(decks))
	for i, d := range decks {
		ids[i] = d.ID
	}

	counts, err := s.cards.CountByDecks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("カード数の集計に失敗しました: %w", err)
	}
	for _, id := range ids {
		if _, ok := counts[id]; !ok {
			counts[id] = 0
		}
	}
	return counts, nil
}
