// Package teamdeck はチームに属するデッキとカードのドメインロジックを提供する。
//
// すべての操作は呼び出し元が指定したチームIDを受け取り、対象を読み込んだ上で
// 保存されているチームIDと比較する。一致しない、または存在しない場合は
// "not found or not in team" として扱い、何も変更しない。
// メンバーシップの確認は呼び出し元（ハンドラー）の責務。
package teamdeck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/blossom/internal/deck"
	"github.com/hitoshi/blossom/internal/metrics"
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/repository"
	"github.com/hitoshi/blossom/internal/security"
)

// Service はチームデッキ・カードのサービス層。
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

func (s *Service) teamDeck(ctx context.Context, deckID, teamID string) (*model.Deck, error) {
	d, err := s.decks.FindByID(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
	}
	if d == nil || teamID == "" || d.TeamID != teamID {
		return nil, model.NewNotInTeamError("Deck")
	}
	return d, nil
}

func (s *Service) teamCard(ctx context.Context, cardID, teamID string) (*model.Card, error) {
	c, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if c == nil || teamID == "" || c.TeamID != teamID {
		return nil, model.NewNotInTeamError("Card")
	}
	return c, nil
}

// ListDecks はチームのデッキを作成日時の降順で返す。
func (s *Service) ListDecks(ctx context.Context, teamID string) ([]*model.Deck, error) {
	decks, err := s.decks.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームデッキ一覧の取得に失敗しました: %w", err)
	}
	return decks, nil
}

// GetDeck はチームのデッキを返す。存在しない、または別チームの場合はnilを返す。
func (s *Service) GetDeck(ctx context.Context, deckID, teamID string) (*model.Deck, error) {
	d, err := s.teamDeck(ctx, deckID, teamID)
	if model.IsAPIError(err) {
		return nil, nil
	}
	return d, err
}

// CreateDeck はチームデッキを作成する。チームデッキは常に公開（isPublic=true）。
func (s *Service) CreateDeck(ctx context.Context, title, description, teamID, ownerID string) (*model.Deck, error) {
	title = s.sanitizer.Sanitize(title)
	if title == "" {
		return nil, model.NewRequiredFieldError("title")
	}
	if teamID == "" {
		return nil, model.NewRequiredFieldError("teamId")
	}

	now := s.now()
	d := &model.Deck{
		ID:          s.newID(),
		Title:       title,
		Description: s.sanitizer.Sanitize(description),
		TeamID:      teamID,
		OwnerID:     ownerID,
		IsPublic:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.decks.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("チームデッキの作成に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("deck", "create")
	return d, nil
}

// UpdateDeck はチームデッキを部分更新する。
func (s *Service) UpdateDeck(ctx context.Context, deckID, teamID string, patch model.DeckPatch) (*model.Deck, error) {
	if _, err := s.teamDeck(ctx, deckID, teamID); err != nil {
		return nil, err
	}

	patch, err := deck.SanitizeDeckPatch(s.sanitizer, patch)
	if err != nil {
		return nil, err
	}

	d, err := s.decks.Update(ctx, deckID, patch, s.now())
	if err != nil {
		return nil, fmt.Errorf("チームデッキの更新に失敗しました: %w", err)
	}
	if d == nil {
		return nil, model.NewNotInTeamError("Deck")
	}

	s.metrics.RecordMutation("deck", "update")
	return d, nil
}

// DeleteDeck はデッキIDとチームIDの両方が一致するカードを削除してからデッキを削除する。
func (s *Service) DeleteDeck(ctx context.Context, deckID, teamID string) error {
	if _, err := s.teamDeck(ctx, deckID, teamID); err != nil {
		return err
	}

	cards, err := s.cards.ListByDeckAndTeam(ctx, deckID, teamID)
	if err != nil {
		return fmt.Errorf("削除対象カードの取得に失敗しました: %w", err)
	}
	for _, c := range cards {
		if err := s.cards.Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("カードの削除に失敗しました: %w", err)
		}
	}
	if err := s.decks.Delete(ctx, deckID); err != nil {
		return fmt.Errorf("チームデッキの削除に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("deck", "delete")
	s.logger.Info("チームデッキを削除しました",
		slog.String("deck_id", deckID),
		slog.String("team_id", teamID),
		slog.Int("cards_deleted", len(cards)),
	)
	return nil
}

// ListCards はデッキかつチームが一致するカードを作成日時の降順で返す。
// デッキの存在は確認しない。
func (s *Service) ListCards(ctx context.Context, deckID, teamID string) ([]*model.Card, error) {
	cards, err := s.cards.ListByDeckAndTeam(ctx, deckID, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームカード一覧の取得に失敗しました: %w", err)
	}
	return cards, nil
}

// SearchCards はチームカードを取得してから、表・裏・タグで絞り込む。
func (s *Service) SearchCards(ctx context.Context, deckID, teamID, query string) ([]*model.Card, error) {
	cards, err := s.ListCards(ctx, deckID, teamID)
	if err != nil {
		return nil, err
	}
	return deck.FilterCards(cards, query), nil
}

// CreateCard はチームデッキにカードを追加する。デッキがチームに属していなければ拒否する。
func (s *Service) CreateCard(ctx context.Context, deckID, front, back string, tags []string, teamID, ownerID string) (*model.Card, error) {
	d, err := s.teamDeck(ctx, deckID, teamID)
	if err != nil {
		return nil, err
	}

	c, err := deck.NewCard(s.sanitizer, d, front, back, tags, ownerID, s.now())
	if err != nil {
		return nil, err
	}
	c.ID = s.newID()

	if err := s.cards.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("チームカードの作成に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("card", "create")
	return c, nil
}

// UpdateCard はチームカードを部分更新する。
func (s *Service) UpdateCard(ctx context.Context, cardID, teamID string, patch model.CardPatch) (*model.Card, error) {
	if _, err := s.teamCard(ctx, cardID, teamID); err != nil {
		return nil, err
	}

	patch, err := deck.SanitizeCardPatch(s.sanitizer, patch)
	if err != nil {
		return nil, err
	}

	c, err := s.cards.Update(ctx, cardID, patch, s.now())
	if err != nil {
		return nil, fmt.Errorf("チームカードの更新に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewNotInTeamError("Card")
	}

	s.metrics.RecordMutation("card", "update")
	return c, nil
}

// DeleteCard はチームカードを削除する。
func (s *Service) DeleteCard(ctx context.Context, cardID, teamID string) error {
	if _, err := s.teamCard(ctx, cardID, teamID); err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, cardID); err != nil {
		return fmt.Errorf("チームカードの削除に失敗しました: %w", err)
	}

	s.metrics.RecordMutation("card", "delete")
	return nil
}

// CardCounts はチームの全カードを走査し、デッキごとの枚数を返す。
// 結果はキャッシュせず、呼び出しごとに再計算する。
func (s *Service) CardCounts(ctx context.Context, teamID string) (map[string]int, error) {
	cards, err := s.cards.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームカードの取得に失敗しました: %w", err)
	}

	counts := make(map[string]int)
	for _, c := range cards {
		counts[c.DeckID]++
	}
	return counts, nil
}
