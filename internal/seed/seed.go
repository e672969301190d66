// Package seed は新規ユーザー向けのデモデッキを投入する。
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/blossom/internal/model"
)

//go:embed demo_deck.yaml
var demoDeckYAML []byte

// DemoDeck はYAMLで定義するデモデッキ。
type DemoDeck struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Cards       []DemoCard `yaml:"cards"`
}

// DemoCard はデモデッキのカード。
type DemoCard struct {
	Front string   `yaml:"front"`
	Back  string   `yaml:"back"`
	Tags  []string `yaml:"tags"`
}

// DeckWriter はシード投入に必要な個人デッキ操作。deck.Serviceが満たす。
type DeckWriter interface {
	ListDecks(ctx context.Context, sess *model.Session) ([]*model.Deck, error)
	CreateDeck(ctx context.Context, sess *model.Session, title, description string) (*model.Deck, error)
	CreateCard(ctx context.Context, sess *model.Session, deckID, front, back string, tags []string) (*model.Card, error)
}

// LoadDemoDeck は埋め込みのデモデッキ定義を読み込む。
func LoadDemoDeck() (*DemoDeck, error) {
	return parseDemoDeck(demoDeckYAML)
}

func parseDemoDeck(data []byte) (*DemoDeck, error) {
	var d DemoDeck
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("デモデッキ定義の解析に失敗しました: %w", err)
	}
	if d.Title == "" {
		return nil, fmt.Errorf("デモデッキのタイトルが空です")
	}
	return &d, nil
}

// Seeder はデモデッキを投入する。
// 同一ユーザーのSeedはプロセス内で直列化する。
type Seeder struct {
	decks  DeckWriter
	demo   *DemoDeck
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewSeeder は埋め込みのデモデッキを使うSeederを生成する。
func NewSeeder(decks DeckWriter, logger *slog.Logger) (*Seeder, error) {
	demo, err := LoadDemoDeck()
	if err != nil {
		return nil, err
	}
	return &Seeder{decks: decks, demo: demo, logger: logger, locks: make(map[string]*userLock)}, nil
}

// lockUser はユーザー単位のロックを取得し、解放関数を返す。
// 待機者がいなくなったロックはmapから取り除く。
func (s *Seeder) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

// Seed は呼び出し元がデッキを1つも持っていない場合にデモデッキを作成する。
// 作成したデッキを返し、既存デッキがある場合はnilを返す。
func (s *Seeder) Seed(ctx context.Context, sess *model.Session) (*model.Deck, error) {
	unlock := s.lockUser(sess.UserID)
	defer unlock()

	existing, err := s.decks.ListDecks(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		s.logger.Info("既存のデッキがあるためシードをスキップしました",
			slog.String("user_id", sess.UserID),
			slog.Int("deck_count", len(existing)),
		)
		return nil, nil
	}

	d, err := s.decks.CreateDeck(ctx, sess, s.demo.Title, s.demo.Description)
	if err != nil {
		return nil, err
	}
	for _, c := range s.demo.Cards {
		if _, err := s.decks.CreateCard(ctx, sess, d.ID, c.Front, c.Back, c.Tags); err != nil {
			return nil, fmt.Errorf("デモカードの作成に失敗しました: %w", err)
		}
	}

	s.logger.Info("デモデッキを作成しました",
		slog.String("user_id", sess.UserID),
		slog.String("deck_id", d.ID),
		slog.Int("card_count", len(s.demo.Cards)),
	)
	return d, nil
}
