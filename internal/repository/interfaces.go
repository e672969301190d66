// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/blossom/internal/model"
)

// DeckRepository はデッキデータの永続化インターフェース。
type DeckRepository interface {
	// FindByID は指定IDのデッキを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Deck, error)

	// ListByOwner はチームに属さない、指定ユーザー所有のデッキを作成日時の降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Deck, error)

	// ListByTeam は指定チームのデッキを作成日時の降順で返す。
	ListByTeam(ctx context.Context, teamID string) ([]*model.Deck, error)

	// Create はデッキを作成する。
	Create(ctx context.Context, deck *model.Deck) error

	// Update はpatchのnilでないフィールドとupdated_atを更新し、更新後のデッキを返す。
	// updated_atは max(now, 現在値+1) に設定される。見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.DeckPatch, now int64) (*model.Deck, error)

	// Delete は指定IDのデッキを削除する。カードは削除しない。
	Delete(ctx context.Context, id string) error
}

// CardRepository はカードデータの永続化インターフェース。
type CardRepository interface {
	// FindByID は指定IDのカードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Card, error)

	// ListByDeck はデッキのカードを作成日時の降順で返す。
	ListByDeck(ctx context.Context, deckID string) ([]*model.Card, error)

	// ListByDeckAndTeam はデッキかつチームが一致するカードを作成日時の降順で返す。
	ListByDeckAndTeam(ctx context.Context, deckID, teamID string) ([]*model.Card, error)

	// ListByTeam はチームに属する全カードを返す。
	ListByTeam(ctx context.Context, teamID string) ([]*model.Card, error)

	// CountByDecks は指定デッキごとのカード数を返す。カードのないデッキはマップに含まれない。
	CountByDecks(ctx context.Context, deckIDs []string) (map[string]int, error)

	// Create はカードを作成する。
	Create(ctx context.Context, card *model.Card) error

	// Update はpatchのnilでないフィールドとupdated_atを更新し、更新後のカードを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, patch model.CardPatch, now int64) (*model.Card, error)

	// Delete は指定IDのカードを削除する。
	Delete(ctx context.Context, id string) error

	// DeleteOrphans は所属デッキが存在しないカードを削除し、削除件数を返す。
	DeleteOrphans(ctx context.Context) (int64, error)
}

// ErrDuplicatePublicTeam は同じIDまたは外部チームIDの公開チームが既に存在する場合のエラー。
var ErrDuplicatePublicTeam = errors.New("public team already exists")

// PublicTeamRepository は公開チームレジストリの永続化インターフェース。
type PublicTeamRepository interface {
	// FindByTeamID は外部チームIDで公開チームを取得する。見つからない場合はnilを返す。
	FindByTeamID(ctx context.Context, teamID string) (*model.PublicTeam, error)

	// ListActive はアクティブな公開チームを作成日時の降順で返す。
	ListActive(ctx context.Context) ([]*model.PublicTeam, error)

	// Create は公開チームを作成する。重複時はErrDuplicatePublicTeamを返す。
	Create(ctx context.Context, team *model.PublicTeam) error

	// Update はpatchのnilでないフィールドを更新する。見つからない場合はnilを返す。
	Update(ctx context.Context, teamID string, patch model.PublicTeamPatch, now int64) (*model.PublicTeam, error)

	// IncrementMemberCount はメンバー数を1増やす。チームが存在しない場合は何もしない。
	IncrementMemberCount(ctx context.Context, teamID string, now int64) error

	// DecrementMemberCount はメンバー数を1減らす。0未満にはしない。
	// チームが存在しない場合は何もしない。
	DecrementMemberCount(ctx context.Context, teamID string, now int64) error

	// Deactivate はチームをis_active=falseにする。行は削除しない。
	Deactivate(ctx context.Context, teamID string, now int64) error
}

// HealthChecker はストアの疎通確認インターフェース。
// *sql.DB と MemoryStore が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
