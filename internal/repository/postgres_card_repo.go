package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blossom/internal/model"
	"github.com/lib/pq"
)

const cardColumns = `id, deck_id, front, back, tags, team_id, owner_id, created_at, updated_at`

// PostgresCardRepo はPostgreSQLを使用したカードリポジトリ。
// タグはtext[]列に保存し、pq.Arrayで読み書きする。
type PostgresCardRepo struct {
	db *sql.DB
}

// NewPostgresCardRepo はPostgresCardRepoを生成する。
func NewPostgresCardRepo(db *sql.DB) *PostgresCardRepo {
	return &PostgresCardRepo{db: db}
}

// scanCard は1行分のカードを読み取る。
func scanCard(s rowScanner) (*model.Card, error) {
	card := &model.Card{}
	var teamID, ownerID sql.NullString
	var tags pq.StringArray

	if err := s.Scan(
		&card.ID, &card.DeckID, &card.Front, &card.Back, &tags,
		&teamID, &ownerID, &card.CreatedAt, &card.UpdatedAt,
	); err != nil {
		return nil, err
	}

	card.Tags = []string(tags)
	if card.Tags == nil {
		card.Tags = []string{}
	}
	card.TeamID = nullStringValue(teamID)
	card.OwnerID = nullStringValue(ownerID)
	return card, nil
}

// FindByID は指定IDのカードを取得する。見つからない場合はnilを返す。
func (r *PostgresCardRepo) FindByID(ctx context.Context, id string) (*model.Card, error) {
	card, err := scanCard(r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	return card, nil
}

// ListByDeck はデッキのカードを作成日時の降順で返す。
func (r *PostgresCardRepo) ListByDeck(ctx context.Context, deckID string) ([]*model.Card, error) {
	return r.list(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE deck_id = $1 ORDER BY created_at DESC`,
		deckID,
	)
}

// ListByDeckAndTeam はデッキかつチームが一致するカードを作成日時の降順で返す。
func (r *PostgresCardRepo) ListByDeckAndTeam(ctx context.Context, deckID, teamID string) ([]*model.Card, error) {
	return r.list(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE deck_id = $1 AND team_id = $2
		 ORDER BY created_at DESC`,
		deckID, teamID,
	)
}

// ListByTeam はチームに属する全カードを返す。
func (r *PostgresCardRepo) ListByTeam(ctx context.Context, teamID string) ([]*model.Card, error) {
	return r.list(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE team_id = $1 ORDER BY created_at DESC`,
		teamID,
	)
}

func (r *PostgresCardRepo) list(ctx context.Context, query string, args ...any) ([]*model.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	cards := []*model.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("カード行の読み取りに失敗しました: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カード一覧の走査に失敗しました: %w", err)
	}
	return cards, nil
}

// CountByDecks は指定デッキごとのカード数を返す。
func (r *PostgresCardRepo) CountByDecks(ctx context.Context, deckIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(deckIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT deck_id, COUNT(*) FROM cards WHERE deck_id = ANY($1) GROUP BY deck_id`,
		pq.Array(deckIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("デッキ別カード数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var deckID string
		var count int
		if err := rows.Scan(&deckID, &count); err != nil {
			return nil, fmt.Errorf("デッキ別カード数の読み取りに失敗しました: %w", err)
		}
		counts[deckID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デッキ別カード数の走査に失敗しました: %w", err)
	}
	return counts, nil
}

// Create はカードを作成する。
func (r *PostgresCardRepo) Create(ctx context.Context, card *model.Card) error {
	tags := card.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (`+cardColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		card.ID, card.DeckID, card.Front, card.Back, pq.Array(tags),
		nullString(card.TeamID), nullString(card.OwnerID),
		card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("カードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はpatchのnilでないフィールドとupdated_atを更新し、更新後のカードを返す。
// 見つからない場合はnilを返す。
func (r *PostgresCardRepo) Update(ctx context.Context, id string, patch model.CardPatch, now int64) (*model.Card, error) {
	setFront, front := optionalString(patch.Front)
	setBack, back := optionalString(patch.Back)
	setTags := patch.Tags != nil
	tags := []string{}
	if setTags && *patch.Tags != nil {
		tags = *patch.Tags
	}

	card, err := scanCard(r.db.QueryRowContext(ctx,
		`UPDATE cards SET
		    front = CASE WHEN $2 THEN $3 ELSE front END,
		    back = CASE WHEN $4 THEN $5 ELSE back END,
		    tags = CASE WHEN $6 THEN $7::text[] ELSE tags END,
		    updated_at = GREATEST($8, updated_at + 1)
		 WHERE id = $1
		 RETURNING `+cardColumns,
		id, setFront, front, setBack, back, setTags, pq.Array(tags), now,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カードの更新に失敗しました: %w", err)
	}
	return card, nil
}

// Delete は指定IDのカードを削除する。
func (r *PostgresCardRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id); err != nil {
		return fmt.Errorf("カードの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteOrphans は所属デッキが存在しないカードを削除し、削除件数を返す。
// デッキ削除のカスケードが途中で中断された場合の後始末に使用する。
func (r *PostgresCardRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cards c
		 WHERE NOT EXISTS (SELECT 1 FROM decks d WHERE d.id = c.deck_id)`,
	)
	if err != nil {
		return 0, fmt.Errorf("孤立カードの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ CardRepository = (*PostgresCardRepo)(nil)
