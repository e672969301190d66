package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blossom/internal/model"
)

const deckColumns = `id, title, description, team_id, owner_id, is_public, created_at, updated_at`

// PostgresDeckRepo はPostgreSQLを使用したデッキリポジトリ。
type PostgresDeckRepo struct {
	db *sql.DB
}

// NewPostgresDeckRepo はPostgresDeckRepoを生成する。
func NewPostgresDeckRepo(db *sql.DB) *PostgresDeckRepo {
	return &PostgresDeckRepo{db: db}
}

// scanDeck は1行分のデッキを読み取る。
func scanDeck(s rowScanner) (*model.Deck, error) {
	deck := &model.Deck{}
	var description, teamID, ownerID sql.NullString

	if err := s.Scan(
		&deck.ID, &deck.Title, &description, &teamID, &ownerID,
		&deck.IsPublic, &deck.CreatedAt, &deck.UpdatedAt,
	); err != nil {
		return nil, err
	}

	deck.Description = nullStringValue(description)
	deck.TeamID = nullStringValue(teamID)
	deck.OwnerID = nullStringValue(ownerID)
	return deck, nil
}

// FindByID は指定IDのデッキを取得する。見つからない場合はnilを返す。
func (r *PostgresDeckRepo) FindByID(ctx context.Context, id string) (*model.Deck, error) {
	deck, err := scanDeck(r.db.QueryRowContext(ctx,
		`SELECT `+deckColumns+` FROM decks WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
	}
	return deck, nil
}

// ListByOwner はチームに属さない、指定ユーザー所有のデッキを作成日時の降順で返す。
func (r *PostgresDeckRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Deck, error) {
	return r.list(ctx,
		`SELECT `+deckColumns+` FROM decks
		 WHERE owner_id = $1 AND team_id IS NULL
		 ORDER BY created_at DESC`,
		ownerID,
	)
}

// ListByTeam は指定チームのデッキを作成日時の降順で返す。
func (r *PostgresDeckRepo) ListByTeam(ctx context.Context, teamID string) ([]*model.Deck, error) {
	return r.list(ctx,
		`SELECT `+deckColumns+` FROM decks
		 WHERE team_id = $1
		 ORDER BY created_at DESC`,
		teamID,
	)
}

func (r *PostgresDeckRepo) list(ctx context.Context, query string, args ...any) ([]*model.Deck, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("デッキ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	decks := []*model.Deck{}
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("デッキ行の読み取りに失敗しました: %w", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デッキ一覧の走査に失敗しました: %w", err)
	}
	return decks, nil
}

// Create はデッキを作成する。
func (r *PostgresDeckRepo) Create(ctx context.Context, deck *model.Deck) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decks (`+deckColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		deck.ID, deck.Title, nullString(deck.Description),
		nullString(deck.TeamID), nullString(deck.OwnerID),
		deck.IsPublic, deck.CreatedAt, deck.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("デッキの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はpatchのnilでないフィールドとupdated_atを更新し、更新後のデッキを返す。
// 見つからない場合はnilを返す。
func (r *PostgresDeckRepo) Update(ctx context.Context, id string, patch model.DeckPatch, now int64) (*model.Deck, error) {
	setTitle, title := optionalString(patch.Title)
	setDescription, description := optionalString(patch.Description)

	deck, err := scanDeck(r.db.QueryRowContext(ctx,
		`UPDATE decks SET
		    title = CASE WHEN $2 THEN $3 ELSE title END,
		    description = CASE WHEN $4 THEN $5 ELSE description END,
		    updated_at = GREATEST($6, updated_at + 1)
		 WHERE id = $1
		 RETURNING `+deckColumns,
		id, setTitle, title, setDescription, nullString(description), now,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("デッキの更新に失敗しました: %w", err)
	}
	return deck, nil
}

// Delete は指定IDのデッキを削除する。
func (r *PostgresDeckRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("デッキの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DeckRepository = (*PostgresDeckRepo)(nil)
