package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blossom/internal/model"
)

const publicTeamColumns = `id, team_id, name, description, member_count, is_active, created_at, updated_at`

// PostgresPublicTeamRepo はPostgreSQLを使用した公開チームリポジトリ。
type PostgresPublicTeamRepo struct {
	db *sql.DB
}

// NewPostgresPublicTeamRepo はPostgresPublicTeamRepoを生成する。
func NewPostgresPublicTeamRepo(db *sql.DB) *PostgresPublicTeamRepo {
	return &PostgresPublicTeamRepo{db: db}
}

func scanPublicTeam(s rowScanner) (*model.PublicTeam, error) {
	team := &model.PublicTeam{}
	var description sql.NullString

	if err := s.Scan(
		&team.ID, &team.TeamID, &team.Name, &description,
		&team.MemberCount, &team.IsActive, &team.CreatedAt, &team.UpdatedAt,
	); err != nil {
		return nil, err
	}
	team.Description = nullStringValue(description)
	return team, nil
}

// FindByTeamID は外部チームIDで公開チームを取得する。見つからない場合はnilを返す。
func (r *PostgresPublicTeamRepo) FindByTeamID(ctx context.Context, teamID string) (*model.PublicTeam, error) {
	team, err := scanPublicTeam(r.db.QueryRowContext(ctx,
		`SELECT `+publicTeamColumns+` FROM public_teams WHERE team_id = $1`,
		teamID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("公開チームの取得に失敗しました: %w", err)
	}
	return team, nil
}

// ListActive はアクティブな公開チームを作成日時の降順で返す。
func (r *PostgresPublicTeamRepo) ListActive(ctx context.Context) ([]*model.PublicTeam, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+publicTeamColumns+` FROM public_teams
		 WHERE is_active = true
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("公開チーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	teams := []*model.PublicTeam{}
	for rows.Next() {
		team, err := scanPublicTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("公開チーム行の読み取りに失敗しました: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("公開チーム一覧の走査に失敗しました: %w", err)
	}
	return teams, nil
}

// Create は公開チームを作成する。
func (r *PostgresPublicTeamRepo) Create(ctx context.Context, team *model.PublicTeam) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO public_teams (`+publicTeamColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		team.ID, team.TeamID, team.Name, nullString(team.Description),
		team.MemberCount, team.IsActive, team.CreatedAt, team.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicatePublicTeam
	}
	if err != nil {
		return fmt.Errorf("公開チームの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はpatchのnilでないフィールドを更新する。見つからない場合はnilを返す。
func (r *PostgresPublicTeamRepo) Update(ctx context.Context, teamID string, patch model.PublicTeamPatch, now int64) (*model.PublicTeam, error) {
	setName, name := optionalString(patch.Name)
	setDescription, description := optionalString(patch.Description)

	team, err := scanPublicTeam(r.db.QueryRowContext(ctx,
		`UPDATE public_teams SET
		    name = CASE WHEN $2 THEN $3 ELSE name END,
		    description = CASE WHEN $4 THEN $5 ELSE description END,
		    updated_at = GREATEST($6, updated_at + 1)
		 WHERE team_id = $1
		 RETURNING `+publicTeamColumns,
		teamID, setName, name, setDescription, nullString(description), now,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("公開チームの更新に失敗しました: %w", err)
	}
	return team, nil
}

// IncrementMemberCount はメンバー数を1増やす。
// 読み取りと書き込みを1文で行うため、同時参加でも加算は失われない。
func (r *PostgresPublicTeamRepo) IncrementMemberCount(ctx context.Context, teamID string, now int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE public_teams
		 SET member_count = member_count + 1, updated_at = GREATEST($2, updated_at + 1)
		 WHERE team_id = $1`,
		teamID, now,
	)
	if err != nil {
		return fmt.Errorf("メンバー数の加算に失敗しました: %w", err)
	}
	return nil
}

// DecrementMemberCount はメンバー数を1減らす。0のときは何もしない。
func (r *PostgresPublicTeamRepo) DecrementMemberCount(ctx context.Context, teamID string, now int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE public_teams
		 SET member_count = member_count - 1, updated_at = GREATEST($2, updated_at + 1)
		 WHERE team_id = $1 AND member_count > 0`,
		teamID, now,
	)
	if err != nil {
		return fmt.Errorf("メンバー数の減算に失敗しました: %w", err)
	}
	return nil
}

// Deactivate はチームをis_active=falseにする。
func (r *PostgresPublicTeamRepo) Deactivate(ctx context.Context, teamID string, now int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE public_teams
		 SET is_active = false, updated_at = GREATEST($2, updated_at + 1)
		 WHERE team_id = $1`,
		teamID, now,
	)
	if err != nil {
		return fmt.Errorf("公開チームの無効化に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PublicTeamRepository = (*PostgresPublicTeamRepo)(nil)
