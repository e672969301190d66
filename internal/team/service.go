package team

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

// 参加・退出の結果メッセージ。
const (
	MessageJoined        = "Successfully joined team"
	MessageAlreadyMember = "You are already a member of this team"
	MessageLeft          = "Successfully left team"
	MessageNotMember     = "You are not a member of this team"
)

// MembershipResult は参加・退出操作の結果。
// Teamは参加に成功した場合のみ設定される。
type MembershipResult struct {
	Message string
	Team    *model.Team
}

// Service はチーム操作と公開チームレジストリのサービス層。
type Service struct {
	provider  Provider
	registry  repository.PublicTeamRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() int64
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	provider Provider,
	registry repository.PublicTeamRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		provider:  provider,
		registry:  registry,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		now:       model.NowMillis,
		newID:     uuid.NewString,
	}
}

// CreateTeam はIdPにチームを作成して呼び出し元を追加し、公開チームとして登録する。
// 登録時のメンバー数は1。
func (s *Service) CreateTeam(ctx context.Context, sess *model.Session, name, description string) (*model.Team, *model.PublicTeam, error) {
	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return nil, nil, model.NewTeamValidationError("Team name is required")
	}
	description = s.sanitizer.Sanitize(description)

	t, err := s.provider.CreateTeam(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("チームの作成に失敗しました: %w", err)
	}
	if err := s.provider.AddUser(ctx, t.ID, sess.UserID); err != nil {
		return nil, nil, fmt.Errorf("作成者のチーム追加に失敗しました: %w", err)
	}

	now := s.now()
	pt := &model.PublicTeam{
		ID:          s.newID(),
		TeamID:      t.ID,
		Name:        name,
		Description: description,
		MemberCount: 1,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.registry.Create(ctx, pt); err != nil {
		return nil, nil, fmt.Errorf("公開チームの登録に失敗しました: %w", err)
	}

	s.logger.Info("チームを作成しました",
		slog.String("team_id", t.ID),
		slog.String("user_id", sess.UserID),
	)
	return t, pt, nil
}

// JoinTeam は呼び出し元をチームに追加し、メンバー数を1増やす。
// すでにメンバーの場合は何もせず成功として返す。
func (s *Service) JoinTeam(ctx context.Context, sess *model.Session, teamID string) (*MembershipResult, error) {
	t, err := s.requireTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}

	member, err := s.provider.GetUserTeam(ctx, sess.UserID, teamID)
	if err != nil {
		return nil, fmt.Errorf("メンバーシップの確認に失敗しました: %w", err)
	}
	if member != nil {
		return &MembershipResult{Message: MessageAlreadyMember}, nil
	}

	if err := s.provider.AddUser(ctx, teamID, sess.UserID); err != nil {
		return nil, fmt.Errorf("チームへの参加に失敗しました: %w", err)
	}
	if err := s.registry.IncrementMemberCount(ctx, teamID, s.now()); err != nil {
		return nil, fmt.Errorf("メンバー数の更新に失敗しました: %w", err)
	}
	s.metrics.RecordMemberCountChange("up")

	s.logger.Info("チームに参加しました",
		slog.String("team_id", teamID),
		slog.String("user_id", sess.UserID),
	)
	return &MembershipResult{Message: MessageJoined, Team: t}, nil
}

// LeaveTeam は呼び出し元をチームから外し、メンバー数を1減らす。
// メンバーでない場合は何もせず成功として返す。
func (s *Service) LeaveTeam(ctx context.Context, sess *model.Session, teamID string) (*MembershipResult, error) {
	if _, err := s.requireTeam(ctx, teamID); err != nil {
		return nil, err
	}

	member, err := s.provider.GetUserTeam(ctx, sess.UserID, teamID)
	if err != nil {
		return nil, fmt.Errorf("メンバーシップの確認に失敗しました: %w", err)
	}
	if member == nil {
		return &MembershipResult{Message: MessageNotMember}, nil
	}

	if err := s.provider.RemoveUser(ctx, teamID, sess.UserID); err != nil {
		return nil, fmt.Errorf("チームからの退出に失敗しました: %w", err)
	}
	if err := s.registry.DecrementMemberCount(ctx, teamID, s.now()); err != nil {
		return nil, fmt.Errorf("メンバー数の更新に失敗しました: %w", err)
	}
	s.metrics.RecordMemberCountChange("down")

	s.logger.Info("チームから退出しました",
		slog.String("team_id", teamID),
		slog.String("user_id", sess.UserID),
	)
	return &MembershipResult{Message: MessageLeft}, nil
}

func (s *Service) requireTeam(ctx context.Context, teamID string) (*model.Team, error) {
	if teamID == "" {
		return nil, model.NewTeamValidationError("Team ID is required")
	}
	t, err := s.provider.GetTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTeamNotFoundError()
	}
	return t, nil
}

// ListPublicTeams はアクティブな公開チームを作成日時の降順で返す。
func (s *Service) ListPublicTeams(ctx context.Context) ([]*model.PublicTeam, error) {
	teams, err := s.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("公開チーム一覧の取得に失敗しました: %w", err)
	}
	return teams, nil
}

// GetPublicTeam は公開チームを返す。登録がない場合はTEAM_NOT_FOUND。
func (s *Service) GetPublicTeam(ctx context.Context, teamID string) (*model.PublicTeam, error) {
	pt, err := s.registry.FindByTeamID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("公開チームの取得に失敗しました: %w", err)
	}
	if pt == nil {
		return nil, model.NewTeamNotFoundError()
	}
	return pt, nil
}

// UpdatePublicTeam はレジストリの名前・説明を部分更新する。
func (s *Service) UpdatePublicTeam(ctx context.Context, teamID string, patch model.PublicTeamPatch) (*model.PublicTeam, error) {
	var sanitized model.PublicTeamPatch
	if patch.Name != nil {
		name := s.sanitizer.Sanitize(*patch.Name)
		if name == "" {
			return nil, model.NewTeamValidationError("Team name is required")
		}
		sanitized.Name = &name
	}
	if patch.Description != nil {
		description := s.sanitizer.Sanitize(*patch.Description)
		sanitized.Description = &description
	}

	pt, err := s.registry.Update(ctx, teamID, sanitized, s.now())
	if err != nil {
		return nil, fmt.Errorf("公開チームの更新に失敗しました: %w", err)
	}
	if pt == nil {
		return nil, model.NewTeamNotFoundError()
	}
	return pt, nil
}

// DeactivateTeam は公開チームを一覧から外す。行とIdP上のチームは残る。
func (s *Service) DeactivateTeam(ctx context.Context, teamID string) error {
	if err := s.registry.Deactivate(ctx, teamID, s.now()); err != nil {
		return fmt.Errorf("公開チームの無効化に失敗しました: %w", err)
	}
	s.logger.Info("公開チームを無効化しました", slog.String("team_id", teamID))
	return nil
}
