package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blossom/internal/middleware"
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/team"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
// team.Serviceが満たす。
type TeamServiceInterface interface {
	CreateTeam(ctx context.Context, sess *model.Session, name, description string) (*model.Team, *model.PublicTeam, error)
	JoinTeam(ctx context.Context, sess *model.Session, teamID string) (*team.MembershipResult, error)
	LeaveTeam(ctx context.Context, sess *model.Session, teamID string) (*team.MembershipResult, error)

	ListPublicTeams(ctx context.Context) ([]*model.PublicTeam, error)
	GetPublicTeam(ctx context.Context, teamID string) (*model.PublicTeam, error)
	UpdatePublicTeam(ctx context.Context, teamID string, patch model.PublicTeamPatch) (*model.PublicTeam, error)
	DeactivateTeam(ctx context.Context, teamID string) error
}

// TeamGateInterface はチームの可視性判定のインターフェース。team.Gateが満たす。
type TeamGateInterface interface {
	View(ctx context.Context, sess *model.Session, teamID string) (*team.View, error)
	RequireMember(ctx context.Context, sess *model.Session, teamID string) error
}

// 認証が必要なチームAPIの401メッセージ。
const messageAuthRequired = "Authentication required"

// TeamHandler はチームの作成・参加・退出と公開チームのHTTPハンドラー。
// エラーは {"error": "..."} 形式で返す。
type TeamHandler struct {
	service TeamServiceInterface
	gate    TeamGateInterface
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface, gate TeamGateInterface) *TeamHandler {
	return &TeamHandler{service: service, gate: gate}
}

type createTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type teamIDRequest struct {
	TeamID string `json:"teamId"`
}

type updateTeamRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type teamResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type membershipResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Team    *teamResponse `json:"team,omitempty"`
}

// requireTeamSession はセッションのないリクエストに {"error": "Authentication required"} の401を返す。
func requireTeamSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.SessionFromContext(r.Context()) == nil {
			middleware.WriteTeamError(w, http.StatusUnauthorized, messageAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeTeamJSON はチームAPIのリクエストボディを解析する。失敗時は400を書き込む。
func decodeTeamJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(r, dst); err != nil {
		middleware.WriteTeamError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// CreateTeam はチームを作成し、呼び出し元を追加して公開チームとして登録する。
// POST /api/teams/create
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if !decodeTeamJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		middleware.WriteTeamError(w, http.StatusBadRequest, "Team name is required")
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteTeamError(w, http.StatusUnauthorized, messageAuthRequired)
		return
	}

	t, pt, err := h.service.CreateTeam(r.Context(), sess, req.Name, req.Description)
	if err != nil {
		handleTeamError(w, err, "Failed to create team. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"team":       teamResponse{ID: t.ID, Name: t.DisplayName, Description: t.Description},
		"publicTeam": toPublicTeamResponse(pt),
	})
}

// JoinTeam は呼び出し元をチームに参加させる。
// POST /api/teams/join
func (h *TeamHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.JoinTeam, "Failed to join team. Please try again.")
}

// LeaveTeam は呼び出し元をチームから退出させる。
// POST /api/teams/leave
func (h *TeamHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.LeaveTeam, "Failed to leave team. Please try again.")
}

func (h *TeamHandler) membership(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, sess *model.Session, teamID string) (*team.MembershipResult, error),
	failure string,
) {
	var req teamIDRequest
	if !decodeTeamJSON(w, r, &req) {
		return
	}
	if req.TeamID == "" {
		middleware.WriteTeamError(w, http.StatusBadRequest, "Team ID is required")
		return
	}

	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteTeamError(w, http.StatusUnauthorized, messageAuthRequired)
		return
	}

	result, err := op(r.Context(), sess, req.TeamID)
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	resp := membershipResponse{Success: true, Message: result.Message}
	if result.Team != nil {
		resp.Team = &teamResponse{ID: result.Team.ID, Name: result.Team.DisplayName}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTeam はチームページの表示内容を返す。
// 未サインインの場合はvisibilityのみ、非メンバーにはプレビューを返す。
// GET /api/teams/{teamId}
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	view, err := h.gate.View(r.Context(), sess, chi.URLParam(r, "teamId"))
	if err != nil {
		handleTeamError(w, err, "Failed to get team")
		return
	}

	writeJSON(w, http.StatusOK, toTeamViewResponse(view))
}

// UpdateTeam は公開チームの名前・説明を更新する。メンバーのみ。
// PATCH /api/teams/{teamId}
func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamId")
	if err := h.gate.RequireMember(r.Context(), middleware.SessionFromContext(r.Context()), teamID); err != nil {
		handleTeamError(w, err, "Failed to update team")
		return
	}

	var req updateTeamRequest
	if !decodeTeamJSON(w, r, &req) {
		return
	}

	pt, err := h.service.UpdatePublicTeam(r.Context(), teamID, model.PublicTeamPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleTeamError(w, err, "Failed to update team")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"publicTeam": toPublicTeamResponse(pt)})
}

// DeactivateTeam は公開チームを一覧から外す。メンバーのみ。
// POST /api/teams/{teamId}/deactivate
func (h *TeamHandler) DeactivateTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamId")
	if err := h.gate.RequireMember(r.Context(), middleware.SessionFromContext(r.Context()), teamID); err != nil {
		handleTeamError(w, err, "Failed to deactivate team")
		return
	}

	if err := h.service.DeactivateTeam(r.Context(), teamID); err != nil {
		handleTeamError(w, err, "Failed to deactivate team")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListPublicTeams はアクティブな公開チームの一覧を返す。
// GET /api/public-teams
func (h *TeamHandler) ListPublicTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListPublicTeams(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]publicTeamResponse, len(teams))
	for i, pt := range teams {
		out[i] = toPublicTeamResponse(pt)
	}
	writeJSON(w, http.StatusOK, map[string]any{"publicTeams": out})
}

// GetPublicTeam は公開チームを1件返す。
// GET /api/public-teams/{teamId}
func (h *TeamHandler) GetPublicTeam(w http.ResponseWriter, r *http.Request) {
	pt, err := h.service.GetPublicTeam(r.Context(), chi.URLParam(r, "teamId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPublicTeamResponse(pt))
}
