package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blossom/internal/middleware"
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/study"
	"github.com/hitoshi/blossom/internal/team"
)

// deckResponse はデッキ情報のAPIレスポンス。
type deckResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TeamID      string `json:"teamId,omitempty"`
	OwnerID     string `json:"ownerId,omitempty"`
	IsPublic    bool   `json:"isPublic"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// cardResponse はカード情報のAPIレスポンス。
type cardResponse struct {
	ID        string   `json:"id"`
	DeckID    string   `json:"deckId"`
	Front     string   `json:"front"`
	Back      string   `json:"back"`
	Tags      []string `json:"tags"`
	TeamID    string   `json:"teamId,omitempty"`
	OwnerID   string   `json:"ownerId,omitempty"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
}

type publicTeamResponse struct {
	ID          string `json:"id"`
	TeamID      string `json:"teamId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MemberCount int    `json:"memberCount"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

type studyStateResponse struct {
	SessionID  string        `json:"sessionId"`
	DeckID     string        `json:"deckId"`
	TeamID     string        `json:"teamId,omitempty"`
	Current    *cardResponse `json:"current"`
	Index      int           `json:"index"`
	Remaining  int           `json:"remaining"`
	Total      int           `json:"total"`
	Reviewed   int           `json:"reviewed"`
	IsComplete bool          `json:"isComplete"`
}

type teamSummaryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MemberCount int    `json:"memberCount"`
}

type previewDeckResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// teamPreviewResponse はメンバー数を含まない。
type teamPreviewResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Decks       []previewDeckResponse `json:"decks"`
	CanJoin     bool                  `json:"canJoin"`
}

type teamViewResponse struct {
	Visibility string               `json:"visibility"`
	Team       *teamSummaryResponse `json:"team,omitempty"`
	Preview    *teamPreviewResponse `json:"preview,omitempty"`
}

// --- 変換 ---

func toDeckResponse(d *model.Deck) deckResponse {
	return deckResponse{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		TeamID:      d.TeamID,
		OwnerID:     d.OwnerID,
		IsPublic:    d.IsPublic,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toDeckResponses(decks []*model.Deck) []deckResponse {
	out := make([]deckResponse, len(decks))
	for i, d := range decks {
		out[i] = toDeckResponse(d)
	}
	return out
}

func toCardResponse(c *model.Card) cardResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return cardResponse{
		ID:        c.ID,
		DeckID:    c.DeckID,
		Front:     c.Front,
		Back:      c.Back,
		Tags:      tags,
		TeamID:    c.TeamID,
		OwnerID:   c.OwnerID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toCardResponses(cards []*model.Card) []cardResponse {
	out := make([]cardResponse, len(cards))
	for i, c := range cards {
		out[i] = toCardResponse(c)
	}
	return out
}

func toPublicTeamResponse(pt *model.PublicTeam) publicTeamResponse {
	return publicTeamResponse{
		ID:          pt.ID,
		TeamID:      pt.TeamID,
		Name:        pt.Name,
		Description: pt.Description,
		MemberCount: pt.MemberCount,
		IsActive:    pt.IsActive,
		CreatedAt:   pt.CreatedAt,
		UpdatedAt:   pt.UpdatedAt,
	}
}

func toStudyStateResponse(st *study.State) studyStateResponse {
	resp := studyStateResponse{
		SessionID:  st.SessionID,
		DeckID:     st.DeckID,
		TeamID:     st.TeamID,
		Index:      st.Index,
		Remaining:  st.Remaining,
		Total:      st.Total,
		Reviewed:   st.Reviewed,
		IsComplete: st.IsComplete,
	}
	if st.Current != nil {
		c := toCardResponse(st.Current)
		resp.Current = &c
	}
	return resp
}

func toTeamViewResponse(v *team.View) teamViewResponse {
	resp := teamViewResponse{Visibility: string(v.Visibility)}
	if v.Team != nil {
		resp.Team = &teamSummaryResponse{
			ID:          v.Team.ID,
			Name:        v.Team.Name,
			Description: v.Team.Description,
			MemberCount: v.Team.MemberCount,
		}
	}
	if v.Preview != nil {
		p := &teamPreviewResponse{
			ID:          v.Preview.ID,
			Name:        v.Preview.Name,
			Description: v.Preview.Description,
			Decks:       make([]previewDeckResponse, len(v.Preview.Decks)),
			CanJoin:     v.Preview.CanJoin,
		}
		for i, d := range v.Preview.Decks {
			p.Decks[i] = previewDeckResponse{ID: d.ID, Title: d.Title, Description: d.Description}
		}
		resp.Preview = p
	}
	return resp
}

// --- 入出力ヘルパー ---

// writeJSON はステータスコードとJSONボディを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON はリクエストボディを解析する。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(r, dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// decodeBody はJSONボディを解析する。空のボディはゼロ値のままエラーにしない。
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// requireSession はコンテキストのセッションを返す。未認証の場合は401を書き込みnilを返す。
func requireSession(w http.ResponseWriter, r *http.Request) *model.Session {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil
	}
	return sess
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// handleTeamError はチームAPI向けに {"error": "..."} 形式でエラーを書き込む。
// APIError以外のエラーはfallbackメッセージの500とする。
func handleTeamError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteTeamError(w, mapAPIErrorToHTTPStatus(apiErr), apiErr.Message)
		return
	}

	slog.Error(fallback, slog.String("error", err.Error()))
	middleware.WriteTeamError(w, http.StatusInternalServerError, fallback)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeValidation, model.ErrCodeInvalidGrade:
		return http.StatusBadRequest
	case model.ErrCodeNotTeamMember:
		return http.StatusForbidden
	case model.ErrCodeDeckNotFound, model.ErrCodeCardNotFound, model.ErrCodeNotInTeam,
		model.ErrCodeTeamNotFound, model.ErrCodeStudySessionNotFound:
		return http.StatusNotFound
	case model.ErrCodeStudyComplete:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
