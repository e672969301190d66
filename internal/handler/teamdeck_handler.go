package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blossom/internal/middleware"
	"github.com/hitoshi/blossom/internal/model"
)

// TeamDeckServiceInterface はチームデッキハンドラーが必要とするサービスインターフェース。
// teamdeck.Serviceが満たす。
type TeamDeckServiceInterface interface {
	ListDecks(ctx context.Context, teamID string) ([]*model.Deck, error)
	GetDeck(ctx context.Context, deckID, teamID string) (*model.Deck, error)
	CreateDeck(ctx context.Context, title, description, teamID, ownerID string) (*model.Deck, error)
	UpdateDeck(ctx context.Context, deckID, teamID string, patch model.DeckPatch) (*model.Deck, error)
	DeleteDeck(ctx context.Context, deckID, teamID string) error
	CardCounts(ctx context.Context, teamID string) (map[string]int, error)

	ListCards(ctx context.Context, deckID, teamID string) ([]*model.Card, error)
	SearchCards(ctx context.Context, deckID, teamID, query string) ([]*model.Card, error)
	CreateCard(ctx context.Context, deckID, front, back string, tags []string, teamID, ownerID string) (*model.Card, error)
	UpdateCard(ctx context.Context, cardID, teamID string, patch model.CardPatch) (*model.Card, error)
	DeleteCard(ctx context.Context, cardID, teamID string) error
}

// TeamDeckHandler はチームデッキとカードのHTTPハンドラー。
// すべての操作はメンバーシップ確認を経る。エラーは {"error": "..."} 形式で返す。
type TeamDeckHandler struct {
	service TeamDeckServiceInterface
	gate    TeamGateInterface
}

// NewTeamDeckHandler はTeamDeckHandlerを生成する。
func NewTeamDeckHandler(service TeamDeckServiceInterface, gate TeamGateInterface) *TeamDeckHandler {
	return &TeamDeckHandler{service: service, gate: gate}
}

// member はメンバーシップを確認し、セッションとチームIDを返す。
// 非メンバーの場合はエラーを書き込みokにfalseを返す。
func (h *TeamDeckHandler) member(w http.ResponseWriter, r *http.Request, failure string) (*model.Session, string, bool) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteTeamError(w, http.StatusUnauthorized, messageAuthRequired)
		return nil, "", false
	}

	teamID := chi.URLParam(r, "teamId")
	if err := h.gate.RequireMember(r.Context(), sess, teamID); err != nil {
		handleTeamError(w, err, failure)
		return nil, "", false
	}
	return sess, teamID, true
}

// ListDecks はチームのデッキ一覧とデッキ毎のカード枚数を返す。
// GET /api/teams/{teamId}/decks
func (h *TeamDeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to get team decks"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	decks, err := h.service.ListDecks(r.Context(), teamID)
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}
	counts, err := h.service.CardCounts(r.Context(), teamID)
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decks":      toDeckResponses(decks),
		"cardCounts": counts,
	})
}

// CreateDeck はチームデッキを作成する。
// POST /api/teams/{teamId}/decks
func (h *TeamDeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to create team deck"
	sess, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	var req createDeckRequest
	if !decodeTeamJSON(w, r, &req) {
		return
	}

	d, err := h.service.CreateDeck(r.Context(), req.Title, req.Description, teamID, sess.UserID)
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	writeJSON(w, http.StatusCreated, toDeckResponse(d))
}

// GetDeck はチームデッキを返す。
// GET /api/teams/{teamId}/decks/{deckId}
func (h *TeamDeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to get team deck"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	d, err := h.service.GetDeck(r.Context(), chi.URLParam(r, "deckId"), teamID)
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}
	if d == nil {
		middleware.WriteTeamError(w, http.StatusNotFound, model.NewNotInTeamError("Deck").Message)
		return
	}

	writeJSON(w, http.StatusOK, toDeckResponse(d))
}

// UpdateDeck はチームデッキを部分更新する。
// PATCH /api/teams/{teamId}/decks/{deckId}
func (h *TeamDeckHandler) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to update team deck"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	var req updateDeckRequest
	if !decodeTeamJSON(w, r, &req) {
		return
	}

	d, err := h.service.UpdateDeck(r.Context(), chi.URLParam(r, "deckId"), teamID, model.DeckPatch{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	writeJSON(w, http.StatusOK, toDeckResponse(d))
}

// DeleteDeck はチームデッキと所属カードを削除する。
// DELETE /api/teams/{teamId}/decks/{deckId}
func (h *TeamDeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to delete team deck"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	if err := h.service.DeleteDeck(r.Context(), chi.URLParam(r, "deckId"), teamID); err != nil {
		handleTeamError(w, err, failure)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCards はチームデッキのカード一覧を返す。
// GET /api/teams/{teamId}/decks/{deckId}/cards
func (h *TeamDeckHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to get team cards"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	cards, err := h.service.ListCards(r.Context(), chi.URLParam(r, "deckId"), teamID)
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": toCardResponses(cards)})
}

// SearchCards はチームデッキ内のカードを検索する。
// GET /api/teams/{teamId}/decks/{deckId}/cards/search?q=
func (h *TeamDeckHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to search team cards"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	cards, err := h.service.SearchCards(r.Context(), chi.URLParam(r, "deckId"), teamID, r.URL.Query().Get("q"))
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": toCardResponses(cards)})
}

// CreateCard はチームデッキにカードを追加する。
// POST /api/teams/{teamId}/decks/{deckId}/cards
func (h *TeamDeckHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to create team card"
	sess, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	var req createCardRequest
	if !decodeTeamJSON(w, r, &req) {
		return
	}

	c, err := h.service.CreateCard(r.Context(), chi.URLParam(r, "deckId"), req.Front, req.Back, req.Tags, teamID, sess.UserID)
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	writeJSON(w, http.StatusCreated, toCardResponse(c))
}

// UpdateCard はチームカードを部分更新する。
// PATCH /api/teams/{teamId}/cards/{cardId}
func (h *TeamDeckHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to update team card"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	var req updateCardRequest
	if !decodeTeamJSON(w, r, &req) {
		return
	}

	c, err := h.service.UpdateCard(r.Context(), chi.URLParam(r, "cardId"), teamID, model.CardPatch{
		Front: req.Front,
		Back:  req.Back,
		Tags:  req.Tags,
	})
	if err != nil {
		handleTeamError(w, err, failure)
		return
	}

	writeJSON(w, http.StatusOK, toCardResponse(c))
}

// DeleteCard はチームカードを削除する。
// DELETE /api/teams/{teamId}/cards/{cardId}
func (h *TeamDeckHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	const failure = "Failed to delete team card"
	_, teamID, ok := h.member(w, r, failure)
	if !ok {
		return
	}

	if err := h.service.DeleteCard(r.Context(), chi.URLParam(r, "cardId"), teamID); err != nil {
		handleTeamError(w, err, failure)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
