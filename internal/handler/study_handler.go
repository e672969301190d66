package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/study"
)

// StudyManagerInterface は学習セッション管理のインターフェース。study.Managerが満たす。
type StudyManagerInterface interface {
	Start(userID, deckID, teamID string, cards []*model.Card) *study.State
	Get(userID, sessionID string) (*study.State, error)
	Next(userID, sessionID string) (*study.State, error)
	Grade(userID, sessionID string, quality int) (*study.State, error)
	Reset(userID, sessionID string) (*study.State, error)
	End(userID, sessionID string) error
}

// personalCardLister は個人デッキのカード取得。
type personalCardLister interface {
	ListCards(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error)
}

// teamCardSource はチームデッキのカード取得。
type teamCardSource interface {
	GetDeck(ctx context.Context, deckID, teamID string) (*model.Deck, error)
	ListCards(ctx context.Context, deckID, teamID string) ([]*model.Card, error)
}

// StudyHandler は学習キューのHTTPハンドラー。
type StudyHandler struct {
	manager   StudyManagerInterface
	decks     personalCardLister
	teamDecks teamCardSource
	gate      TeamGateInterface
}

// NewStudyHandler はStudyHandlerを生成する。
func NewStudyHandler(
	manager StudyManagerInterface,
	decks personalCardLister,
	teamDecks teamCardSource,
	gate TeamGateInterface,
) *StudyHandler {
	return &StudyHandler{
		manager:   manager,
		decks:     decks,
		teamDecks: teamDecks,
		gate:      gate,
	}
}

type startStudyRequest struct {
	DeckID string `json:"deckId"`
	TeamID string `json:"teamId"`
}

type gradeRequest struct {
	Quality *int `json:"quality"`
}

// Start はデッキのカードのスナップショットから学習セッションを開始する。
// teamIdを指定した場合はチームデッキとして扱い、メンバーシップを確認する。
// POST /api/study
func (h *StudyHandler) Start(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var req startStudyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeckID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRequiredFieldError("deckId"))
		return
	}

	cards, err := h.loadCards(r.Context(), sess, req.DeckID, req.TeamID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	st := h.manager.Start(sess.UserID, req.DeckID, req.TeamID, cards)
	writeJSON(w, http.StatusCreated, toStudyStateResponse(st))
}

func (h *StudyHandler) loadCards(ctx context.Context, sess *model.Session, deckID, teamID string) ([]*model.Card, error) {
	if teamID == "" {
		return h.decks.ListCards(ctx, sess, deckID)
	}

	if err := h.gate.RequireMember(ctx, sess, teamID); err != nil {
		return nil, err
	}
	d, err := h.teamDecks.GetDeck(ctx, deckID, teamID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, model.NewNotInTeamError("Deck")
	}
	return h.teamDecks.ListCards(ctx, deckID, teamID)
}

// Get は学習セッションの現在の状態を返す。
// GET /api/study/{sessionId}
func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.manager.Get)
}

// Next は評価せずに次のカードへ進む。最後のカードでは何もしない。
// POST /api/study/{sessionId}/next
func (h *StudyHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.manager.Next)
}

// Reset は先頭のカードに戻し、評価済み枚数を0にする。
// POST /api/study/{sessionId}/reset
func (h *StudyHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.manager.Reset)
}

func (h *StudyHandler) step(w http.ResponseWriter, r *http.Request, op func(userID, sessionID string) (*study.State, error)) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	st, err := op(sess.UserID, chi.URLParam(r, "sessionId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudyStateResponse(st))
}

// Grade は現在のカードを0〜5で評価して次へ進む。
// POST /api/study/{sessionId}/grade
func (h *StudyHandler) Grade(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var req gradeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quality == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewRequiredFieldError("quality"))
		return
	}

	st, err := h.manager.Grade(sess.UserID, chi.URLParam(r, "sessionId"), *req.Quality)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStudyStateResponse(st))
}

// End は学習セッションを破棄する。
// DELETE /api/study/{sessionId}
func (h *StudyHandler) End(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	if err := h.manager.End(sess.UserID, chi.URLParam(r, "sessionId")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
