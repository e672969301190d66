package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blossom/internal/model"
)

// DeckServiceInterface は個人デッキハンドラーが必要とするサービスインターフェース。
// deck.Serviceが満たす。
type DeckServiceInterface interface {
	ListDecks(ctx context.Context, sess *model.Session) ([]*model.Deck, error)
	GetDeck(ctx context.Context, sess *model.Session, deckID string) (*model.Deck, error)
	CreateDeck(ctx context.Context, sess *model.Session, title, description string) (*model.Deck, error)
	UpdateDeck(ctx context.Context, sess *model.Session, deckID string, patch model.DeckPatch) (*model.Deck, error)
	DeleteDeck(ctx context.Context, sess *model.Session, deckID string) error
	CardCounts(ctx context.Context, sess *model.Session) (map[string]int, error)

	ListCards(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error)
	SearchCards(ctx context.Context, sess *model.Session, deckID, query string) ([]*model.Card, error)
	GetCard(ctx context.Context, sess *model.Session, cardID string) (*model.Card, error)
	CreateCard(ctx context.Context, sess *model.Session, deckID, front, back string, tags []string) (*model.Card, error)
	UpdateCard(ctx context.Context, sess *model.Session, cardID string, patch model.CardPatch) (*model.Card, error)
	DeleteCard(ctx context.Context, sess *model.Session, cardID string) error
}

// SeederInterface はデモデッキ投入のインターフェース。seed.Seederが満たす。
type SeederInterface interface {
	Seed(ctx context.Context, sess *model.Session) (*model.Deck, error)
}

// DeckHandler は個人デッキとカードのHTTPハンドラー。
type DeckHandler struct {
	service DeckServiceInterface
	seeder  SeederInterface
}

// NewDeckHandler はDeckHandlerを生成する。
func NewDeckHandler(service DeckServiceInterface, seeder SeederInterface) *DeckHandler {
	return &DeckHandler{service: service, seeder: seeder}
}

type createDeckRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateDeckRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type createCardRequest struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Tags  []string `json:"tags"`
}

type updateCardRequest struct {
	Front *string   `json:"front"`
	Back  *string   `json:"back"`
	Tags  *[]string `json:"tags"`
}

// ListDecks は呼び出し元の個人デッキ一覧を返す。
// GET /api/decks
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	decks, err := h.service.ListDecks(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"decks": toDeckResponses(decks)})
}

// CreateDeck はデッキを作成する。
// POST /api/decks
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var req createDeckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.service.CreateDeck(r.Context(), sess, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDeckResponse(d))
}

// CardCounts はデッキごとのカード枚数を返す。
// GET /api/decks/card-counts
func (h *DeckHandler) CardCounts(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	counts, err := h.service.CardCounts(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cardCounts": counts})
}

// GetDeck はデッキを返す。
// GET /api/decks/{deckId}
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	d, err := h.service.GetDeck(r.Context(), sess, chi.URLParam(r, "deckId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDeckResponse(d))
}

// UpdateDeck はデッキのタイトル・説明を部分更新する。
// PATCH /api/decks/{deckId}
func (h *DeckHandler) UpdateDeck(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var req updateDeckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.service.UpdateDeck(r.Context(), sess, chi.URLParam(r, "deckId"), model.DeckPatch{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDeckResponse(d))
}

// DeleteDeck はデッキと所属カードを削除する。
// DELETE /api/decks/{deckId}
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	if err := h.service.DeleteDeck(r.Context(), sess, chi.URLParam(r, "deckId")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListCards はデッキのカード一覧を返す。
// GET /api/decks/{deckId}/cards
func (h *DeckHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	cards, err := h.service.ListCards(r.Context(), sess, chi.URLParam(r, "deckId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": toCardResponses(cards)})
}

// SearchCards はデッキ内のカードを表面・裏面・タグで部分一致検索する。
// GET /api/decks/{deckId}/cards/search?q=
func (h *DeckHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	cards, err := h.service.SearchCards(r.Context(), sess, chi.URLParam(r, "deckId"), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": toCardResponses(cards)})
}

// CreateCard はデッキにカードを追加する。
// POST /api/decks/{deckId}/cards
func (h *DeckHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var req createCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.CreateCard(r.Context(), sess, chi.URLParam(r, "deckId"), req.Front, req.Back, req.Tags)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCardResponse(c))
}

// GetCard はカードを返す。
// GET /api/cards/{cardId}
func (h *DeckHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	c, err := h.service.GetCard(r.Context(), sess, chi.URLParam(r, "cardId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCardResponse(c))
}

// UpdateCard はカードを部分更新する。tagsを指定した場合は丸ごと置き換える。
// PATCH /api/cards/{cardId}
func (h *DeckHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var req updateCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.UpdateCard(r.Context(), sess, chi.URLParam(r, "cardId"), model.CardPatch{
		Front: req.Front,
		Back:  req.Back,
		Tags:  req.Tags,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCardResponse(c))
}

// DeleteCard はカードを削除する。
// DELETE /api/cards/{cardId}
func (h *DeckHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	if err := h.service.DeleteCard(r.Context(), sess, chi.URLParam(r, "cardId")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Seed はデッキを持たない呼び出し元にデモデッキを作成する。
// POST /api/seed
func (h *DeckHandler) Seed(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	d, err := h.seeder.Seed(r.Context(), sess)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if d == nil {
		writeJSON(w, http.StatusOK, map[string]any{"seeded": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"seeded": true, "deck": toDeckResponse(d)})
}
