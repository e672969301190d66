package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/blossom/internal/metrics"
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/study"
)

func newTestStudyManager(t *testing.T) *study.Manager {
	t.Helper()
	m := study.NewManager(time.Hour, metrics.NopCollector{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(m.Stop)
	return m
}

func studyCards(ids ...string) []*model.Card {
	cards := make([]*model.Card, len(ids))
	for i, id := range ids {
		cards[i] = &model.Card{ID: id, DeckID: "deck-1", Front: "front " + id, Back: "back " + id}
	}
	return cards
}

// startStudy は学習を開始し、セッションIDを返すヘルパー。
func startStudy(t *testing.T, h *StudyHandler, body string) string {
	t.Helper()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/study", bytes.NewBufferString(body)), "user-123")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	return decodeResponse(t, w)["sessionId"].(string)
}

func studyStep(h *StudyHandler, fn func(http.ResponseWriter, *http.Request), method, sessionID, body string) *httptest.ResponseRecorder {
	req := withSession(httptest.NewRequest(method, "/api/study/"+sessionID, bytes.NewBufferString(body)), "user-123")
	req = withChiURLParams(req, "sessionId", sessionID)
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func TestStudyHandler_PersonalDeckFlow(t *testing.T) {
	decks := &mockDeckService{
		listCardsFn: func(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error) {
			return studyCards("A", "B", "C"), nil
		},
	}
	h := NewStudyHandler(newTestStudyManager(t), decks, &mockTeamDeckService{}, newMockGate())

	id := startStudy(t, h, `{"deckId": "deck-1"}`)

	w := studyStep(h, h.Get, http.MethodGet, id, "")
	state := decodeResponse(t, w)
	if state["current"].(map[string]any)["id"] != "A" {
		t.Errorf("current = %v, want A", state["current"])
	}
	if state["total"] != float64(3) || state["remaining"] != float64(3) {
		t.Errorf("total/remaining = %v/%v, want 3/3", state["total"], state["remaining"])
	}

	w = studyStep(h, h.Grade, http.MethodPost, id, `{"quality": 4}`)
	state = decodeResponse(t, w)
	if state["current"].(map[string]any)["id"] != "B" || state["reviewed"] != float64(1) {
		t.Errorf("after grade: %v", state)
	}

	w = studyStep(h, h.Next, http.MethodPost, id, "")
	state = decodeResponse(t, w)
	if state["current"].(map[string]any)["id"] != "C" {
		t.Errorf("after next: current = %v, want C", state["current"])
	}

	// 最後のカードでのnextは何もしない
	w = studyStep(h, h.Next, http.MethodPost, id, "")
	state = decodeResponse(t, w)
	if state["current"].(map[string]any)["id"] != "C" {
		t.Errorf("next at last card: current = %v, want C", state["current"])
	}

	w = studyStep(h, h.Grade, http.MethodPost, id, `{"quality": 0}`)
	state = decodeResponse(t, w)
	if state["isComplete"] != true || state["current"] != nil {
		t.Errorf("after final grade: %v", state)
	}

	w = studyStep(h, h.Reset, http.MethodPost, id, "")
	state = decodeResponse(t, w)
	if state["current"].(map[string]any)["id"] != "A" || state["reviewed"] != float64(0) {
		t.Errorf("after reset: %v", state)
	}

	w = studyStep(h, h.End, http.MethodDelete, id, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("end status = %d, want %d", w.Code, http.StatusNoContent)
	}
	w = studyStep(h, h.Get, http.MethodGet, id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after end status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStudyHandler_GradeOutOfRange(t *testing.T) {
	decks := &mockDeckService{
		listCardsFn: func(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error) {
			return studyCards("A", "B"), nil
		},
	}
	h := NewStudyHandler(newTestStudyManager(t), decks, &mockTeamDeckService{}, newMockGate())
	id := startStudy(t, h, `{"deckId": "deck-1"}`)

	w := studyStep(h, h.Grade, http.MethodPost, id, `{"quality": 6}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	result := decodeResponse(t, w)
	if result["code"] != model.ErrCodeInvalidGrade {
		t.Errorf("code = %v, want %q", result["code"], model.ErrCodeInvalidGrade)
	}

	w = studyStep(h, h.Get, http.MethodGet, id, "")
	state := decodeResponse(t, w)
	if state["current"].(map[string]any)["id"] != "A" {
		t.Errorf("invalid grade must not advance: current = %v", state["current"])
	}
}

func TestStudyHandler_GradeAfterComplete_Returns409(t *testing.T) {
	decks := &mockDeckService{
		listCardsFn: func(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error) {
			return studyCards("A"), nil
		},
	}
	h := NewStudyHandler(newTestStudyManager(t), decks, &mockTeamDeckService{}, newMockGate())
	id := startStudy(t, h, `{"deckId": "deck-1"}`)

	w := studyStep(h, h.Grade, http.MethodPost, id, `{"quality": 3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first grade status = %d, want %d", w.Code, http.StatusOK)
	}

	w = studyStep(h, h.Grade, http.MethodPost, id, `{"quality": 3}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	result := decodeResponse(t, w)
	if result["code"] != model.ErrCodeStudyComplete {
		t.Errorf("code = %v, want %q", result["code"], model.ErrCodeStudyComplete)
	}

	w = studyStep(h, h.Get, http.MethodGet, id, "")
	state := decodeResponse(t, w)
	if state["reviewed"] != float64(1) || state["remaining"] != float64(0) {
		t.Errorf("state must not change after complete: %v", state)
	}
}

func TestStudyHandler_GradeQualityRequired(t *testing.T) {
	h := NewStudyHandler(newTestStudyManager(t), &mockDeckService{}, &mockTeamDeckService{}, newMockGate())
	id := startStudy(t, h, `{"deckId": "deck-1"}`)

	w := studyStep(h, h.Grade, http.MethodPost, id, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStudyHandler_Start_DeckIDRequired(t *testing.T) {
	h := NewStudyHandler(newTestStudyManager(t), &mockDeckService{}, &mockTeamDeckService{}, newMockGate())

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/study", bytes.NewBufferString(`{}`)), "user-123")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStudyHandler_Start_PersonalDeckNotOwned(t *testing.T) {
	decks := &mockDeckService{
		listCardsFn: func(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error) {
			return nil, model.NewDeckNotFoundError(deckID)
		},
	}
	h := NewStudyHandler(newTestStudyManager(t), decks, &mockTeamDeckService{}, newMockGate())

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/study", bytes.NewBufferString(`{"deckId": "deck-x"}`)), "user-123")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStudyHandler_Start_TeamDeck(t *testing.T) {
	teamDecks := &mockTeamDeckService{
		getDeckFn: func(ctx context.Context, deckID, teamID string) (*model.Deck, error) {
			return &model.Deck{ID: deckID, TeamID: teamID}, nil
		},
		listCardsFn: func(ctx context.Context, deckID, teamID string) ([]*model.Card, error) {
			return studyCards("T1"), nil
		},
	}
	h := NewStudyHandler(newTestStudyManager(t), &mockDeckService{}, teamDecks, newMockGate("team-1/user-123"))

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/study", bytes.NewBufferString(`{"deckId": "deck-1", "teamId": "team-1"}`)), "user-123")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	state := decodeResponse(t, w)
	if state["teamId"] != "team-1" || state["total"] != float64(1) {
		t.Errorf("state = %v", state)
	}
}

func TestStudyHandler_Start_TeamDeckNonMember(t *testing.T) {
	h := NewStudyHandler(newTestStudyManager(t), &mockDeckService{}, &mockTeamDeckService{}, newMockGate())

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/study", bytes.NewBufferString(`{"deckId": "deck-1", "teamId": "team-1"}`)), "user-123")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestStudyHandler_Start_TeamDeckOtherTeam(t *testing.T) {
	h := NewStudyHandler(newTestStudyManager(t), &mockDeckService{}, &mockTeamDeckService{}, newMockGate("team-1/user-123"))

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/study", bytes.NewBufferString(`{"deckId": "deck-x", "teamId": "team-1"}`)), "user-123")
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	result := decodeResponse(t, w)
	if result["code"] != model.ErrCodeNotInTeam {
		t.Errorf("code = %v, want %q", result["code"], model.ErrCodeNotInTeam)
	}
}

func TestStudyHandler_OtherUsersSession(t *testing.T) {
	decks := &mockDeckService{
		listCardsFn: func(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error) {
			return studyCards("A"), nil
		},
	}
	h := NewStudyHandler(newTestStudyManager(t), decks, &mockTeamDeckService{}, newMockGate())
	id := startStudy(t, h, `{"deckId": "deck-1"}`)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/study/"+id, nil), "intruder")
	req = withChiURLParams(req, "sessionId", id)
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
