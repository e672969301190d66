package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blossom/internal/middleware"
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/plan"
	"github.com/hitoshi/blossom/internal/team"
)

// --- モック定義 ---

// mockDeckService はDeckServiceInterfaceのモック実装。
type mockDeckService struct {
	listDecksFn   func(ctx context.Context, sess *model.Session) ([]*model.Deck, error)
	getDeckFn     func(ctx context.Context, sess *model.Session, deckID string) (*model.Deck, error)
	createDeckFn  func(ctx context.Context, sess *model.Session, title, description string) (*model.Deck, error)
	updateDeckFn  func(ctx context.Context, sess *model.Session, deckID string, patch model.DeckPatch) (*model.Deck, error)
	deleteDeckFn  func(ctx context.Context, sess *model.Session, deckID string) error
	cardCountsFn  func(ctx context.Context, sess *model.Session) (map[string]int, error)
	listCardsFn   func(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error)
	searchCardsFn func(ctx context.Context, sess *model.Session, deckID, query string) ([]*model.Card, error)
	getCardFn     func(ctx context.Context, sess *model.Session, cardID string) (*model.Card, error)
	createCardFn  func(ctx context.Context, sess *model.Session, deckID, front, back string, tags []string) (*model.Card, error)
	updateCardFn  func(ctx context.Context, sess *model.Session, cardID string, patch model.CardPatch) (*model.Card, error)
	deleteCardFn  func(ctx context.Context, sess *model.Session, cardID string) error
}

func (m *mockDeckService) ListDecks(ctx context.Context, sess *model.Session) ([]*model.Deck, error) {
	if m.listDecksFn != nil {
		return m.listDecksFn(ctx, sess)
	}
	return nil, nil
}

func (m *mockDeckService) GetDeck(ctx context.Context, sess *model.Session, deckID string) (*model.Deck, error) {
	if m.getDeckFn != nil {
		return m.getDeckFn(ctx, sess, deckID)
	}
	return nil, model.NewDeckNotFoundError(deckID)
}

func (m *mockDeckService) CreateDeck(ctx context.Context, sess *model.Session, title, description string) (*model.Deck, error) {
	if m.createDeckFn != nil {
		return m.createDeckFn(ctx, sess, title, description)
	}
	return &model.Deck{ID: "deck-new", Title: title, Description: description, OwnerID: sess.UserID}, nil
}

func (m *mockDeckService) UpdateDeck(ctx context.Context, sess *model.Session, deckID string, patch model.DeckPatch) (*model.Deck, error) {
	if m.updateDeckFn != nil {
		return m.updateDeckFn(ctx, sess, deckID, patch)
	}
	return nil, model.NewDeckNotFoundError(deckID)
}

func (m *mockDeckService) DeleteDeck(ctx context.Context, sess *model.Session, deckID string) error {
	if m.deleteDeckFn != nil {
		return m.deleteDeckFn(ctx, sess, deckID)
	}
	return nil
}

func (m *mockDeckService) CardCounts(ctx context.Context, sess *model.Session) (map[string]int, error) {
	if m.cardCountsFn != nil {
		return m.cardCountsFn(ctx, sess)
	}
	return map[string]int{}, nil
}

func (m *mockDeckService) ListCards(ctx context.Context, sess *model.Session, deckID string) ([]*model.Card, error) {
	if m.listCardsFn != nil {
		return m.listCardsFn(ctx, sess, deckID)
	}
	return nil, nil
}

func (m *mockDeckService) SearchCards(ctx context.Context, sess *model.Session, deckID, query string) ([]*model.Card, error) {
	if m.searchCardsFn != nil {
		return m.searchCardsFn(ctx, sess, deckID, query)
	}
	return nil, nil
}

func (m *mockDeckService) GetCard(ctx context.Context, sess *model.Session, cardID string) (*model.Card, error) {
	if m.getCardFn != nil {
		return m.getCardFn(ctx, sess, cardID)
	}
	return nil, model.NewCardNotFoundError(cardID)
}

func (m *mockDeckService) CreateCard(ctx context.Context, sess *model.Session, deckID, front, back string, tags []string) (*model.Card, error) {
	if m.createCardFn != nil {
		return m.createCardFn(ctx, sess, deckID, front, back, tags)
	}
	return &model.Card{ID: "card-new", DeckID: deckID, Front: front, Back: back, Tags: tags}, nil
}

func (m *mockDeckService) UpdateCard(ctx context.Context, sess *model.Session, cardID string, patch model.CardPatch) (*model.Card, error) {
	if m.updateCardFn != nil {
		return m.updateCardFn(ctx, sess, cardID, patch)
	}
	return nil, model.NewCardNotFoundError(cardID)
}

func (m *mockDeckService) DeleteCard(ctx context.Context, sess *model.Session, cardID string) error {
	if m.deleteCardFn != nil {
		return m.deleteCardFn(ctx, sess, cardID)
	}
	return nil
}

// mockSeeder はSeederInterfaceのモック実装。
type mockSeeder struct {
	seedFn func(ctx context.Context, sess *model.Session) (*model.Deck, error)
}

func (m *mockSeeder) Seed(ctx context.Context, sess *model.Session) (*model.Deck, error) {
	if m.seedFn != nil {
		return m.seedFn(ctx, sess)
	}
	return nil, nil
}

// mockTeamDeckService はTeamDeckServiceInterfaceのモック実装。
type mockTeamDeckService struct {
	listDecksFn   func(ctx context.Context, teamID string) ([]*model.Deck, error)
	getDeckFn     func(ctx context.Context, deckID, teamID string) (*model.Deck, error)
	createDeckFn  func(ctx context.Context, title, description, teamID, ownerID string) (*model.Deck, error)
	updateDeckFn  func(ctx context.Context, deckID, teamID string, patch model.DeckPatch) (*model.Deck, error)
	deleteDeckFn  func(ctx context.Context, deckID, teamID string) error
	cardCountsFn  func(ctx context.Context, teamID string) (map[string]int, error)
	listCardsFn   func(ctx context.Context, deckID, teamID string) ([]*model.Card, error)
	searchCardsFn func(ctx context.Context, deckID, teamID, query string) ([]*model.Card, error)
	createCardFn  func(ctx context.Context, deckID, front, back string, tags []string, teamID, ownerID string) (*model.Card, error)
	updateCardFn  func(ctx context.Context, cardID, teamID string, patch model.CardPatch) (*model.Card, error)
	deleteCardFn  func(ctx context.Context, cardID, teamID string) error
}

func (m *mockTeamDeckService) ListDecks(ctx context.Context, teamID string) ([]*model.Deck, error) {
	if m.listDecksFn != nil {
		return m.listDecksFn(ctx, teamID)
	}
	return nil, nil
}

func (m *mockTeamDeckService) GetDeck(ctx context.Context, deckID, teamID string) (*model.Deck, error) {
	if m.getDeckFn != nil {
		return m.getDeckFn(ctx, deckID, teamID)
	}
	return nil, nil
}

func (m *mockTeamDeckService) CreateDeck(ctx context.Context, title, description, teamID, ownerID string) (*model.Deck, error) {
	if m.createDeckFn != nil {
		return m.createDeckFn(ctx, title, description, teamID, ownerID)
	}
	return &model.Deck{ID: "team-deck-new", Title: title, TeamID: teamID, OwnerID: ownerID, IsPublic: true}, nil
}

func (m *mockTeamDeckService) UpdateDeck(ctx context.Context, deckID, teamID string, patch model.DeckPatch) (*model.Deck, error) {
	if m.updateDeckFn != nil {
		return m.updateDeckFn(ctx, deckID, teamID, patch)
	}
	return nil, model.NewNotInTeamError("Deck")
}

func (m *mockTeamDeckService) DeleteDeck(ctx context.Context, deckID, teamID string) error {
	if m.deleteDeckFn != nil {
		return m.deleteDeckFn(ctx, deckID, teamID)
	}
	return nil
}

func (m *mockTeamDeckService) CardCounts(ctx context.Context, teamID string) (map[string]int, error) {
	if m.cardCountsFn != nil {
		return m.cardCountsFn(ctx, teamID)
	}
	return map[string]int{}, nil
}

func (m *mockTeamDeckService) ListCards(ctx context.Context, deckID, teamID string) ([]*model.Card, error) {
	if m.listCardsFn != nil {
		return m.listCardsFn(ctx, deckID, teamID)
	}
	return nil, nil
}

func (m *mockTeamDeckService) SearchCards(ctx context.Context, deckID, teamID, query string) ([]*model.Card, error) {
	if m.searchCardsFn != nil {
		return m.searchCardsFn(ctx, deckID, teamID, query)
	}
	return nil, nil
}

func (m *mockTeamDeckService) CreateCard(ctx context.Context, deckID, front, back string, tags []string, teamID, ownerID string) (*model.Card, error) {
	if m.createCardFn != nil {
		return m.createCardFn(ctx, deckID, front, back, tags, teamID, ownerID)
	}
	return &model.Card{ID: "team-card-new", DeckID: deckID, Front: front, Back: back, Tags: tags, TeamID: teamID}, nil
}

func (m *mockTeamDeckService) UpdateCard(ctx context.Context, cardID, teamID string, patch model.CardPatch) (*model.Card, error) {
	if m.updateCardFn != nil {
		return m.updateCardFn(ctx, cardID, teamID, patch)
	}
	return nil, model.NewNotInTeamError("Card")
}

func (m *mockTeamDeckService) DeleteCard(ctx context.Context, cardID, teamID string) error {
	if m.deleteCardFn != nil {
		return m.deleteCardFn(ctx, cardID, teamID)
	}
	return nil
}

// mockTeamService はTeamServiceInterfaceのモック実装。
type mockTeamService struct {
	createTeamFn       func(ctx context.Context, sess *model.Session, name, description string) (*model.Team, *model.PublicTeam, error)
	joinTeamFn         func(ctx context.Context, sess *model.Session, teamID string) (*team.MembershipResult, error)
	leaveTeamFn        func(ctx context.Context, sess *model.Session, teamID string) (*team.MembershipResult, error)
	listPublicTeamsFn  func(ctx context.Context) ([]*model.PublicTeam, error)
	getPublicTeamFn    func(ctx context.Context, teamID string) (*model.PublicTeam, error)
	updatePublicTeamFn func(ctx context.Context, teamID string, patch model.PublicTeamPatch) (*model.PublicTeam, error)
	deactivateTeamFn   func(ctx context.Context, teamID string) error
}

func (m *mockTeamService) CreateTeam(ctx context.Context, sess *model.Session, name, description string) (*model.Team, *model.PublicTeam, error) {
	if m.createTeamFn != nil {
		return m.createTeamFn(ctx, sess, name, description)
	}
	return &model.Team{ID: "team-new", DisplayName: name, Description: description},
		&model.PublicTeam{ID: "pt-new", TeamID: "team-new", Name: name, Description: description, MemberCount: 1, IsActive: true}, nil
}

func (m *mockTeamService) JoinTeam(ctx context.Context, sess *model.Session, teamID string) (*team.MembershipResult, error) {
	if m.joinTeamFn != nil {
		return m.joinTeamFn(ctx, sess, teamID)
	}
	return &team.MembershipResult{Message: team.MessageJoined, Team: &model.Team{ID: teamID, DisplayName: "Team"}}, nil
}

func (m *mockTeamService) LeaveTeam(ctx context.Context, sess *model.Session, teamID string) (*team.MembershipResult, error) {
	if m.leaveTeamFn != nil {
		return m.leaveTeamFn(ctx, sess, teamID)
	}
	return &team.MembershipResult{Message: team.MessageLeft}, nil
}

func (m *mockTeamService) ListPublicTeams(ctx context.Context) ([]*model.PublicTeam, error) {
	if m.listPublicTeamsFn != nil {
		return m.listPublicTeamsFn(ctx)
	}
	return nil, nil
}

func (m *mockTeamService) GetPublicTeam(ctx context.Context, teamID string) (*model.PublicTeam, error) {
	if m.getPublicTeamFn != nil {
		return m.getPublicTeamFn(ctx, teamID)
	}
	return nil, model.NewTeamNotFoundError()
}

func (m *mockTeamService) UpdatePublicTeam(ctx context.Context, teamID string, patch model.PublicTeamPatch) (*model.PublicTeam, error) {
	if m.updatePublicTeamFn != nil {
		return m.updatePublicTeamFn(ctx, teamID, patch)
	}
	return nil, model.NewTeamNotFoundError()
}

func (m *mockTeamService) DeactivateTeam(ctx context.Context, teamID string) error {
	if m.deactivateTeamFn != nil {
		return m.deactivateTeamFn(ctx, teamID)
	}
	return nil
}

// mockGate はTeamGateInterfaceのモック実装。
// membersに「teamID/userID」が含まれる場合をメンバーとみなす。
type mockGate struct {
	members map[string]bool
	viewFn  func(ctx context.Context, sess *model.Session, teamID string) (*team.View, error)
	err     error
}

func newMockGate(pairs ...string) *mockGate {
	g := &mockGate{members: map[string]bool{}}
	for _, p := range pairs {
		g.members[p] = true
	}
	return g
}

func (m *mockGate) RequireMember(ctx context.Context, sess *model.Session, teamID string) error {
	if m.err != nil {
		return m.err
	}
	if sess == nil {
		return model.NewUnauthorizedError()
	}
	if !m.members[teamID+"/"+sess.UserID] {
		return model.NewNotTeamMemberError()
	}
	return nil
}

func (m *mockGate) View(ctx context.Context, sess *model.Session, teamID string) (*team.View, error) {
	if m.viewFn != nil {
		return m.viewFn(ctx, sess, teamID)
	}
	if sess == nil {
		return &team.View{Visibility: team.VisibilitySignedOut}, nil
	}
	return &team.View{Visibility: team.VisibilityMember, Team: &team.Summary{ID: teamID, Name: "Team"}}, nil
}

// mockPlanService はPlanServiceInterfaceのモック実装。
type mockPlanService struct {
	statusFn      func(ctx context.Context, sess *model.Session) (*plan.Status, error)
	checkoutURLFn func(ctx context.Context, sess *model.Session, offerID string) (string, error)
}

func (m *mockPlanService) Status(ctx context.Context, sess *model.Session) (*plan.Status, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, sess)
	}
	return &plan.Status{}, nil
}

func (m *mockPlanService) CheckoutURL(ctx context.Context, sess *model.Session, offerID string) (string, error) {
	if m.checkoutURLFn != nil {
		return m.checkoutURLFn(ctx, sess, offerID)
	}
	return "https://billing.example.com/checkout/" + offerID, nil
}

// mockHealthChecker はrepository.HealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// mockVerifier はmiddleware.TokenVerifierのモック実装。
type mockVerifier struct {
	tokens map[string]string
}

func (m *mockVerifier) Verify(token string) (*model.Session, error) {
	if userID, ok := m.tokens[token]; ok {
		return &model.Session{UserID: userID, AccessToken: token}, nil
	}
	return nil, errors.New("invalid token")
}

// --- テストヘルパー ---

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithSession(r.Context(), &model.Session{UserID: userID, AccessToken: "token-" + userID})
	return r.WithContext(ctx)
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
// kvはキーと値を交互に並べる。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// decodeResponse はレスポンスボディをmapにデコードするヘルパー。
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}
