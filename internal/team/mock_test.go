package team

import (
	"context"
	"sync"

	"github.com/hitoshi/blossom/internal/model"
)

// mockProvider はProviderのテスト用モック。
// 関数フィールドが未設定のメソッドはメモリ上のメンバー表で応答する。
type mockProvider struct {
	mu      sync.Mutex
	teams   map[string]*model.Team
	members map[string]map[string]bool // teamID -> userID

	getTeamFn    func(ctx context.Context, teamID string) (*model.Team, error)
	createTeamFn func(ctx context.Context, displayName string) (*model.Team, error)
	addUserFn    func(ctx context.Context, teamID, userID string) error
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		teams:   make(map[string]*model.Team),
		members: make(map[string]map[string]bool),
	}
}

func (m *mockProvider) addTeam(id, name string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[id] = &model.Team{ID: id, DisplayName: name}
	m.members[id] = make(map[string]bool)
	for _, u := range members {
		m.members[id][u] = true
	}
}

func (m *mockProvider) isMember(teamID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[teamID][userID]
}

func (m *mockProvider) GetTeam(ctx context.Context, teamID string) (*model.Team, error) {
	if m.getTeamFn != nil {
		return m.getTeamFn(ctx, teamID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teams[teamID], nil
}

func (m *mockProvider) GetUserTeam(_ context.Context, userID, teamID string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[teamID][userID] {
		return m.teams[teamID], nil
	}
	return nil, nil
}

func (m *mockProvider) CreateTeam(ctx context.Context, displayName string) (*model.Team, error) {
	if m.createTeamFn != nil {
		return m.createTeamFn(ctx, displayName)
	}
	id := "team-" + displayName
	m.addTeam(id, displayName)
	return &model.Team{ID: id, DisplayName: displayName}, nil
}

func (m *mockProvider) AddUser(ctx context.Context, teamID, userID string) error {
	if m.addUserFn != nil {
		return m.addUserFn(ctx, teamID, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[teamID] == nil {
		m.members[teamID] = make(map[string]bool)
	}
	m.members[teamID][userID] = true
	return nil
}

func (m *mockProvider) RemoveUser(_ context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members[teamID], userID)
	return nil
}

// mockDeckLister はDeckListerのテスト用モック。
type mockDeckLister struct {
	listFn func(ctx context.Context, teamID string) ([]*model.Deck, error)
}

func (m *mockDeckLister) ListDecks(ctx context.Context, teamID string) ([]*model.Deck, error) {
	if m.listFn != nil {
		return m.listFn(ctx, teamID)
	}
	return []*model.Deck{}, nil
}
