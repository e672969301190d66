package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/blossom/internal/model"
)

// MemoryStore はプロセス内メモリにデータを保持するストア。
// DATABASE_URL未設定時のフォールバックとテストで使用する。
// DeckRepository / CardRepository / PublicTeamRepository / HealthChecker を満たす。
type MemoryStore struct {
	mu          sync.RWMutex
	seq         int64
	decks       map[string]*memDeck
	cards       map[string]*memCard
	publicTeams map[string]*model.PublicTeam
}

// 同一ミリ秒に作成された行の並びを安定させるため挿入順を保持する。
type memDeck struct {
	deck model.Deck
	seq  int64
}

type memCard struct {
	card *model.Card
	seq  int64
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		decks:       make(map[string]*memDeck),
		cards:       make(map[string]*memCard),
		publicTeams: make(map[string]*model.PublicTeam),
	}
}

// PingContext は常に成功する。
func (s *MemoryStore) PingContext(ctx context.Context) error {
	return ctx.Err()
}

// Decks はデッキリポジトリとしてのビューを返す。
func (s *MemoryStore) Decks() DeckRepository { return memoryDeckRepo{s} }

// Cards はカードリポジトリとしてのビューを返す。
func (s *MemoryStore) Cards() CardRepository { return memoryCardRepo{s} }

// PublicTeams は公開チームリポジトリとしてのビューを返す。
func (s *MemoryStore) PublicTeams() PublicTeamRepository { return memoryPublicTeamRepo{s} }

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

type memoryDeckRepo struct{ s *MemoryStore }

func (r memoryDeckRepo) FindByID(_ context.Context, id string) (*model.Deck, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.decks[id]
	if !ok {
		return nil, nil
	}
	deck := d.deck
	return &deck, nil
}

func (r memoryDeckRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.Deck, error) {
	return r.list(func(d *model.Deck) bool {
		return d.OwnerID == ownerID && d.TeamID == ""
	}), nil
}

func (r memoryDeckRepo) ListByTeam(_ context.Context, teamID string) ([]*model.Deck, error) {
	return r.list(func(d *model.Deck) bool {
		return d.TeamID == teamID
	}), nil
}

func (r memoryDeckRepo) list(match func(*model.Deck) bool) []*model.Deck {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := []*memDeck{}
	for _, d := range r.s.decks {
		if match(&d.deck) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].deck.CreatedAt != matched[j].deck.CreatedAt {
			return matched[i].deck.CreatedAt > matched[j].deck.CreatedAt
		}
		return matched[i].seq > matched[j].seq
	})

	decks := make([]*model.Deck, 0, len(matched))
	for _, d := range matched {
		deck := d.deck
		decks = append(decks, &deck)
	}
	return decks
}

func (r memoryDeckRepo) Create(_ context.Context, deck *model.Deck) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.decks[deck.ID] = &memDeck{deck: *deck, seq: r.s.nextSeq()}
	return nil
}

func (r memoryDeckRepo) Update(_ context.Context, id string, patch model.DeckPatch, now int64) (*model.Deck, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.decks[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(&d.deck)
	d.deck.UpdatedAt = model.NextUpdatedAt(now, d.deck.UpdatedAt)
	deck := d.deck
	return &deck, nil
}

func (r memoryDeckRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.decks, id)
	return nil
}

type memoryCardRepo struct{ s *MemoryStore }

func (r memoryCardRepo) FindByID(_ context.Context, id string) (*model.Card, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.cards[id]
	if !ok {
		return nil, nil
	}
	return c.card.Clone(), nil
}

func (r memoryCardRepo) ListByDeck(_ context.Context, deckID string) ([]*model.Card, error) {
	return r.list(func(c *model.Card) bool {
		return c.DeckID == deckID
	}), nil
}

func (r memoryCardRepo) ListByDeckAndTeam(_ context.Context, deckID, teamID string) ([]*model.Card, error) {
	return r.list(func(c *model.Card) bool {
		return c.DeckID == deckID && c.TeamID == teamID
	}), nil
}

func (r memoryCardRepo) ListByTeam(_ context.Context, teamID string) ([]*model.Card, error) {
	return r.list(func(c *model.Card) bool {
		return c.TeamID == teamID
	}), nil
}

func (r memoryCardRepo) list(match func(*model.Card) bool) []*model.Card {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := []*memCard{}
	for _, c := range r.s.cards {
		if match(c.card) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].card.CreatedAt != matched[j].card.CreatedAt {
			return matched[i].card.CreatedAt > matched[j].card.CreatedAt
		}
		return matched[i].seq > matched[j].seq
	})

	cards := make([]*model.Card, 0, len(matched))
	for _, c := range matched {
		cards = append(cards, c.card.Clone())
	}
	return cards
}

func (r memoryCardRepo) CountByDecks(_ context.Context, deckIDs []string) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(deckIDs))
	for _, id := range deckIDs {
		wanted[id] = struct{}{}
	}

	counts := make(map[string]int)
	for _, c := range r.s.cards {
		if _, ok := wanted[c.card.DeckID]; ok {
			counts[c.card.DeckID]++
		}
	}
	return counts, nil
}

func (r memoryCardRepo) Create(_ context.Context, card *model.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := card.Clone()
	if stored.Tags == nil {
		stored.Tags = []string{}
	}
	r.s.cards[card.ID] = &memCard{card: stored, seq: r.s.nextSeq()}
	return nil
}

func (r memoryCardRepo) Update(_ context.Context, id string, patch model.CardPatch, now int64) (*model.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.cards[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(c.card)
	c.card.UpdatedAt = model.NextUpdatedAt(now, c.card.UpdatedAt)
	return c.card.Clone(), nil
}

func (r memoryCardRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.cards, id)
	return nil
}

func (r memoryCardRepo) DeleteOrphans(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var removed int64
	for id, c := range r.s.cards {
		if _, ok := r.s.decks[c.card.DeckID]; !ok {
			delete(r.s.cards, id)
			removed++
		}
	}
	return removed, nil
}

type memoryPublicTeamRepo struct{ s *MemoryStore }

func (r memoryPublicTeamRepo) FindByTeamID(_ context.Context, teamID string) (*model.PublicTeam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.publicTeams[teamID]
	if !ok {
		return nil, nil
	}
	team := *t
	return &team, nil
}

func (r memoryPublicTeamRepo) ListActive(_ context.Context) ([]*model.PublicTeam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	teams := []*model.PublicTeam{}
	for _, t := range r.s.publicTeams {
		if t.IsActive {
			team := *t
			teams = append(teams, &team)
		}
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].CreatedAt != teams[j].CreatedAt {
			return teams[i].CreatedAt > teams[j].CreatedAt
		}
		return teams[i].ID > teams[j].ID
	})
	return teams, nil
}

func (r memoryPublicTeamRepo) Create(_ context.Context, team *model.PublicTeam) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.publicTeams[team.TeamID]; ok {
		return ErrDuplicatePublicTeam
	}
	for _, t := range r.s.publicTeams {
		if t.ID == team.ID {
			return ErrDuplicatePublicTeam
		}
	}

	stored := *team
	r.s.publicTeams[team.TeamID] = &stored
	return nil
}

func (r memoryPublicTeamRepo) Update(_ context.Context, teamID string, patch model.PublicTeamPatch, now int64) (*model.PublicTeam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.publicTeams[teamID]
	if !ok {
		return nil, nil
	}
	patch.Apply(t)
	t.UpdatedAt = model.NextUpdatedAt(now, t.UpdatedAt)
	team := *t
	return &team, nil
}

func (r memoryPublicTeamRepo) IncrementMemberCount(_ context.Context, teamID string, now int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t, ok := r.s.publicTeams[teamID]; ok {
		t.MemberCount++
		t.UpdatedAt = model.NextUpdatedAt(now, t.UpdatedAt)
	}
	return nil
}

func (r memoryPublicTeamRepo) DecrementMemberCount(_ context.Context, teamID string, now int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t, ok := r.s.publicTeams[teamID]; ok && t.MemberCount > 0 {
		t.MemberCount--
		t.UpdatedAt = model.NextUpdatedAt(now, t.UpdatedAt)
	}
	return nil
}

func (r memoryPublicTeamRepo) Deactivate(_ context.Context, teamID string, now int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t, ok := r.s.publicTeams[teamID]; ok {
		t.IsActive = false
		t.UpdatedAt = model.NextUpdatedAt(now, t.UpdatedAt)
	}
	return nil
}

var (
	_ DeckRepository       = memoryDeckRepo{}
	_ CardRepository       = memoryCardRepo{}
	_ PublicTeamRepository = memoryPublicTeamRepo{}
	_ HealthChecker        = (*MemoryStore)(nil)
)
