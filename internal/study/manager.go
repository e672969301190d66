package study

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blossom/internal/metrics"
	"github.com/hitoshi/blossom/internal/model"
)

// DefaultSessionTTL は最終操作から学習セッションを破棄するまでの時間。
const DefaultSessionTTL = 30 * time.Minute

// State はクライアントに返す学習セッションの状態。
type State struct {
	SessionID  string
	DeckID     string
	TeamID     string
	Current    *model.Card
	Index      int
	Remaining  int
	Total      int
	Reviewed   int
	IsComplete bool
}

type session struct {
	id         string
	userID     string
	deckID     string
	teamID     string
	queue      *Queue
	lastAccess time.Time
}

func (s *session) state() *State {
	return &State{
		SessionID:  s.id,
		DeckID:     s.deckID,
		TeamID:     s.teamID,
		Current:    s.queue.Current(),
		Index:      s.queue.Index(),
		Remaining:  s.queue.Remaining(),
		Total:      s.queue.Total(),
		Reviewed:   s.queue.Reviewed(),
		IsComplete: s.queue.IsComplete(),
	}
}

// Manager はユーザーごとの学習セッションをメモリ上で管理する。
// 一定時間操作のないセッションはバックグラウンドで破棄される。
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	ttl     time.Duration
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager は新しいManagerを生成し、期限切れセッションのクリーンアップを開始する。
// ttlが0以下の場合はDefaultSessionTTLを使う。
func NewManager(ttl time.Duration, collector metrics.MetricsCollector, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	m := &Manager{
		sessions: make(map[string]*session),
		ttl:      ttl,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		stopCh:   make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Start はカードのスナップショットから新しい学習セッションを開始する。
func (m *Manager) Start(userID, deckID, teamID string, cards []*model.Card) *State {
	s := &session{
		id:         m.newID(),
		userID:     userID,
		deckID:     deckID,
		teamID:     teamID,
		queue:      NewQueue(cards),
		lastAccess: m.now(),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveStudySessions(count)
	m.logger.Info("学習セッションを開始しました",
		slog.String("session_id", s.id),
		slog.String("user_id", userID),
		slog.String("deck_id", deckID),
		slog.Int("total", s.queue.Total()),
	)
	return s.state()
}

// Get はセッションの現在の状態を返す。
func (m *Manager) Get(userID, sessionID string) (*State, error) {
	var st *State
	err := m.with(userID, sessionID, func(s *session) error {
		st = s.state()
		return nil
	})
	return st, err
}

// Next は評価せずに次のカードへ進む。
func (m *Manager) Next(userID, sessionID string) (*State, error) {
	var st *State
	err := m.with(userID, sessionID, func(s *session) error {
		s.queue.Next()
		st = s.state()
		return nil
	})
	return st, err
}

// Grade は現在のカードを評価して次へ進む。
func (m *Manager) Grade(userID, sessionID string, quality int) (*State, error) {
	var st *State
	err := m.with(userID, sessionID, func(s *session) error {
		if err := s.queue.Grade(quality); err != nil {
			return err
		}
		st = s.state()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.metrics.RecordGrade(quality)
	return st, nil
}

// Reset はセッションを最初からやり直す。
func (m *Manager) Reset(userID, sessionID string) (*State, error) {
	var st *State
	err := m.with(userID, sessionID, func(s *session) error {
		s.queue.Reset()
		st = s.state()
		return nil
	})
	return st, err
}

// End はセッションを破棄する。
func (m *Manager) End(userID, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || s.userID != userID {
		m.mu.Unlock()
		return model.NewStudySessionNotFoundError(sessionID)
	}
	delete(m.sessions, sessionID)
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveStudySessions(count)
	return nil
}

// Count は保持しているセッション数を返す。
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// with は所有者を確認した上でセッションを排他的に操作する。
// 他のユーザーのセッションは存在しないものとして扱う。
func (m *Manager) with(userID, sessionID string, fn func(s *session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.userID != userID {
		return model.NewStudySessionNotFoundError(sessionID)
	}
	s.lastAccess = m.now()
	return fn(s)
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stopCh:
			return
		}
	}
}

// cleanup は最終操作からTTLを超えたセッションを削除する。
func (m *Manager) cleanup() {
	now := m.now()

	m.mu.Lock()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.lastAccess) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		m.metrics.SetActiveStudySessions(count)
		m.logger.Info("期限切れの学習セッションを削除しました", slog.Int("removed", removed))
	}
}
