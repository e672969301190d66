// Package study はデッキ学習のキューとセッション管理を提供する。
package study

import "github.com/hitoshi/blossom/internal/model"

// Queue は1回の学習で順番に提示するカード列。
// 開始時点のカードのスナップショットを保持し、以後のカード変更の影響を受けない。
type Queue struct {
	cards    []*model.Card
	index    int
	reviewed int
}

// NewQueue は与えられた順序でカードのスナップショットからキューを生成する。
func NewQueue(cards []*model.Card) *Queue {
	snapshot := make([]*model.Card, 0, len(cards))
	for _, c := range cards {
		snapshot = append(snapshot, c.Clone())
	}
	return &Queue{cards: snapshot}
}

// Current は現在のカードを返す。全カードを評価済みの場合はnil。
func (q *Queue) Current() *model.Card {
	if q.index >= len(q.cards) {
		return nil
	}
	return q.cards[q.index]
}

// Index は現在位置を返す。
func (q *Queue) Index() int { return q.index }

// Remaining は現在のカードを含む残り枚数を返す。
func (q *Queue) Remaining() int { return len(q.cards) - q.index }

// Total はキューのカード枚数を返す。
func (q *Queue) Total() int { return len(q.cards) }

// Reviewed は評価済みの枚数を返す。
func (q *Queue) Reviewed() int { return q.reviewed }

// Next は評価せずに次のカードへ進む。
// 最後のカードでは何もしない（完了状態へは評価によってのみ到達する）。
func (q *Queue) Next() {
	if q.index < len(q.cards)-1 {
		q.index++
	}
}

// Grade は現在のカードを評価して次へ進む。
// 評価値は範囲のみ検証し、出題順には反映しない。
// 完了済みのキューではSTUDY_COMPLETEを返し、状態を変えない。
func (q *Queue) Grade(quality int) error {
	if !model.Grade(quality).Valid() {
		return model.NewInvalidGradeError(quality)
	}
	if q.IsComplete() {
		return model.NewStudyCompleteError()
	}
	// TODO: 評価値を使った復習間隔の算出（SM-2相当）と次回出題日の保存を実装する
	q.reviewed++
	q.index++
	return nil
}

// Reset は同じ順序で最初からやり直す。
func (q *Queue) Reset() {
	q.index = 0
	q.reviewed = 0
}

// IsComplete は全カードの評価が終わっていればtrueを返す。
// 空のキューは開始時点で完了している。
func (q *Queue) IsComplete() bool {
	return q.index >= len(q.cards)
}
