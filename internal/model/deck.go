// Package model はドメインモデルを定義する。
package model

import "time"

// Deck はフラッシュカードの集合（デッキ）を表す。
// チーム所属のデッキはTeamIDを持ち、個人デッキはOwnerIDのみを持つ。
// CreatedAt/UpdatedAtはエポックミリ秒。
type Deck struct {
	ID          string
	Title       string
	Description string
	TeamID      string
	OwnerID     string
	IsPublic    bool
	CreatedAt   int64
	UpdatedAt   int64
}

// DeckPatch はデッキの部分更新内容を表す。
// nilのフィールドは変更せず、既存の値を維持する。
type DeckPatch struct {
	Title       *string
	Description *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p DeckPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil
}

// Apply はnilでないフィールドのみをデッキに反映する。
// UpdatedAtは呼び出し元で更新する。
func (p DeckPatch) Apply(d *Deck) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
}

// NowMillis は現在時刻をエポックミリ秒で返す。
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NextUpdatedAt は更新後のupdatedAtを返す。
// 同一ミリ秒内の連続更新でも単調増加させるため、前回値+1を下限とする。
func NextUpdatedAt(now, previous int64) int64 {
	if now <= previous {
		return previous + 1
	}
	return now
}
