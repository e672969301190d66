// Package team はチームの作成・参加・退出、公開チームレジストリ、
// およびチームページの可視性判定を提供する。
//
// チームとメンバーシップの正はIdP側にあり、公開チームレジストリは
// 一覧表示用の写し（名前・説明・メンバー数）を保持する。
package team

import (
	"context"

	"github.com/hitoshi/blossom/internal/model"
)

// Provider はチームとメンバーシップを管理するIdPのインターフェース。
// identity.Client が満たす。
type Provider interface {
	GetTeam(ctx context.Context, teamID string) (*model.Team, error)
	GetUserTeam(ctx context.Context, userID, teamID string) (*model.Team, error)
	CreateTeam(ctx context.Context, displayName string) (*model.Team, error)
	AddUser(ctx context.Context, teamID, userID string) error
	RemoveUser(ctx context.Context, teamID, userID string) error
}

// DeckLister はチームのデッキ一覧を返す。teamdeck.Service が満たす。
type DeckLister interface {
	ListDecks(ctx context.Context, teamID string) ([]*model.Deck, error)
}
