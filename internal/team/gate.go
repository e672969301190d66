package team

import (
	"context"
	"fmt"

	"github.com/hitoshi/blossom/internal/model"
)

// Visibility はチームページの表示モード。
type Visibility string

const (
	VisibilitySignedOut Visibility = "signed-out"
	VisibilityMember    Visibility = "member"
	VisibilityPreview   Visibility = "preview"
)

// Summary はメンバー向けのチーム情報。
type Summary struct {
	ID          string
	Name        string
	Description string
	MemberCount int
}

// PreviewDeck はプレビューに表示するデッキ情報。カードは含まない。
type PreviewDeck struct {
	ID          string
	Title       string
	Description string
}

// Preview は非メンバー向けの限定情報。メンバー数は含めない。
type Preview struct {
	ID          string
	Name        string
	Description string
	Decks       []PreviewDeck
	CanJoin     bool
}

// View はチームページの表示内容。Visibilityに応じてTeamまたはPreviewのみが設定される。
type View struct {
	Visibility Visibility
	Team       *Summary
	Preview    *Preview
}

// Gate はチームページの可視性を判定する。
type Gate struct {
	provider Provider
	registry registryReader
	decks    DeckLister
}

type registryReader interface {
	FindByTeamID(ctx context.Context, teamID string) (*model.PublicTeam, error)
}

// NewGate はGateを生成する。
func NewGate(provider Provider, registry registryReader, decks DeckLister) *Gate {
	return &Gate{provider: provider, registry: registry, decks: decks}
}

// Visibility は呼び出し元に対するチームの可視性を返す。
// メンバーシップはIdPに毎回問い合わせ、キャッシュしない。
func (g *Gate) Visibility(ctx context.Context, sess *model.Session, teamID string) (Visibility, error) {
	if sess == nil {
		return VisibilitySignedOut, nil
	}
	t, err := g.provider.GetUserTeam(ctx, sess.UserID, teamID)
	if err != nil {
		return "", fmt.Errorf("メンバーシップの確認に失敗しました: %w", err)
	}
	if t != nil {
		return VisibilityMember, nil
	}
	return VisibilityPreview, nil
}

// RequireMember はメンバーでない場合にNOT_TEAM_MEMBERを返す。
func (g *Gate) RequireMember(ctx context.Context, sess *model.Session, teamID string) error {
	if sess == nil {
		return model.NewUnauthorizedError()
	}
	v, err := g.Visibility(ctx, sess, teamID)
	if err != nil {
		return err
	}
	if v != VisibilityMember {
		return model.NewNotTeamMemberError()
	}
	return nil
}

// View はチームページの表示内容を組み立てる。
// 名前と説明は公開チームレジストリを優先し、未登録の場合はIdPの値を使う。
func (g *Gate) View(ctx context.Context, sess *model.Session, teamID string) (*View, error) {
	v, err := g.Visibility(ctx, sess, teamID)
	if err != nil {
		return nil, err
	}
	if v == VisibilitySignedOut {
		return &View{Visibility: v}, nil
	}

	pt, err := g.registry.FindByTeamID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("公開チームの取得に失敗しました: %w", err)
	}

	summary := &Summary{ID: teamID}
	if pt != nil {
		summary.Name = pt.Name
		summary.Description = pt.Description
		summary.MemberCount = pt.MemberCount
	} else {
		t, err := g.provider.GetTeam(ctx, teamID)
		if err != nil {
			return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
		}
		if t == nil {
			return nil, model.NewTeamNotFoundError()
		}
		summary.Name = t.DisplayName
		summary.Description = t.Description
	}

	if v == VisibilityMember {
		return &View{Visibility: v, Team: summary}, nil
	}

	decks, err := g.decks.ListDecks(ctx, teamID)
	if err != nil {
		return nil, err
	}
	preview := &Preview{
		ID:          teamID,
		Name:        summary.Name,
		Description: summary.Description,
		Decks:       make([]PreviewDeck, 0, len(decks)),
		CanJoin:     true,
	}
	for _, d := range decks {
		preview.Decks = append(preview.Decks, PreviewDeck{ID: d.ID, Title: d.Title, Description: d.Description})
	}
	return &View{Visibility: v, Preview: preview}, nil
}
