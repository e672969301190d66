package deck

import (
	"github.com/hitoshi/blossom/internal/model"
	"github.com/hitoshi/blossom/internal/security"
)

// NewCard は入力を検証・サニタイズし、デッキに属する新しいカードを組み立てる。
// IDは呼び出し元で設定する。TeamIDはデッキからコピーする。
func NewCard(sanitizer security.TextSanitizer, d *model.Deck, front, back string, tags []string, ownerID string, now int64) (*model.Card, error) {
	front = sanitizer.Sanitize(front)
	if front == "" {
		return nil, model.NewRequiredFieldError("front")
	}
	back = sanitizer.Sanitize(back)
	if back == "" {
		return nil, model.NewRequiredFieldError("back")
	}

	return &model.Card{
		DeckID:    d.ID,
		Front:     front,
		Back:      back,
		Tags:      sanitizer.SanitizeTags(tags),
		TeamID:    d.TeamID,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SanitizeDeckPatch はpatchの各フィールドをサニタイズする。
// タイトルを空にする更新は拒否する。
func SanitizeDeckPatch(sanitizer security.TextSanitizer, patch model.DeckPatch) (model.DeckPatch, error) {
	var out model.DeckPatch
	if patch.Title != nil {
		title := sanitizer.Sanitize(*patch.Title)
		if title == "" {
			return out, model.NewRequiredFieldError("title")
		}
		out.Title = &title
	}
	if patch.Description != nil {
		description := sanitizer.Sanitize(*patch.Description)
		out.Description = &description
	}
	return out, nil
}

// SanitizeCardPatch はpatchの各フィールドをサニタイズする。
// 表・裏を空にする更新は拒否する。
func SanitizeCardPatch(sanitizer security.TextSanitizer, patch model.CardPatch) (model.CardPatch, error) {
	var out model.CardPatch
	if patch.Front != nil {
		front := sanitizer.Sanitize(*patch.Front)
		if front == "" {
			return out, model.NewRequiredFieldError("front")
		}
		out.Front = &front
	}
	if patch.Back != nil {
		back := sanitizer.Sanitize(*patch.Back)
		if back == "" {
			return out, model.NewRequiredFieldError("back")
		}
		out.Back = &back
	}
	if patch.Tags != nil {
		tags := sanitizer.SanitizeTags(*patch.Tags)
		out.Tags = &tags
	}
	return out, nil
}
