package deck

import (
	"strings"

	"github.com/hitoshi/blossom/internal/model"
)

// FilterCards は表・裏・いずれかのタグに大文字小文字を区別せずqueryを含むカードを返す。
// 空のqueryは全件を返す。入力の順序を維持する。
func FilterCards(cards []*model.Card, query string) []*model.Card {
	if query == "" {
		return cards
	}

	q := strings.ToLower(query)
	matched := make([]*model.Card, 0, len(cards))
	for _, c := range cards {
		if cardMatches(c, q) {
			matched = append(matched, c)
		}
	}
	return matched
}

func cardMatches(c *model.Card, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(c.Front), lowerQuery) ||
		strings.Contains(strings.ToLower(c.Back), lowerQuery) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}
