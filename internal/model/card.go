package model

// Card は表裏とタグを持つ1枚のフラッシュカードを表す。
// TeamIDは作成時に所属デッキからコピーされる。
type Card struct {
	ID        string
	DeckID    string
	Front     string
	Back      string
	Tags      []string
	TeamID    string
	OwnerID   string
	CreatedAt int64
	UpdatedAt int64
}

// CardPatch はカードの部分更新内容を表す。
// nilのフィールドは変更しない。Tagsは指定された場合に丸ごと置き換える。
type CardPatch struct {
	Front *string
	Back  *string
	Tags  *[]string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p CardPatch) IsEmpty() bool {
	return p.Front == nil && p.Back == nil && p.Tags == nil
}

// Apply はnilでないフィールドのみをカードに反映する。
func (p CardPatch) Apply(c *Card) {
	if p.Front != nil {
		c.Front = *p.Front
	}
	if p.Back != nil {
		c.Back = *p.Back
	}
	if p.Tags != nil {
		tags := make([]string, len(*p.Tags))
		copy(tags, *p.Tags)
		c.Tags = tags
	}
}

// Clone はタグスライスを含めたカードのコピーを返す。
func (c *Card) Clone() *Card {
	cp := *c
	if c.Tags != nil {
		cp.Tags = make([]string, len(c.Tags))
		copy(cp.Tags, c.Tags)
	}
	return &cp
}
