package model

// PublicTeam は公開チームレジストリの1行を表す。
// TeamIDは外部IdPのチームIDで、IDはストア側の識別子。
// MemberCountはIdPの実メンバー数と一致することが期待されるが、保証はされない。
type PublicTeam struct {
	ID          string
	TeamID      string
	Name        string
	Description string
	MemberCount int
	IsActive    bool
	CreatedAt   int64
	UpdatedAt   int64
}

// PublicTeamPatch は公開チーム情報の部分更新内容を表す。
type PublicTeamPatch struct {
	Name        *string
	Description *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p PublicTeamPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil
}

// Apply はnilでないフィールドのみを反映する。
func (p PublicTeamPatch) Apply(t *PublicTeam) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
}

// Team はIdPが管理するチームを表す。
type Team struct {
	ID          string
	DisplayName string
	Description string
}

// User はIdPが管理するユーザーを表す。
type User struct {
	ID                 string
	DisplayName        string
	Email              string
	SubscriptionStatus string // clientMetadata.subscriptionStatus
}

// HasPremium はプレミアムプランが有効な場合にtrueを返す。
func (u *User) HasPremium() bool {
	return u != nil && u.SubscriptionStatus == "active"
}
