package model

// Session はリクエストの呼び出し元を表す。
// アクセストークンの検証後に生成され、ハンドラーからサービス層へ明示的に渡される。
type Session struct {
	UserID      string
	AccessToken string
	ExpiresAt   int64
}

// Grade は学習時の自己評価（0〜5）を表す。
type Grade int

const (
	GradeAgain     Grade = 0
	GradeHard      Grade = 1
	GradeDifficult Grade = 2
	GradeGood      Grade = 3
	GradeEasy      Grade = 4
	GradePerfect   Grade = 5
)

// Valid は評価値が0〜5の範囲内であればtrueを返す。
func (g Grade) Valid() bool {
	return g >= GradeAgain && g <= GradePerfect
}
