// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, deck, team, study, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsAPIError はerrがAPIErrorを含む場合にtrueを返す。
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeDeckNotFound         = "DECK_NOT_FOUND"
	ErrCodeCardNotFound         = "CARD_NOT_FOUND"
	ErrCodeNotInTeam            = "NOT_IN_TEAM"
	ErrCodeNotTeamMember        = "NOT_TEAM_MEMBER"
	ErrCodeTeamNotFound         = "TEAM_NOT_FOUND"
	ErrCodeStudySessionNotFound = "STUDY_SESSION_NOT_FOUND"
	ErrCodeInvalidGrade         = "INVALID_GRADE"
	ErrCodeStudyComplete        = "STUDY_COMPLETE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewRequiredFieldError は必須項目が空の場合のエラーを生成する。
func NewRequiredFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s は必須です。", field),
		Category: "validation",
		Action:   fmt.Sprintf("%s を入力してください。", field),
	}
}

// NewTeamValidationError はチームAPIの入力エラーを生成する。
// チームAPIは {error: message} 形式で返すため、messageはそのまま利用者に表示される。
func NewTeamValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "team",
		Action:   "入力内容を確認してください。",
	}
}

// NewDeckNotFoundError はデッキ未検出エラーを生成する。
func NewDeckNotFoundError(deckID string) *APIError {
	return &APIError{
		Code:     ErrCodeDeckNotFound,
		Message:  fmt.Sprintf("指定されたデッキが見つかりません: %s", deckID),
		Category: "deck",
		Action:   "デッキIDを確認してください。",
	}
}

// NewCardNotFoundError はカード未検出エラーを生成する。
func NewCardNotFoundError(cardID string) *APIError {
	return &APIError{
		Code:     ErrCodeCardNotFound,
		Message:  fmt.Sprintf("指定されたカードが見つかりません: %s", cardID),
		Category: "deck",
		Action:   "カードIDを確認してください。",
	}
}

// NewNotInTeamError はデッキまたはカードが存在しないか、指定チームに属していない場合のエラーを生成する。
// kindには "Deck" または "Card" を指定する。
func NewNotInTeamError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeNotInTeam,
		Message:  fmt.Sprintf("%s not found or not in team", kind),
		Category: "team",
		Action:   "チームIDと対象IDを確認してください。",
	}
}

// NewNotTeamMemberError はチームのメンバーでない場合のエラーを生成する。
func NewNotTeamMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeNotTeamMember,
		Message:  "You are not a member of this team",
		Category: "team",
		Action:   "チームに参加してから再度お試しください。",
	}
}

// NewTeamNotFoundError はチーム未検出エラーを生成する。
func NewTeamNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTeamNotFound,
		Message:  "Team not found",
		Category: "team",
		Action:   "チームIDを確認してください。",
	}
}

// NewStudySessionNotFoundError は学習セッション未検出エラーを生成する。
func NewStudySessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeStudySessionNotFound,
		Message:  fmt.Sprintf("学習セッションが見つかりません: %s", sessionID),
		Category: "study",
		Action:   "学習を最初からやり直してください。",
	}
}

// NewInvalidGradeError は評価値が範囲外の場合のエラーを生成する。
func NewInvalidGradeError(quality int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGrade,
		Message:  fmt.Sprintf("無効な評価値です: %d", quality),
		Category: "validation",
		Action:   "評価は0から5の整数で指定してください。",
	}
}

// NewStudyCompleteError は評価済みのキューをさらに評価しようとした場合のエラーを生成する。
func NewStudyCompleteError() *APIError {
	return &APIError{
		Code:     ErrCodeStudyComplete,
		Message:  "すべてのカードを評価済みです",
		Category: "study",
		Action:   "リセットして最初からやり直してください。",
	}
}
