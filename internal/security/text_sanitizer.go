// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はデッキ・カード・チームのユーザー入力テキストを保存可能な形に正規化する。
// 入力は入力されたとおりに保存し、マークアップの除去やエスケープは行わない。
// 表示時のエスケープはクライアントの責務とする。
package security

import (
	"strings"
	"unicode/utf8"
)

// TextSanitizer はユーザー入力テキストの正規化インターフェース。
type TextSanitizer interface {
	// Sanitize は前後の空白を取り除き、PostgreSQLのtext型に保存できない
	// NULバイトと不正なUTF-8を除去したテキストを返す。
	// "List<String>" や "&lt;b&gt;" のような文字列はそのまま残す。冪等。
	Sanitize(s string) string

	// SanitizeTags は各タグをSanitizeし、空になったタグを取り除く。
	// 結果は常に非nilのスライス。
	SanitizeTags(tags []string) []string
}

type textSanitizer struct{}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return textSanitizer{}
}

func (textSanitizer) Sanitize(in string) string {
	if in == "" {
		return ""
	}
	if !utf8.ValidString(in) {
		in = strings.ToValidUTF8(in, "")
	}
	if strings.IndexByte(in, 0) >= 0 {
		in = strings.ReplaceAll(in, "\x00", "")
	}
	return strings.TrimSpace(in)
}

func (s textSanitizer) SanitizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := s.Sanitize(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}
