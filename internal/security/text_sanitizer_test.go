package security

import (
	"reflect"
	"testing"
)

func TestSanitize(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "What is an enzyme?", "What is an enzyme?"},
		{"ジェネリクス表記を残す", "What is List<String>?", "What is List<String>?"},
		{"型パラメータを残す", "Map<K, V> lookup", "Map<K, V> lookup"},
		{"不等号を残す", "x<y and y>z", "x<y and y>z"},
		{"比較記号はエスケープしない", "2 < 3 && 5 > 4", "2 < 3 && 5 > 4"},
		{"エンティティをデコードしない", "&lt;b&gt;bold&lt;/b&gt;", "&lt;b&gt;bold&lt;/b&gt;"},
		{"タグ風の文字列もそのまま保存する", "<b>ATP</b> synthase", "<b>ATP</b> synthase"},
		{"前後の空白を除去する", "  catalyst \n", "catalyst"},
		{"NULバイトを除去する", "Km\x00 value", "Km value"},
		{"不正なUTF-8を除去する", "Vmax\xff", "Vmax"},
		{"空文字列", "", ""},
		{"日本語", " 酵素とは？ ", "酵素とは？"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	for _, input := range []string{
		"&lt;b&gt;x&lt;/b&gt;",
		"<b>x</b>",
		" Map<K, V>\x00 ",
		"\xffLock and key",
	} {
		first := sanitizer.Sanitize(input)
		second := sanitizer.Sanitize(first)
		if first != second {
			t.Errorf("冪等でない: %q -> %q -> %q", input, first, second)
		}
	}
}

func TestSanitizeTags(t *testing.T) {
	sanitizer := NewTextSanitizer()

	got := sanitizer.SanitizeTags([]string{" basics ", "  ", "", "C++", "List<T>"})
	want := []string{"basics", "C++", "List<T>"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SanitizeTags = %v, want %v", got, want)
	}

	empty := sanitizer.SanitizeTags(nil)
	if empty == nil || len(empty) != 0 {
		t.Errorf("nil入力は空スライスを返すべき: %#v", empty)
	}
}
