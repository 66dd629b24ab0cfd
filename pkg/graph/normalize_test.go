package graph

import "testing"

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"lowercase passthrough", "acme", "acme"},
		{"mixed case", "Acme Corp", "acmecorp"},
		{"punctuation stripped", "Acme, Inc.", "acmeinc"},
		{"whitespace stripped", "  New  York  ", "newyork"},
		{"digits kept", "GPT-4", "gpt4"},
		{"hangul kept", "삼성 전자", "삼성전자"},
		{"only punctuation", "!?—…", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeLabel(tt.label); got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalizeRelation(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"spaces become joiner", "works at", "works_at"},
		{"runs collapse", "works   at!!", "works_at"},
		{"already normalized", "works_at", "works_at"},
		{"leading trailing trimmed", "  is part of  ", "is_part_of"},
		{"case folded", "Works At", "works_at"},
		{"hangul", "근무 한다", "근무_한다"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRelation(tt.label); got != tt.want {
				t.Errorf("NormalizeRelation(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}
