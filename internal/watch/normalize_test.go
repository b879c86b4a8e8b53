package watch

import "testing"

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "lowercase", in: "Beta AR Jacket", want: "beta ar jacket"},
		{name: "punctuation collapses", in: "Gore-Tex / Pro!", want: "gore tex pro"},
		{name: "unicode dash", in: "Gore‑Tex", want: "gore tex"},
		{name: "accents stripped", in: "Arc'téryx", want: "arc teryx"},
		{name: "whitespace runs", in: "  alpha \t sv  ", want: "alpha sv"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Fatalf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSizeLabelMatches(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		label  string
		target string
		want   bool
	}{
		{name: "numeric equal", label: "8", target: "8.0", want: true},
		{name: "numeric spacing", label: " 8 ", target: "8", want: true},
		{name: "numeric different", label: "8", target: "8.5", want: false},
		{name: "half size", label: "9.5", target: "9.5", want: true},
		{name: "text case", label: "M", target: "m", want: true},
		{name: "text punctuation", label: "One-Size", target: "one size", want: true},
		{name: "text different", label: "M", target: "L", want: false},
		{name: "numeric vs text", label: "8", target: "M", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := SizeLabelMatches(tt.label, tt.target); got != tt.want {
				t.Fatalf("SizeLabelMatches(%q, %q) = %v, want %v", tt.label, tt.target, got, tt.want)
			}
		})
	}
}

func TestMatchesKeywords(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		haystack string
		keywords []string
		want     bool
	}{
		{name: "no keywords matches all", haystack: "anything", keywords: nil, want: true},
		{name: "simple hit", haystack: "Beta AR Jacket Men's", keywords: []string{"beta"}, want: true},
		{name: "normalized hit", haystack: "GORE‑TEX Pro shell", keywords: []string{"gore-tex"}, want: true},
		{name: "any of several", haystack: "Atom Hoody", keywords: []string{"beta", "atom"}, want: true},
		{name: "miss", haystack: "Atom Hoody", keywords: []string{"beta"}, want: false},
		{name: "empty haystack", haystack: "", keywords: []string{"beta"}, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesKeywords(tt.haystack, tt.keywords); got != tt.want {
				t.Fatalf("MatchesKeywords(%q, %v) = %v, want %v", tt.haystack, tt.keywords, got, tt.want)
			}
		})
	}
}

func TestSnapshotMatchesKeywordsUsesDescriptionHTML(t *testing.T) {
	t.Parallel()
	p := &ProductSnapshot{
		Name:        "Alpha SV Glove",
		Description: "<p>Durable <b>GORE-TEX</b> insert.</p>",
	}
	if !p.MatchesKeywords([]string{"gore tex"}) {
		t.Fatal("expected keyword match in HTML description")
	}
	if p.MatchesKeywords([]string{"beta"}) {
		t.Fatal("unexpected keyword match")
	}
}
