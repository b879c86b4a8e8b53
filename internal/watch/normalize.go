package watch

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reTags       = regexp.MustCompile(`<[^>]+>`)
	reNonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// dashLikes maps unusual dash/slash codepoints onto their ASCII forms before
// the non-alphanumeric collapse, so "Gore‑Tex" (U+2011) matches "gore-tex".
var dashLikes = strings.NewReplacer(
	"‑", "-", // non-breaking hyphen
	"–", "-", // en dash
	"—", "-", // em dash
	"−", "-", // minus sign
	"／", "/", // fullwidth solidus
)

var stripAccents = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
)

// StripHTML replaces markup tags with spaces.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}
	return reTags.ReplaceAllString(html, " ")
}

// NormalizeText lowercases, strips accents, and collapses every run of
// non-alphanumeric characters to a single space. Two labels are considered
// textually equal when their normalized forms are equal.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	if out, _, err := transform.String(stripAccents, text); err == nil {
		text = out
	}
	text = strings.ToLower(text)
	text = dashLikes.Replace(text)
	text = reNonAlnum.ReplaceAllString(text, " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

func tryParseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SizeLabelMatches reports whether a size option label refers to the target
// size. Numeric labels compare numerically ("8" matches "8.0"); everything
// else falls back to normalized text equality ("M" matches "m").
func SizeLabelMatches(optionLabel, targetSize string) bool {
	optionLabel = strings.TrimSpace(optionLabel)
	targetSize = strings.TrimSpace(targetSize)

	if a, okA := tryParseFloat(optionLabel); okA {
		if b, okB := tryParseFloat(targetSize); okB {
			return math.Abs(a-b) < 1e-9
		}
	}
	return NormalizeText(optionLabel) == NormalizeText(targetSize)
}

// MatchesKeywords reports whether any keyword occurs in the haystack after
// normalization. An empty keyword list matches everything.
func MatchesKeywords(haystack string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	hay := NormalizeText(haystack)
	if hay == "" {
		return false
	}
	for _, kw := range keywords {
		needle := NormalizeText(kw)
		if needle != "" && strings.Contains(hay, needle) {
			return true
		}
	}
	return false
}

// TileMatchesKeywords keyword-matches a category tile by name + description.
func TileMatchesKeywords(tile CategoryTile, keywords []string) bool {
	return MatchesKeywords(tile.Name+" "+tile.Description, keywords)
}

// SnapshotMatchesKeywords keyword-matches the full product payload text.
func (p *ProductSnapshot) MatchesKeywords(keywords []string) bool {
	parts := []string{
		p.Name,
		p.MarketingName,
		p.ShortDescription,
		StripHTML(p.Description),
	}
	return MatchesKeywords(strings.Join(parts, " "), keywords)
}
