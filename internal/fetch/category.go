package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stockwatch/internal/watch"
)

const (
	tileNameSelector  = `.product-tile-name, [class*='product-tile-name'], [class*='tile-name']`
	tileDescSelector  = `[data-component='body1'], [data-component='body2'], [class*='subtitle'], [class*='description']`
	tilePriceSelector = `[class*='price']`

	// tileAncestorDepth bounds how far we climb from a product link looking
	// for the surrounding tile markup.
	tileAncestorDepth = 8
)

// ParseCategoryHTML extracts product tiles from a category page. Product
// links are identified by their /shop/ path; name, description, and price
// come from the nearest enclosing tile markup, best-effort.
func ParseCategoryHTML(html string) ([]watch.CategoryTile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var tiles []watch.CategoryTile
	seen := make(map[string]struct{})

	doc.Find(`a[href*="/shop/"]`).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, "/shop/") {
			return
		}
		if i := strings.IndexByte(href, '?'); i >= 0 {
			href = href[:i]
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		name, desc, price := tileDetails(a)
		if name == "" {
			name = lastPathSegment(href)
		}

		tiles = append(tiles, watch.CategoryTile{
			ProductURL:  href,
			Name:        name,
			Description: desc,
			Price:       price,
		})
	})

	return tiles, nil
}

// tileDetails walks up from a product link collecting tile text. The page
// nests tiles differently per layout, so take the first name, the longest
// description, and the first price found within a few ancestor levels.
func tileDetails(a *goquery.Selection) (name, desc, price string) {
	node := a
	for i := 0; i < tileAncestorDepth; i++ {
		node = node.Parent()
		if node.Length() == 0 {
			break
		}

		if name == "" {
			node.Find(tileNameSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if t := strings.TrimSpace(s.Text()); t != "" {
					name = t
					return false
				}
				return true
			})
		}

		if desc == "" {
			best := ""
			node.Find(tileDescSelector).Each(func(_ int, s *goquery.Selection) {
				if t := strings.TrimSpace(s.Text()); len(t) > len(best) {
					best = t
				}
			})
			desc = best
		}

		if price == "" {
			if t := strings.TrimSpace(node.Find(tilePriceSelector).First().Text()); t != "" {
				price = strings.Join(strings.Fields(t), " ")
			}
		}

		if name != "" && desc != "" && price != "" {
			break
		}
	}
	return name, desc, price
}

// ResolveURL makes a scraped href absolute against the page it came from.
// Unparseable inputs pass through unchanged.
func ResolveURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func lastPathSegment(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndexByte(u, '/'); i >= 0 {
		return u[i+1:]
	}
	return u
}
