package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"stockwatch/internal/watch"
)

var (
	errNoNextData = errors.New("missing __NEXT_DATA__ script")
	errNoProduct  = errors.New("missing product payload")
)

// nextData mirrors the slice of the Next.js page payload we care about.
// The product is either an inline object or a JSON-encoded string.
type nextData struct {
	Props struct {
		PageProps struct {
			Product json.RawMessage `json:"product"`
		} `json:"pageProps"`
	} `json:"props"`
}

// ExtractProduct pulls the product payload out of a product page: the
// contents of <script id="__NEXT_DATA__">, then props.pageProps.product.
func ExtractProduct(html string) (*watch.ProductSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	raw := doc.Find(`script#__NEXT_DATA__`).First().Text()
	if strings.TrimSpace(raw) == "" {
		return nil, errNoNextData
	}

	var nd nextData
	if err := json.Unmarshal([]byte(raw), &nd); err != nil {
		return nil, fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}

	blob := nd.Props.PageProps.Product
	if len(blob) == 0 || string(blob) == "null" {
		return nil, errNoProduct
	}

	// Some renders embed the product as a JSON string instead of an object.
	if blob[0] == '"' {
		var inner string
		if err := json.Unmarshal(blob, &inner); err != nil {
			return nil, fmt.Errorf("decode product string: %w", err)
		}
		blob = json.RawMessage(inner)
	}

	var snap watch.ProductSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("decode product payload: %w", err)
	}
	return &snap, nil
}
