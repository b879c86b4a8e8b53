package watch

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number into a string. Product payloads
// are inconsistent about identifier types (size/colour ids appear both ways).
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	// Render integers without a trailing ".0".
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexFloat decodes a JSON number, treating null and non-numeric values as
// absent rather than failing the whole payload.
type FlexFloat struct {
	Float64 float64
	Valid   bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = FlexFloat{}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return nil
	}
	v, err := n.Float64()
	if err != nil {
		return nil
	}
	*f = FlexFloat{Float64: v, Valid: true}
	return nil
}

// Ptr returns the value as an optional, nil when absent.
func (f FlexFloat) Ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// ProductSnapshot is the normalized product payload extracted from a product
// page. Produced by the fetcher, consumed by the evaluator.
type ProductSnapshot struct {
	// URL is the source page URL, the identity key. Set by the fetcher,
	// not part of the payload.
	URL string `json:"-"`

	ID               FlexString  `json:"id"`
	Slug             string      `json:"slug"`
	Name             string      `json:"name"`
	MarketingName    string      `json:"marketingName"`
	ShortDescription string      `json:"shortDescription"`
	Description      string      `json:"description"`
	CurrencyCode     string      `json:"currencyCode"`
	Price            FlexFloat   `json:"price"`
	DiscountPrice    FlexFloat   `json:"discountPrice"`
	SizeOptions      OptionGroup `json:"sizeOptions"`
	ColourOptions    OptionGroup `json:"colourOptions"`
	Variants         []Variant   `json:"variants"`
}

type OptionGroup struct {
	Options []Option `json:"options"`
}

type Option struct {
	Label string     `json:"label"`
	Value FlexString `json:"value"`
}

type Variant struct {
	SizeID      FlexString `json:"sizeId"`
	ColourID    FlexString `json:"colourId"`
	StockStatus string     `json:"stockStatus"`
}

// CategoryTile is one product link scraped from a category page.
type CategoryTile struct {
	ProductURL  string
	Name        string
	Description string
	Price       string
}

// StockResult is the point-in-time stock evaluation of one product for one
// target size. InStock is true iff InStockColours is non-empty.
type StockResult struct {
	ProductURL          string
	ProductID           string
	Name                string
	Currency            string
	Price               *float64
	DiscountPrice       *float64
	SizeLabel           string
	SizeIDs             []string
	InStock             bool
	InStockColours      []string
	StockStatusByColour map[string]string
}

// EffectivePrice prefers the discount price when present.
func (r StockResult) EffectivePrice() *float64 {
	if r.DiscountPrice != nil {
		return r.DiscountPrice
	}
	return r.Price
}
