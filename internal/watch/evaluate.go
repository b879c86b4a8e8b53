package watch

import "sort"

// DefaultInStockStatuses are the raw variant statuses that count as
// purchasable.
func DefaultInStockStatuses() map[string]struct{} {
	return map[string]struct{}{
		"InStock":  {},
		"LowStock": {},
	}
}

// Evaluator derives StockResults from product snapshots. It is stateless and
// safe for concurrent use.
type Evaluator struct {
	inStockStatuses map[string]struct{}
}

func NewEvaluator(inStockStatuses map[string]struct{}) *Evaluator {
	if len(inStockStatuses) == 0 {
		inStockStatuses = DefaultInStockStatuses()
	}
	return &Evaluator{inStockStatuses: inStockStatuses}
}

// Evaluate computes stock for one target size label.
//
// A product with no matching size options or no variants evaluates to
// out-of-stock with an empty colour set; that is a result, not an error.
func (e *Evaluator) Evaluate(p *ProductSnapshot, targetSizeLabel string) StockResult {
	productID := p.ID.String()
	if productID == "" {
		productID = p.Slug
	}
	if productID == "" {
		productID = p.URL
	}
	name := p.Name
	if name == "" {
		name = productID
	}

	sizeIDs := p.sizeIDsMatching(targetSizeLabel)
	sizeIDSet := make(map[string]struct{}, len(sizeIDs))
	for _, id := range sizeIDs {
		sizeIDSet[id] = struct{}{}
	}

	colourByID := p.colourLabels()
	statusByColour := make(map[string]string)
	inStockSet := make(map[string]struct{})

	for _, v := range p.Variants {
		sizeID := v.SizeID.String()
		if sizeID == "" {
			continue
		}
		if _, ok := sizeIDSet[sizeID]; !ok {
			continue
		}

		colour := colourByID[v.ColourID.String()]
		if colour == "" {
			colour = v.ColourID.String()
		}
		if colour == "" {
			colour = "Unknown"
		}

		statusByColour[colour] = v.StockStatus
		if _, ok := e.inStockStatuses[v.StockStatus]; ok {
			inStockSet[colour] = struct{}{}
		}
	}

	inStockColours := make([]string, 0, len(inStockSet))
	for c := range inStockSet {
		inStockColours = append(inStockColours, c)
	}
	sort.Strings(inStockColours)

	return StockResult{
		ProductURL:          p.URL,
		ProductID:           productID,
		Name:                name,
		Currency:            p.CurrencyCode,
		Price:               p.Price.Ptr(),
		DiscountPrice:       p.DiscountPrice.Ptr(),
		SizeLabel:           targetSizeLabel,
		SizeIDs:             sizeIDs,
		InStock:             len(inStockColours) > 0,
		InStockColours:      inStockColours,
		StockStatusByColour: statusByColour,
	}
}

// sizeIDsMatching unions every size option whose label matches the target.
// Duplicate option rows for one label are common in the payload.
func (p *ProductSnapshot) sizeIDsMatching(targetSizeLabel string) []string {
	var ids []string
	for _, opt := range p.SizeOptions.Options {
		if opt.Label == "" || opt.Value == "" {
			continue
		}
		if SizeLabelMatches(opt.Label, targetSizeLabel) {
			ids = append(ids, opt.Value.String())
		}
	}
	return ids
}

func (p *ProductSnapshot) colourLabels() map[string]string {
	m := make(map[string]string, len(p.ColourOptions.Options))
	for _, opt := range p.ColourOptions.Options {
		if opt.Value == "" || opt.Label == "" {
			continue
		}
		m[opt.Value.String()] = opt.Label
	}
	return m
}
