package notifier

import (
	"fmt"
	"math"
	"strings"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/watch"
)

const (
	timeFormat = "2006-01-02 15:04:05"

	// maxErrorMessageLen keeps one digest line from swallowing the message.
	maxErrorMessageLen = 300
	// maxCatalogLines bounds each section of a catalog-change message.
	maxCatalogLines = 10
)

// FormatPrice renders a price with its currency, trimming ".00".
func FormatPrice(currency string, value *float64) string {
	if value == nil {
		return ""
	}
	var amount string
	if *value == math.Trunc(*value) {
		amount = fmt.Sprintf("$%.0f", *value)
	} else {
		amount = fmt.Sprintf("$%.2f", *value)
	}
	if currency != "" {
		return currency + " " + amount
	}
	return amount
}

// BuildRestockText renders the per-watch restock alert.
func BuildRestockText(report watch.WatchReport, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Restock Alert: %s\n", report.Name)
	fmt.Fprintf(&b, "Time: %s\n", now.Format(timeFormat))
	if report.SizeLabel != "" {
		fmt.Fprintf(&b, "Size: %s\n", report.SizeLabel)
	}
	if len(report.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(report.Keywords, ", "))
	}
	if report.CategoryURL != "" {
		fmt.Fprintf(&b, "Category: %s\n", report.CategoryURL)
	}
	b.WriteString("\n")

	for i, ev := range report.Events {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ev.Name)
		if ev.SizeLabel != "" {
			fmt.Fprintf(&b, "   size: %s\n", ev.SizeLabel)
		}
		if price := FormatPrice(ev.Currency, ev.EffectivePrice()); price != "" {
			fmt.Fprintf(&b, "   price: %s\n", price)
		}
		if ev.Note != "" {
			fmt.Fprintf(&b, "   note: %s\n", ev.Note)
		}
		if len(ev.InStockColours) > 0 {
			fmt.Fprintf(&b, "   colours: %s\n", strings.Join(ev.InStockColours, ", "))
		}
		if ev.ProductURL != "" {
			fmt.Fprintf(&b, "   %s\n", ev.ProductURL)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildErrorDigestText renders the aggregated failure summary.
func BuildErrorDigestText(digest watch.ErrorDigest, logFile string, now time.Time) string {
	var b strings.Builder
	b.WriteString("⚠️ Stock Watch Errors\n")
	fmt.Fprintf(&b, "Time: %s\n", now.Format(timeFormat))
	fmt.Fprintf(&b, "Errors: %d\n\n", digest.Total)
	b.WriteString("Top errors:\n")

	for _, e := range digest.Entries {
		msg := strings.Join(strings.Fields(e.Message), " ")
		if r := []rune(msg); len(r) > maxErrorMessageLen {
			msg = string(r[:maxErrorMessageLen-3]) + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", e.Context, msg)
	}

	b.WriteString("\nPossible causes: network issues, rate limiting/blocking (HTTP 403/429), or site changes.")
	if logFile != "" {
		fmt.Fprintf(&b, "\nLog: %s", logFile)
	}
	return b.String()
}

// BuildCatalogChangesText renders a catalog diff summary.
func BuildCatalogChangesText(taskName string, diff catalog.Diff, now time.Time) string {
	var summary []string
	if n := len(diff.Added); n > 0 {
		summary = append(summary, fmt.Sprintf("🆕 New items %d", n))
	}
	if n := len(diff.PriceChanges); n > 0 {
		summary = append(summary, fmt.Sprintf("💰 Price changes %d", n))
	}
	if n := len(diff.Removed); n > 0 {
		summary = append(summary, fmt.Sprintf("📦 Removed %d", n))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛒 Catalog Update: %s\n", taskName)
	fmt.Fprintf(&b, "Time: %s\n", now.Format(timeFormat))
	fmt.Fprintf(&b, "Summary: %s\n", strings.Join(summary, " | "))

	if len(diff.Added) > 0 {
		b.WriteString("\n🆕 New items:\n")
		for _, p := range head(diff.Added) {
			price := p.Price
			if price == "" {
				price = "N/A"
			}
			fmt.Fprintf(&b, "- %s (%s)\n", p.Name, price)
			if p.Link != "" {
				fmt.Fprintf(&b, "  %s\n", p.Link)
			}
		}
	}

	if len(diff.PriceChanges) > 0 {
		b.WriteString("\n💰 Price changes:\n")
		n := len(diff.PriceChanges)
		if n > maxCatalogLines {
			n = maxCatalogLines
		}
		for _, c := range diff.PriceChanges[:n] {
			fmt.Fprintf(&b, "- %s: %s → %s\n", c.Product.Name, c.OldPrice, c.NewPrice)
			if c.Product.Link != "" {
				fmt.Fprintf(&b, "  %s\n", c.Product.Link)
			}
		}
	}

	if len(diff.Removed) > 0 {
		b.WriteString("\n📦 Removed items:\n")
		for _, p := range head(diff.Removed) {
			fmt.Fprintf(&b, "- %s\n", p.Name)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildCatalogBaselineText renders the one-time baseline-created notice.
func BuildCatalogBaselineText(taskName, url string, productCount int, now time.Time) string {
	return strings.Join([]string{
		fmt.Sprintf("🛒 Catalog baseline created: %s", taskName),
		fmt.Sprintf("Time: %s", now.Format(timeFormat)),
		fmt.Sprintf("Products: %d", productCount),
		fmt.Sprintf("URL: %s", url),
	}, "\n")
}

func head(products []catalog.Product) []catalog.Product {
	if len(products) > maxCatalogLines {
		return products[:maxCatalogLines]
	}
	return products
}
