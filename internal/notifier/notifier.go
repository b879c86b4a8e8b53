package notifier

import (
	"context"

	"stockwatch/internal/catalog"
	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

// Notifier is the full outbound surface: restock alerts, error digests, and
// catalog-change summaries.
type Notifier interface {
	watch.Notifier
	catalog.Notifier
}

// Nop logs what would have been sent and reports success. Backs dry-run mode
// and configurations without Telegram credentials.
type Nop struct {
	Log logx.Logger
}

var _ Notifier = Nop{}

func (n Nop) SendRestockAlert(_ context.Context, report watch.WatchReport) error {
	n.Log.Info("notifier disabled: dropping restock alert",
		logx.String("watch", report.Name), logx.Int("events", len(report.Events)))
	return nil
}

func (n Nop) SendErrorDigest(_ context.Context, digest watch.ErrorDigest) error {
	n.Log.Info("notifier disabled: dropping error digest", logx.Int("errors", digest.Total))
	return nil
}

func (n Nop) SendCatalogChanges(_ context.Context, taskName string, diff catalog.Diff) error {
	n.Log.Info("notifier disabled: dropping catalog changes", logx.String("task", taskName))
	return nil
}

func (n Nop) SendCatalogBaseline(_ context.Context, taskName, _ string, productCount int) error {
	n.Log.Info("notifier disabled: dropping catalog baseline notice",
		logx.String("task", taskName), logx.Int("products", productCount))
	return nil
}
