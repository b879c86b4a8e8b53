package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"stockwatch/internal/catalog"
	"stockwatch/internal/watch"
	"stockwatch/pkg/logx"
)

// TelegramConfig configures the outbound Telegram notifier.
type TelegramConfig struct {
	Token          string
	ChatIDs        []int64
	Timeout        time.Duration // per send call; default 10s
	DisablePreview bool
	// LogFile, when set, is referenced at the bottom of error digests.
	LogFile string
}

// Telegram delivers alerts to one or more chats. Sends are fire-and-forget:
// no retry queue, the policy layer re-arms failed alerts for the next cycle.
type Telegram struct {
	cfg TelegramConfig
	bot *tele.Bot
	log logx.Logger
	now func() time.Time
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("telegram chat_ids is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	return &Telegram{cfg: cfg, bot: bot, log: log, now: time.Now}, nil
}

// SetClock overrides the notifier's clock. Used by tests.
func (t *Telegram) SetClock(now func() time.Time) { t.now = now }

func (t *Telegram) SendRestockAlert(ctx context.Context, report watch.WatchReport) error {
	if len(report.Events) == 0 {
		return nil
	}
	return t.sendText(ctx, BuildRestockText(report, t.now()))
}

func (t *Telegram) SendErrorDigest(ctx context.Context, digest watch.ErrorDigest) error {
	return t.sendText(ctx, BuildErrorDigestText(digest, t.cfg.LogFile, t.now()))
}

func (t *Telegram) SendCatalogChanges(ctx context.Context, taskName string, diff catalog.Diff) error {
	if diff.Empty() {
		return nil
	}
	return t.sendText(ctx, BuildCatalogChangesText(taskName, diff, t.now()))
}

func (t *Telegram) SendCatalogBaseline(ctx context.Context, taskName, url string, productCount int) error {
	return t.sendText(ctx, BuildCatalogBaselineText(taskName, url, productCount, t.now()))
}

// sendText fans the message out to every configured chat, chunked to the
// transport limit. It returns nil only when every chunk reached every chat.
func (t *Telegram) sendText(ctx context.Context, text string) error {
	chunks := ChunkText(text, MaxMessageLen)
	opts := &tele.SendOptions{DisableWebPagePreview: t.cfg.DisablePreview}

	var errs []error
	for _, chatID := range t.cfg.ChatIDs {
		chat := &tele.Chat{ID: chatID}
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}
			if _, err := t.bot.Send(chat, chunk, opts); err != nil {
				t.log.Error("telegram send failed",
					logx.Int64("chat_id", chatID), logx.Err(err))
				errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}
