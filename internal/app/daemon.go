package app

import (
	"context"
	"fmt"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"stockwatch/internal/config"
	"stockwatch/pkg/logx"
)

// RunDaemon runs cycles on the configured schedule until ctx is cancelled.
// The first cycle starts immediately; later triggers that would overlap a
// running cycle are skipped. The config file is watched and hot-reloaded;
// a reloaded schedule takes effect without a restart.
func (a *App) RunDaemon(ctx context.Context) error {
	cfg := a.cfgm.Get()

	reloaded := make(chan struct{}, 1)
	a.cfgm.OnReload(func(_ *config.Config) {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	go func() {
		if err := a.cfgm.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if cfg.Systemd.Notify {
		if _, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady); err != nil {
			a.log.Warn("sd_notify READY failed", logx.Err(err))
		}
		defer sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)
	}
	if cfg.Systemd.Watchdog {
		go a.petWatchdog(ctx)
	}

	a.tryRunCycle(ctx)

	for {
		schedule := a.cfgm.Get().Schedule
		stop, err := a.startSchedule(ctx, schedule)
		if err != nil {
			return err
		}
		a.log.Info("daemon running", logx.String("schedule", schedule))

		select {
		case <-ctx.Done():
			stop()
			a.log.Info("daemon stopping")
			return nil
		case <-reloaded:
			stop()
			a.log.Info("config reloaded, rescheduling")
		}
	}
}

// startSchedule starts the trigger source for one schedule string and returns
// a stop function.
func (a *App) startSchedule(ctx context.Context, raw string) (func(), error) {
	sched, err := ParseSchedule(raw)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	switch sched.Kind {
	case ScheduleCron:
		c := cron.New(cron.WithParser(cronParser))
		if _, err := c.AddFunc(sched.Cron, func() { a.tryRunCycle(ctx) }); err != nil {
			return nil, fmt.Errorf("app: invalid cron schedule %q: %w", sched.Cron, err)
		}
		c.Start()
		return func() {
			stopCtx := c.Stop()
			<-stopCtx.Done()
		}, nil

	default:
		tickCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			t := time.NewTicker(sched.Every)
			defer t.Stop()
			for {
				select {
				case <-tickCtx.Done():
					return
				case <-t.C:
					a.tryRunCycle(ctx)
				}
			}
		}()
		return func() {
			cancel()
			<-done
		}, nil
	}
}

// petWatchdog notifies the systemd watchdog at half the configured
// WatchdogSec. No-op when the watchdog is not armed.
func (a *App) petWatchdog(ctx context.Context) {
	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		if err != nil {
			a.log.Warn("systemd watchdog unavailable", logx.Err(err))
		}
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog); err != nil {
				a.log.Warn("sd_notify WATCHDOG failed", logx.Err(err))
			}
		}
	}
}
