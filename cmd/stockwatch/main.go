package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stockwatch/internal/app"
	"stockwatch/internal/watch"
)

func main() {
	var (
		cfgPath string
		once    bool
		dryRun  bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml/json")
	flag.BoolVar(&once, "once", false, "run a single cycle and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "run cycles without sending alerts")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath, DryRun: dryRun})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer a.Close()

	if once {
		err := a.RunOnce(ctx)
		switch {
		case err == nil:
		case errors.Is(err, watch.ErrDispatchFailed):
			fmt.Println("cycle completed with undelivered alerts:", err)
			os.Exit(1)
		default:
			fmt.Println("cycle failed:", err)
			os.Exit(1)
		}
		return
	}

	if err := a.RunDaemon(ctx); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
