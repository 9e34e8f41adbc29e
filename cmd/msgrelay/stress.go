package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"github.com/smhanov/msgrelay"
	"github.com/smhanov/msgrelay/internal/config"
)

func parseStressArgs(cfg config.Config, args []string) (msgrelay.StressTestArgs, error) {
	fs := flag.NewFlagSet(roleStress, flag.ContinueOnError)
	st := msgrelay.StressTestArgs{}
	fs.StringVar(&st.Address, "addr", cfg.RelayURL, "collector websocket url")
	fs.IntVar(&st.NumSessions, "sessions", 10, "number of concurrent sessions")
	fs.IntVar(&st.MessagesPerSession, "messages", 100, "messages sent by each session")
	fs.IntVar(&st.DelayMS, "delay", 100, "average delay between messages in milliseconds")
	fs.IntVar(&st.ConnectSpreadMS, "spread", 1000, "sessions connect within this many milliseconds")
	if err := fs.Parse(args); err != nil {
		return st, err
	}
	return st, nil
}

func runStress(ctx context.Context, cfg config.Config, log *slog.Logger, args []string) (int, error) {
	st, err := parseStressArgs(cfg, args)
	if err != nil {
		return exitConfig, err
	}
	st.Logger = log

	res, err := msgrelay.StressTest(ctx, st)
	log.Info("stress test finished", "stats", res.String())
	if err != nil && ctx.Err() == nil {
		return exitRuntime, fmt.Errorf("stress: %w", err)
	}
	return exitOK, nil
}
