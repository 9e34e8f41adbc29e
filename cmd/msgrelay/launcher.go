package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/smhanov/msgrelay/internal/config"
)

// runAll starts one child process per role and keeps each running on its
// own. A crash of one child never touches the other.
func runAll(ctx context.Context, cfg config.Config, log *slog.Logger) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return exitRuntime, fmt.Errorf("locate executable: %w", err)
	}

	var wg sync.WaitGroup
	for _, role := range []string{roleCollector, roleFrontDoor} {
		wg.Add(1)
		go func(role string) {
			defer wg.Done()
			supervise(ctx, func() *exec.Cmd {
				return exec.Command(exe, role)
			}, role, cfg.RestartDelay, log)
		}(role)
	}
	wg.Wait()

	log.Info("all roles stopped")
	return exitOK, nil
}

// supervise runs the command built by newCmd until ctx is done, starting it
// again after delay whenever it exits. A child exiting with exitConfig is
// not restarted. On cancellation the child gets SIGTERM and is waited for.
func supervise(ctx context.Context, newCmd func() *exec.Cmd, role string, delay time.Duration, log *slog.Logger) {
	log = log.With("child", role)
	for {
		cmd := newCmd()
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Start(); err != nil {
			log.Error("failed to start", "err", err)
		} else {
			log.Info("started", "pid", cmd.Process.Pid)

			done := make(chan error, 1)
			go func() {
				done <- cmd.Wait()
			}()

			select {
			case err := <-done:
				if ctx.Err() != nil {
					return
				}
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) && exitErr.ExitCode() == exitConfig {
					log.Error("exited with a configuration error, not restarting")
					return
				}
				log.Error("exited", "err", err)
			case <-ctx.Done():
				if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
					cmd.Process.Kill()
				}
				err := <-done
				log.Info("stopped", "err", err)
				return
			}
		}

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
		log.Info("restarting")
	}
}
