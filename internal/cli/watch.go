package cli

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/attract-vse/attract/internal/attractapi"
	"github.com/attract-vse/attract/internal/shotsync"
	"github.com/attract-vse/attract/internal/strips"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func newWatchCommand(opts *RootOptions) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reorder on an interval, on timeline changes, on tracker events and on SIGHUP",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("interval") {
				opts.Config.Watch.Interval, _ = flags.GetDuration("interval")
			}
			if flags.Changed("jitter") {
				opts.Config.Watch.Jitter, _ = flags.GetFloat64("jitter")
			}
			if flags.Changed("events") {
				opts.Config.Watch.Events, _ = flags.GetBool("events")
			}

			sess, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			runner := shotsync.NewRunner(ctx, sess.engine, shotsync.RunnerOptions{Workers: sess.cfg.Watch.Workers})
			defer runner.Close()

			loop := newWatchLoop(runner, &opts.Logger, sess.cfg.Watch)
			if once {
				return loop.reorder(ctx, "once")
			}

			if watcher, ok := sess.store.(strips.Watcher); ok {
				changes, err := watcher.Watch(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "watch strip store", err)
				}
				go loop.forward(ctx, changes, "timeline changed")
			}
			if sess.cfg.Watch.Events {
				go loop.followEvents(ctx, sess.client)
			}
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, unix.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-hup:
						loop.trigger("SIGHUP")
					}
				}
			}()

			loop.run(ctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run one reorder pass and exit")
	cmd.Flags().Duration("interval", 0, "reorder interval (default from config, 30s)")
	cmd.Flags().Float64("jitter", 0, "interval jitter ratio (0.0-1.0)")
	cmd.Flags().Bool("events", true, "reorder when the tracker reports node changes")
	return cmd
}

type watchLoop struct {
	runner   *shotsync.Runner
	logger   *zerolog.Logger
	interval time.Duration
	jitter   float64
	rngMu    sync.Mutex
	rng      *rand.Rand
	triggers chan string
	passDone func(shotsync.ReorderReport, error)
}

func newWatchLoop(runner *shotsync.Runner, logger *zerolog.Logger, cfg WatchConfig) *watchLoop {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &watchLoop{
		runner:   runner,
		logger:   logger,
		interval: interval,
		jitter:   clampJitterRatio(cfg.Jitter),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		triggers: make(chan string, 1),
	}
}

// trigger requests a pass. Requests made while one is pending collapse into it.
func (l *watchLoop) trigger(reason string) {
	select {
	case l.triggers <- reason:
	default:
	}
}

func (l *watchLoop) forward(ctx context.Context, changes <-chan struct{}, reason string) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			l.trigger(reason)
		}
	}
}

// followEvents keeps a node event subscription open, reconnecting after a
// jittered interval when it drops.
func (l *watchLoop) followEvents(ctx context.Context, client *attractapi.HTTPClient) {
	for {
		err := client.WatchNodes(ctx, func(event attractapi.NodeEvent) {
			l.logger.Debug().Str("event", event.Type).Str("node", event.NodeID).Msg("tracker event")
			// Reorder passes emit updates of their own; only deletions
			// change what a pass would do.
			if event.Type == attractapi.EventNodeDeleted {
				l.trigger("shot deleted")
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.logger.Warn().Err(err).Msg("tracker event stream failed")
		}
		timer := time.NewTimer(l.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *watchLoop) run(ctx context.Context) {
	_ = l.reorder(ctx, "startup")
	timer := time.NewTimer(l.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Err(ctx.Err()).Msg("watch stopping")
			return
		case reason := <-l.triggers:
			_ = l.reorder(ctx, reason)
		case <-timer.C:
			_ = l.reorder(ctx, "interval")
			timer.Reset(l.nextDelay())
		}
	}
}

func (l *watchLoop) reorder(ctx context.Context, reason string) error {
	done, err := l.runner.Submit(shotsync.Request{Op: shotsync.OpReorder})
	if err != nil {
		if errors.Is(err, shotsync.ErrQueueFull) {
			l.logger.Debug().Str("reason", reason).Msg("reorder already queued")
			return nil
		}
		return WrapExitError(ExitFailure, "reorder", err)
	}
	var result shotsync.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result = <-done:
	}

	var report shotsync.ReorderReport
	if result.Report != nil {
		report = *result.Report
	}
	if l.passDone != nil {
		l.passDone(report, result.Err)
	}
	if result.Err != nil {
		l.logger.Error().Err(result.Err).Str("reason", reason).Int("ordered", len(report.Ordered)).Msg("reorder failed")
		return WrapExitError(ExitFailure, "reorder", result.Err)
	}
	l.logger.Info().
		Str("reason", reason).
		Int("ordered", len(report.Ordered)).
		Int("unlinked", len(report.Unlinked)).
		Bool("truncated", report.Truncated).
		Msg("reorder completed")
	return nil
}

// nextDelay is called from both the pass loop and the event reconnect loop.
func (l *watchLoop) nextDelay() time.Duration {
	l.rngMu.Lock()
	sample := l.rng.Float64()
	l.rngMu.Unlock()
	return jitteredIntervalWithSample(l.interval, l.jitter, sample)
}

func clampJitterRatio(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func jitteredIntervalWithSample(base time.Duration, jitterRatio, sample float64) time.Duration {
	if base <= 0 {
		return 0
	}
	jitterRatio = clampJitterRatio(jitterRatio)
	if jitterRatio == 0 {
		return base
	}
	if sample < 0 {
		sample = 0
	} else if sample > 1 {
		sample = 1
	}
	factor := 1 + ((sample*2)-1)*jitterRatio
	if factor < 0 {
		factor = 0
	}
	delay := time.Duration(float64(base) * factor)
	if delay < time.Millisecond {
		return time.Millisecond
	}
	return delay
}
