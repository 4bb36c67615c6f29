package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rewired-gh/zonewatch/internal/api"
	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/metrics"
	"github.com/rewired-gh/zonewatch/internal/monitor"
	"github.com/rewired-gh/zonewatch/internal/session"
	"github.com/rewired-gh/zonewatch/internal/telegram"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const statusLogInterval = 10 * time.Second

type runOptions struct {
	live          bool
	recorded      bool
	video         string
	videoUploaded bool
	startStream   bool
}

func runCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run live and/or recorded analysis until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.live && !opts.recorded {
				return errors.New("choose at least one of --live or --recorded")
			}
			return run(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.live, "live", false, "Analyse the live camera feed")
	cmd.Flags().BoolVar(&opts.recorded, "recorded", false, "Analyse the uploaded video")
	cmd.Flags().StringVar(&opts.video, "video", "", "Upload this video before starting recorded analysis")
	cmd.Flags().BoolVar(&opts.videoUploaded, "video-uploaded", false, "A video was already uploaded in an earlier run")
	cmd.Flags().BoolVar(&opts.startStream, "start-stream", false, "Start the backend camera stream first (and stop it on exit)")
	return cmd
}

func run(parent context.Context, a *app, opts runOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	origin, err := a.zones.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load zones: %v", err)
	}
	logger.Info("Loaded %d zone(s) from %s", a.zones.Len(), origin)

	cfg := a.cfg
	clk := clock.New()
	m := metrics.New()

	var notifier monitor.Notifier = monitor.LogNotifier{}
	var tg *telegram.Client
	if cfg.Telegram.Enabled {
		tg, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		notifier = tg
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var sink session.FrameSink
	if cfg.Analysis.FrameDir != "" {
		fs, err := newFrameDirSink(cfg.Analysis.FrameDir)
		if err != nil {
			return err
		}
		sink = fs
		logger.Info("Writing frames to %s", cfg.Analysis.FrameDir)
	}

	coord := session.NewCoordinator(session.CoordinatorOptions{
		Backend:          a.client,
		Zones:            a.zones,
		Clock:            clk,
		RecordedInterval: cfg.Analysis.RecordedPollInterval,
		LiveInterval:     cfg.Analysis.LivePollInterval,
		Aggregator:       monitor.NewAggregator(clk),
		Dispatcher:       monitor.NewDispatcher(clk, cfg.Analysis.AlertThreshold, cfg.Analysis.AlertDuration),
		Notifier:         notifier,
		Sink:             sink,
		Recorder:         m,
		VideoReady:       opts.videoUploaded,
	})

	if tg != nil {
		for _, mode := range []session.Mode{session.ModeLive, session.ModeRecorded} {
			coord.Session(mode).OnStateChange(func(info session.Info) {
				if info.State != session.Errored.String() {
					return
				}
				go func() {
					if err := tg.SendSessionError(ctx, info.Mode, info.LastError); err != nil {
						logger.Warn("Failed to send error notification to Telegram: %v", err)
					}
				}()
			})
		}
	}

	if opts.video != "" {
		f, err := os.Open(opts.video)
		if err != nil {
			return err
		}
		msg, err := coord.UploadVideo(ctx, f.Name(), f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		logger.Info("%s", msg)
	}
	if opts.startStream {
		msg, err := coord.StartStream(ctx)
		if err != nil {
			return fmt.Errorf("failed to start live stream: %w", err)
		}
		logger.Info("%s", msg)
	}

	var modes []session.Mode
	if opts.live {
		modes = append(modes, session.ModeLive)
	}
	if opts.recorded {
		modes = append(modes, session.ModeRecorded)
	}
	for _, mode := range modes {
		if err := coord.Start(ctx, mode); err != nil {
			coord.Shutdown(context.Background())
			return fmt.Errorf("failed to start %s analysis: %w", mode, err)
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return coord.Run(gctx)
	})
	if cfg.API.Enabled {
		srv := api.New(cfg.API.ListenAddr, coord, a.zones, cfg.Analysis.CapacityFor, m.Handler())
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	g.Go(func() error {
		watch(gctx, clk, coord, modes, cancelRun)
		return nil
	})

	err = g.Wait()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coord.Shutdown(shutdownCtx)
	printSummary(coord.Aggregator().Snapshot())
	if opts.startStream {
		if err := coord.StopStream(shutdownCtx); err != nil {
			logger.Warn("Failed to stop live stream: %v", err)
		}
	}
	return err
}

// watch logs a status line periodically and ends the run once every started
// session has stopped on its own.
func watch(ctx context.Context, clk clock.Clock, coord *session.Coordinator, modes []session.Mode, done context.CancelFunc) {
	ticker := clk.Ticker(statusLogInterval)
	defer ticker.Stop()

	check := clk.Ticker(time.Second)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := coord.Status(nil)
			logger.Info("Visible: %s, current: %d, peak: %d, active alerts: %d",
				st.Visible, st.Stats.CurrentCount, st.Stats.PeakCount, len(st.Alerts))
		case <-check.C:
			ended := true
			for _, mode := range modes {
				if coord.Session(mode).Status().Active() {
					ended = false
				}
			}
			if ended {
				for _, mode := range modes {
					info := coord.Session(mode).Info()
					logger.Info("%s analysis %s after %d frames %s", info.Mode, info.State, info.FramesPolled, info.LastError)
				}
				done()
				return
			}
		}
	}
}
