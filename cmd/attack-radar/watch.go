package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/hervehildenbrand/attack-radar/pkg/stream"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd() *cobra.Command {
	var (
		url      string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live stream of a running attack-radar",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()
			return watch(url, logger)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "Stream endpoint")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

func watch(url string, logger *zap.Logger) error {
	sub := stream.NewSubscriber(url, 256, 0, logger.Named("subscriber"))
	sub.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		sub.Stop()
	}()

	for frame := range sub.Frames() {
		logFrame(logger, frame)
	}
	return nil
}

func logFrame(logger *zap.Logger, f models.Frame) {
	switch {
	case f.Type == models.FrameSnapshot:
		logger.Info("SNAPSHOT", zap.String("run_id", f.RunID), zap.Int("count", f.Count))
	case f.Event != nil:
		logger.Info(f.Type,
			zap.String("id", f.Event.ID),
			zap.String("origin", f.Origin),
			zap.String("type", string(f.Event.AttackType)),
			zap.String("threat", string(f.Event.ThreatLevel)),
			zap.String("color", f.Event.Color),
			zap.String("source", f.Event.Source.Name),
			zap.String("target", f.Event.Target.Name),
			zap.Strings("evicted", f.Evicted))
	default:
		logger.Info(f.Type, zap.String("run_id", f.RunID))
	}
}
