// classifier-stub - stand-in anomaly classifier for local runs.
//
// Answers POST /analyze with {"status": "ANOMALY"|"NORMAL", "score": s}.
// The score grows with the mean magnitude of the features, so the
// simulator's suspicious vector is reported as an anomaly.
//
// Usage:
//
//	classifier-stub --listen=:8000 --threshold=0.9 --rate=0.5
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/hervehildenbrand/attack-radar/pkg/anomaly"
	"github.com/julienschmidt/httprouter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	statusNormal    = "NORMAL"
	maxRequestBytes = 1 << 20
)

type options struct {
	listen    string
	threshold float64
	scale     float64
	rate      float64
	debug     bool
}

// scorer maps a feature vector to a score in [0, 1).
type scorer struct {
	threshold float64
	scale     float64
	rate      float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (s *scorer) score(features []float64) float64 {
	if len(features) == 0 {
		return 0
	}
	var sum float64
	for _, f := range features {
		sum += math.Abs(f)
	}
	mean := sum / float64(len(features))
	return mean / (mean + s.scale)
}

func (s *scorer) classify(features []float64) anomaly.Response {
	score := math.Round(s.score(features)*1000) / 1000
	status := statusNormal
	if score >= s.threshold && s.roll() {
		status = anomaly.StatusAnomaly
	}
	return anomaly.Response{Status: status, Score: score}
}

func (s *scorer) roll() bool {
	if s.rate >= 1 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.rate
}

type handler struct {
	scorer *scorer
	logger *zap.Logger
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req anomaly.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid feature vector"})
		return
	}

	resp := h.scorer.classify(req.Features)
	h.logger.Debug("Classified",
		zap.Int("features", len(req.Features)),
		zap.String("status", resp.Status),
		zap.Float64("score", resp.Score))
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func newRouter(s *scorer, logger *zap.Logger) *httprouter.Router {
	h := &handler{scorer: s, logger: logger}
	router := httprouter.New()
	router.POST("/analyze", h.analyze)
	return router
}

func main() {
	opts := options{}
	rootCmd := &cobra.Command{
		Use:          "classifier-stub",
		Short:        "Stand-in anomaly classifier answering POST /analyze",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}
	flags := rootCmd.Flags()
	flags.StringVar(&opts.listen, "listen", ":8000", "HTTP listen address")
	flags.Float64Var(&opts.threshold, "threshold", 0.9, "Score at or above which a vector is anomalous")
	flags.Float64Var(&opts.scale, "scale", 5000, "Mean feature magnitude that scores 0.5")
	flags.Float64Var(&opts.rate, "rate", 1, "Probability that an anomalous vector is reported as such")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(opts options) error {
	if opts.scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", opts.scale)
	}

	logConfig := zap.NewProductionConfig()
	if opts.debug {
		logConfig = zap.NewDevelopmentConfig()
	}
	logger, err := logConfig.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	s := &scorer{
		threshold: opts.threshold,
		scale:     opts.scale,
		rate:      opts.rate,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           newRouter(s, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Classifier stub listening",
			zap.String("addr", opts.listen),
			zap.Float64("threshold", opts.threshold),
			zap.Float64("rate", opts.rate))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
