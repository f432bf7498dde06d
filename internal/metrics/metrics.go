package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProbesTotal counts availability probes by resulting status.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptpad_probes_total",
		Help: "Availability probes by resulting status.",
	}, []string{"status"})

	// SessionsTotal counts session creation attempts by outcome.
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptpad_sessions_total",
		Help: "Session creation attempts by outcome.",
	}, []string{"outcome"})

	// ExchangesTotal counts prompt exchanges by outcome.
	ExchangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptpad_exchanges_total",
		Help: "Prompt exchanges by outcome.",
	}, []string{"outcome"})

	// ExchangeDuration tracks host exchange latency.
	ExchangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "promptpad_exchange_duration_seconds",
		Help:    "Time spent waiting on the host model per exchange.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	// PromptChars tracks the distribution of prompt lengths.
	PromptChars = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "promptpad_prompt_chars",
		Help:    "Number of characters per prompt.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
