// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports transfer and connection counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Adembc/lazyscp/internal/core/domain"
	"github.com/Adembc/lazyscp/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder implements ports.TransferMetrics on a Prometheus registry.
type Recorder struct {
	tasksStarted    *prometheus.CounterVec
	tasksFinished   *prometheus.CounterVec
	tasksActive     prometheus.Gauge
	transportWins   *prometheus.CounterVec
	connections     *prometheus.CounterVec
	connectFailures *prometheus.CounterVec
}

var _ ports.TransferMetrics = (*Recorder)(nil)

// NewRecorder registers the lazyscp collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		tasksStarted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lazyscp_transfer_tasks_started_total",
				Help: "Transfer attempts started, retries included",
			},
			[]string{"direction"},
		),
		tasksFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lazyscp_transfer_tasks_finished_total",
				Help: "Transfer attempts finished by outcome",
			},
			[]string{"direction", "status"},
		),
		tasksActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "lazyscp_transfer_tasks_active",
				Help: "Transfer attempts currently running",
			},
		),
		transportWins: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lazyscp_transport_wins_total",
				Help: "File copies completed per transport",
			},
			[]string{"transport"},
		),
		connections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lazyscp_connections_total",
				Help: "Connections established per auth mode",
			},
			[]string{"mode"},
		),
		connectFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lazyscp_connection_failures_total",
				Help: "Connection attempts that failed, by failure kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Recorder) TaskStarted(dir domain.Direction) {
	r.tasksStarted.WithLabelValues(dir.String()).Inc()
	r.tasksActive.Inc()
}

func (r *Recorder) TaskFinished(dir domain.Direction, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	r.tasksFinished.WithLabelValues(dir.String(), status).Inc()
	r.tasksActive.Dec()
}

func (r *Recorder) TransportWon(transport string) {
	r.transportWins.WithLabelValues(transport).Inc()
}

func (r *Recorder) ConnectionEstablished(mode domain.AuthMode) {
	r.connections.WithLabelValues(mode.String()).Inc()
}

func (r *Recorder) ConnectionFailed(kind string) {
	r.connectFailures.WithLabelValues(kind).Inc()
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve runs a /metrics endpoint on addr until ctx is done.
func Serve(ctx context.Context, logger *zap.SugaredLogger, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("metrics server shutdown", "error", err)
		}
	}()

	logger.Infow("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) TaskStarted(domain.Direction)          {}
func (Nop) TaskFinished(domain.Direction, error)  {}
func (Nop) TransportWon(string)                   {}
func (Nop) ConnectionEstablished(domain.AuthMode) {}
func (Nop) ConnectionFailed(string)               {}
