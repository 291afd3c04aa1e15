// Package healthprobe exposes liveness and readiness state for the
// control plane.
package healthprobe

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Probe tracks process liveness and readiness. Liveness holds for as
// long as the process answers requests; readiness flips as the agent
// starts up and shuts down.
type Probe struct {
	startTime time.Time
	ready     atomic.Bool
	reason    atomic.Value // string, why the probe is not ready
}

// New creates a probe that reports not ready until MarkReady is called.
func New() *Probe {
	p := &Probe{
		startTime: time.Now(),
	}
	p.reason.Store("starting")

	return p
}

// MarkReady reports the application as ready to serve traffic.
func (p *Probe) MarkReady() {
	p.ready.Store(true)
}

// MarkNotReady withdraws readiness with a reason surfaced on /ready.
func (p *Probe) MarkNotReady(reason string) {
	p.reason.Store(reason)
	p.ready.Store(false)
}

// Response is the body written by both probe handlers.
type Response struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Reason string `json:"reason,omitempty"`
}

// Liveness returns a handler that reports 200 whenever the process can
// respond at all.
func (p *Probe) Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, Response{
			Status: "healthy",
			Uptime: time.Since(p.startTime).String(),
		})
	}
}

// Readiness returns a handler reporting 200 when ready and 503 with the
// recorded reason otherwise.
func (p *Probe) Readiness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.ready.Load() {
			reason, _ := p.reason.Load().(string)
			writeResponse(w, http.StatusServiceUnavailable, Response{
				Status: "not_ready",
				Uptime: time.Since(p.startTime).String(),
				Reason: reason,
			})
			return
		}

		writeResponse(w, http.StatusOK, Response{
			Status: "ready",
			Uptime: time.Since(p.startTime).String(),
		})
	}
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
