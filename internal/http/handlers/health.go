package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// LivezOutput represents the liveness probe response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez is the Kubernetes liveness probe. It answers as long as the
// process is serving requests.
func Livez(ctx context.Context, input *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping() error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func() error

// Ping calls the wrapped function.
func (f PingerFunc) Ping() error { return f() }

// ReadyzHandler handles the readiness probe.
type ReadyzHandler struct {
	db    Pinger
	mongo Pinger
}

// NewReadyzHandler creates a readiness probe handler. Nil pingers are
// skipped, which keeps tests and partial deployments simple.
func NewReadyzHandler(db, mongo Pinger) *ReadyzHandler {
	return &ReadyzHandler{db: db, mongo: mongo}
}

// ReadyzOutput represents the readiness probe response.
type ReadyzOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Readyz is the Kubernetes readiness probe. Both stores must answer a
// ping before the pod takes traffic.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ReadyzOutput, error) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			return nil, huma.Error503ServiceUnavailable("database not ready")
		}
	}
	if h.mongo != nil {
		if err := h.mongo.Ping(); err != nil {
			return nil, huma.Error503ServiceUnavailable("content store not ready")
		}
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ok"
	return out, nil
}
