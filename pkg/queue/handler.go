package queue

import (
	"context"
	"encoding/json"
)

type (
	// Handler executes jobs of one name. The returned value is stored as
	// the job result; an error makes the attempt fail.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) (any, error)
	}

	JobHandlerFunc[T, R any] func(ctx context.Context, payload T) (R, error)
)

// NewJobHandler creates a handler for payloads of type T. With an empty
// name the job name is derived from T.
func NewJobHandler[T, R any](name string, handler JobHandlerFunc[T, R]) Handler {
	if name == "" {
		var payload T
		name = qualifiedStructName(payload)
	}
	return &jobHandler[T, R]{
		name:    name,
		handler: handler,
	}
}

type jobHandler[T, R any] struct {
	name    string
	handler JobHandlerFunc[T, R]
}

func (h *jobHandler[T, R]) Name() string {
	return h.name
}

func (h *jobHandler[T, R]) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, err
	}
	return h.handler(ctx, t)
}
