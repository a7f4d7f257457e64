package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/queue"
)

type handlerTestPayload struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

func TestNewJobHandler(t *testing.T) {
	t.Parallel()

	t.Run("derives name from payload type", func(t *testing.T) {
		t.Parallel()

		h := queue.NewJobHandler("", func(ctx context.Context, p handlerTestPayload) (int, error) {
			return 0, nil
		})
		assert.Equal(t, "queue_test.handlerTestPayload", h.Name())

		h = queue.NewJobHandler("", func(ctx context.Context, p *handlerTestPayload) (int, error) {
			return 0, nil
		})
		assert.Equal(t, "queue_test.handlerTestPayload", h.Name())
	})

	t.Run("explicit name", func(t *testing.T) {
		t.Parallel()

		h := queue.NewJobHandler("sendNotification", func(ctx context.Context, p handlerTestPayload) (int, error) {
			return 0, nil
		})
		assert.Equal(t, "sendNotification", h.Name())
	})

	t.Run("decodes payload and returns result", func(t *testing.T) {
		t.Parallel()

		h := queue.NewJobHandler("double", func(ctx context.Context, p handlerTestPayload) (int, error) {
			return p.Value * 2, nil
		})
		raw, err := json.Marshal(handlerTestPayload{Message: "x", Value: 21})
		require.NoError(t, err)

		res, err := h.Handle(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, 42, res)
	})

	t.Run("propagates handler error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("processing failed")
		h := queue.NewJobHandler("fail", func(ctx context.Context, p handlerTestPayload) (any, error) {
			return nil, boom
		})
		_, err := h.Handle(context.Background(), json.RawMessage(`{}`))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("invalid payload", func(t *testing.T) {
		t.Parallel()

		h := queue.NewJobHandler("bad", func(ctx context.Context, p handlerTestPayload) (any, error) {
			return nil, nil
		})
		_, err := h.Handle(context.Background(), json.RawMessage(`{"value":"nope"}`))
		assert.Error(t, err)
	})
}
