package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/statuscast/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()

	attr := logger.Group("job", slog.String("id", "1"), slog.Int("attempt", 2))
	require.Equal(t, "job", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "attempt", g[1].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	assert.Equal(t, "error", logger.Error(err).Key)
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attr slog.Attr
		key  string
		val  any
	}{
		{logger.Topic("a-1"), "topic", "a-1"},
		{logger.ConnID("c-1"), "conn_id", "c-1"},
		{logger.JobName("sendNotification"), "job_name", "sendNotification"},
		{logger.Attempt(2), "attempt", int64(2)},
		{logger.Channel("email"), "channel", "email"},
		{logger.Recipient("u-1"), "recipient", "u-1"},
		{logger.LimitType("cv_upload"), "limit_type", "cv_upload"},
		{logger.Status("completed"), "status", "completed"},
		{logger.Component("hub"), "component", "hub"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.key, tt.attr.Key)
		assert.Equal(t, tt.val, tt.attr.Value.Any())
	}

	assert.True(t, logger.JobID(nil).Equal(slog.Attr{}))
	assert.Equal(t, "job_id", logger.JobID("j-1").Key)
}
