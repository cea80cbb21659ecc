package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFrom(t *testing.T) {
	assert.Same(t, zap.L(), LoggerFrom(context.Background()))

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core).With(zap.String("request_id", "req-1"))
	ctx := ContextWithLogger(context.Background(), log)

	LoggerFrom(ctx).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	}
}
