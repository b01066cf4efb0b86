package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_ReturnsAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("hello")

	assert.Same(t, logger, FromContext(ctx))
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestFromContext_PanicsWithoutLogger(t *testing.T) {
	assert.PanicsWithValue(t, "ctxlog: logger missing from context", func() {
		FromContext(context.Background())
	})
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		FromContext(Discard(context.Background())).Info("dropped")
	})
}
