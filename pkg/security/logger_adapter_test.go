package security

import (
	"errors"
	"testing"

	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerAdapter_ConvertsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core)).Named("paypal")

	logger.Error("processor call failed",
		ports.String("operation", "create_payment"),
		ports.Int("status", 502),
		ports.Err(errors.New("bad gateway")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "paypal", entry.LoggerName)

	ctx := entry.ContextMap()
	assert.Equal(t, "create_payment", ctx["operation"])
	assert.EqualValues(t, 502, ctx["status"])
	assert.Equal(t, "bad gateway", ctx["error"])
}
