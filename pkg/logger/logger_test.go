package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Format: FormatJSON, Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithOrderID(ctx, "order-9")

	log.Error(ctx, "boom", errors.New("boom"))

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"order_id":"order-9"`)
	assert.Contains(t, buf.String(), `"stack"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("warn"), Output: buf})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestLoggerStampsStaticFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{
		ServiceName: "cron-worker",
		Format:      FormatJSON,
		Output:      buf,
		Fields:      map[string]any{"env": "staging", "instance": "worker-2"},
	})
	log.Info(log.WithDeliveryDate(context.Background(), "2026-10-20"), "seeded")

	line := buf.String()
	assert.Contains(t, line, `"service":"cron-worker"`)
	assert.Contains(t, line, `"env":"staging"`)
	assert.Contains(t, line, `"instance":"worker-2"`)
	assert.Contains(t, line, `"delivery_date":"2026-10-20"`)
}

func TestLoggerConsoleFormatFromEnv(t *testing.T) {
	t.Setenv("CAKESTORE_LOG_FORMAT", "console")
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf})
	log.Info(context.Background(), "hello")

	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestContextFieldsDoNotLeakBetweenScopes(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Format: FormatJSON, Output: buf})

	base := log.WithRequestID(context.Background(), "req-1")
	_ = log.WithOrderID(base, "order-1")
	log.Info(base, "only request id")

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.NotContains(t, buf.String(), "order-1")
}
