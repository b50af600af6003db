package logtrace

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestRequestId(t *testing.T) {
	assert.Equal(t, "", RequestIdFromContext(context.Background()))
	ctx := WithRequestId(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIdFromContext(ctx))
}

func TestIsTraceEnabled(t *testing.T) {
	InitLogger("info", false)
	assert.False(t, IsTraceEnabled())
	InitLogger("trace", false)
	assert.True(t, IsTraceEnabled())
	InitLogger("info", false)
}
