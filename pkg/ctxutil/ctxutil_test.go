package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Equal(t, "req-1", GetRequestID(WithRequestID(context.Background(), "req-1")))
	assert.Empty(t, GetRequestID(context.WithValue(context.Background(), RequestIDKey, 42)))
}
