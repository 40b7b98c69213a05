package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "u1")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "u1", UserID(ctx))

	assert.Empty(t, RequestID(context.Background()))
	assert.Empty(t, UserID(context.Background()))

	assert.Equal(t, "u2", UserID(WithUserID(nil, "u2")))
	assert.Empty(t, RequestID(nil))
}
