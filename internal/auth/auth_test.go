package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	assert.True(t, Authorize(IdentityService, OpWriteProduct))
	assert.True(t, Authorize(IdentityService, OpWritePriceHistory))
	assert.True(t, Authorize(IdentityService, OpDeleteProduct))

	assert.False(t, Authorize(IdentityPublic, OpWriteProduct))
	assert.False(t, Authorize(IdentityPublic, OpWritePriceHistory))
	assert.False(t, Authorize(IdentityPublic, OpDeleteProduct))
	assert.False(t, Authorize(IdentityPublic, OpWriteScrapeFailure))

	// Reads are open to everyone.
	assert.True(t, Authorize(IdentityPublic, OpReadProduct))
	assert.True(t, Authorize(IdentityService, OpReadProduct))
}

func TestCheckDefaultsToPublic(t *testing.T) {
	// A context without an attached identity must not be allowed to mutate.
	err := Check(context.Background(), OpWriteProduct)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = Check(context.Background(), OpReadProduct)
	assert.NoError(t, err)
}

func TestCheckWithServiceIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), IdentityService)
	assert.NoError(t, Check(ctx, OpWriteProduct))
	assert.NoError(t, Check(ctx, OpWritePriceHistory))
}

func TestIdentityFrom(t *testing.T) {
	assert.Equal(t, IdentityPublic, IdentityFrom(context.Background()))

	ctx := WithIdentity(context.Background(), IdentityService)
	assert.Equal(t, IdentityService, IdentityFrom(ctx))
}
