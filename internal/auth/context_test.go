package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestGetMerchantID(t *testing.T) {
	assert.Equal(t, "", GetMerchantID(context.Background()))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MerchantHeader, " m1 "))
	assert.Equal(t, "m1", GetMerchantID(ctx))

	assert.Equal(t, "m2", GetMerchantID(WithMerchantID(ctx, "m2")))
}

func TestContextInterceptor(t *testing.T) {
	interceptor := ContextInterceptor()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MerchantHeader, "m1"))

	var seen string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
		seen, _ = ctx.Value(merchantKey{}).(string)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", seen)
}
