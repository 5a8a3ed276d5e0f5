package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const MerchantHeader = "x-merchant-id"

type merchantKey struct{}

// WithMerchantID scopes ctx to one merchant's category tree.
func WithMerchantID(ctx context.Context, merchantID string) context.Context {
	return context.WithValue(ctx, merchantKey{}, merchantID)
}

// GetMerchantID returns the merchant set by ContextInterceptor, falling back
// to the incoming metadata. It returns "" when neither carries one.
func GetMerchantID(ctx context.Context) string {
	if val, ok := ctx.Value(merchantKey{}).(string); ok {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get(MerchantHeader); len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
	}
	return ""
}

// ContextInterceptor copies the merchant header into the request context.
// Requests without one pass through; handlers that need a merchant reject them.
func ContextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if merchantID := GetMerchantID(ctx); merchantID != "" {
			ctx = WithMerchantID(ctx, merchantID)
		}
		return handler(ctx, req)
	}
}
