package shared

import "context"

// VendorContext carries the verified vendor identity for a request.
// It is resolved once by the auth middleware and passed explicitly;
// nothing below the HTTP layer reads headers or other ambient state.
type VendorContext struct {
	VendorID string
	UserID   string
	APIKeyID string
}

type vendorContextKey struct{}

// ContextWithVendor stores the vendor identity in context.
func ContextWithVendor(ctx context.Context, vc VendorContext) context.Context {
	return context.WithValue(ctx, vendorContextKey{}, vc)
}

// VendorFromContext extracts the vendor identity from context.
func VendorFromContext(ctx context.Context) (VendorContext, bool) {
	vc, ok := ctx.Value(vendorContextKey{}).(VendorContext)
	return vc, ok
}
