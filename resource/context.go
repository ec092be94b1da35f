package resource

import "context"

type ctxKey struct{}

// WithController returns a context carrying the controller. Dispatchers
// attach it so storage backends can charge their reads against the
// collection's IO budget without threading the controller through every
// call signature.
func WithController(ctx context.Context, c *Controller) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the controller carried by ctx, or nil. All
// Controller methods accept a nil receiver, so callers use the result
// unconditionally.
func FromContext(ctx context.Context) *Controller {
	c, _ := ctx.Value(ctxKey{}).(*Controller)
	return c
}
