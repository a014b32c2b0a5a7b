package fetcher

import "context"

// ByteSource returns the full contents addressed by ref: a URL for network
// sources, a path for bundled assets. Implementations must honour ctx.
type ByteSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// SourceFunc adapts a function to ByteSource.
type SourceFunc func(ctx context.Context, ref string) ([]byte, error)

// Fetch implements ByteSource.
func (f SourceFunc) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}
