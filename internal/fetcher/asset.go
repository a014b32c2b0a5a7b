package fetcher

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
)

// AssetSource reads bundled catalog documents from a filesystem root.
type AssetSource struct {
	fs afero.Fs
}

// NewAssetSource serves assets from the OS directory root. An empty root
// serves paths as given.
func NewAssetSource(root string) *AssetSource {
	var fs afero.Fs = afero.NewOsFs()
	if root != "" {
		fs = afero.NewBasePathFs(fs, root)
	}
	return &AssetSource{fs: fs}
}

// NewAssetSourceFs serves assets from fs, e.g. an afero.MemMapFs in tests.
func NewAssetSourceFs(fs afero.Fs) *AssetSource {
	return &AssetSource{fs: fs}
}

// Fetch reads the whole asset at path.
func (s *AssetSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", path, err)
	}
	return data, nil
}
