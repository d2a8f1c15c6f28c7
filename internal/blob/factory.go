package blob

import (
	"context"
	"fmt"

	"cardioingest/internal/infra/blob/fs"
	memorystore "cardioingest/internal/infra/blob/memory"
	infraS3 "cardioingest/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// Settings selects and configures a blob backend.
type Settings struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the Store selected by settings. An empty driver means s3, the
// production raw sample bucket.
func Open(ctx context.Context, settings Settings) (Store, error) {
	driver := settings.Driver
	if driver == "" {
		driver = DriverS3
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(settings.FSRoot)
	case DriverS3:
		return NewS3(ctx, settings.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }
