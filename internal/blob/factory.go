package blob

import (
	"context"
	"fmt"

	"afyafamilia/internal/infra/blob/fs"
	memorystore "afyafamilia/internal/infra/blob/memory"
	infraS3 "afyafamilia/internal/infra/blob/s3"
)

// S3Config locates an S3 bucket.
type S3Config = infraS3.Config

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the configured backend. An empty driver selects the
// filesystem.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewFilesystem returns a store rooted at root, creating the directory.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns an in-process store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a store over the configured bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}
