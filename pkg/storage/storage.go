// Package storage reads model artifacts from the local filesystem or S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/richxcame/threatwatch/pkg/config"
)

// Provider represents a storage provider type
type Provider string

const (
	ProviderS3    Provider = "s3"
	ProviderLocal Provider = "local"
)

// Location is a parsed artifact location
type Location struct {
	Provider Provider
	Bucket   string
	Key      string
}

// ParseLocation splits s3://bucket/key URIs. Anything else is a local path.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Location{Provider: ProviderLocal, Key: raw}, nil
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid s3 location %q, want s3://bucket/key", raw)
	}
	return Location{Provider: ProviderS3, Bucket: bucket, Key: key}, nil
}

// Reader downloads objects from one bucket
type Reader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Opener opens artifacts by location, creating one S3 reader per bucket on
// first use
type Opener struct {
	cfg config.ObjectStorageConfig

	mu      sync.Mutex
	buckets map[string]Reader
	newS3   func(ctx context.Context, cfg S3Config) (Reader, error)
}

// NewOpener creates an opener using cfg for S3 locations
func NewOpener(cfg config.ObjectStorageConfig) *Opener {
	return &Opener{
		cfg:     cfg,
		buckets: make(map[string]Reader),
		newS3: func(ctx context.Context, cfg S3Config) (Reader, error) {
			s, err := NewS3Storage(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

// Open returns a reader for the artifact at location. The caller closes it.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	if loc.Provider == ProviderLocal {
		f, err := os.Open(loc.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", loc.Key, err)
		}
		return f, nil
	}

	reader, err := o.bucket(ctx, loc.Bucket)
	if err != nil {
		return nil, err
	}
	return reader.Download(ctx, loc.Key)
}

func (o *Opener) bucket(ctx context.Context, name string) (Reader, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r, ok := o.buckets[name]; ok {
		return r, nil
	}
	r, err := o.newS3(ctx, S3Config{
		Bucket:    name,
		Region:    o.cfg.Region,
		Endpoint:  o.cfg.Endpoint,
		AccessKey: o.cfg.AccessKey,
		SecretKey: o.cfg.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	o.buckets[name] = r
	return r, nil
}
