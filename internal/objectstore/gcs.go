package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores objects in one Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS connects to bucket. A non-empty emulatorHost (fake-gcs-server) is
// exported as STORAGE_EMULATOR_HOST and authentication is disabled; otherwise
// application default credentials are used.
func NewGCS(ctx context.Context, bucket, emulatorHost string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("objectstore gcs: empty bucket")
	}

	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(emulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Container() string { return g.bucket }

// Close releases the underlying client.
func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) object(p string) (*storage.ObjectHandle, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	return g.client.Bucket(g.bucket).Object(clean), nil
}

func (g *GCS) Get(ctx context.Context, objectPath string) ([]byte, error) {
	o, err := g.object(objectPath)
	if err != nil {
		return nil, err
	}
	r, err := o.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", g.bucket, objectPath, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", g.bucket, objectPath, err)
	}
	return b, nil
}

func (g *GCS) Put(ctx context.Context, objectPath string, data []byte, contentType string, metadata map[string]string) error {
	o, err := g.object(objectPath)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = ContentType(objectPath)
	}
	w := o.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (g *GCS) Stat(ctx context.Context, objectPath string) (*Info, error) {
	o, err := g.object(objectPath)
	if err != nil {
		return nil, err
	}
	attrs, err := o.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	if err != nil {
		return nil, err
	}
	return infoFromAttrs(attrs), nil
}

func infoFromAttrs(a *storage.ObjectAttrs) *Info {
	return &Info{
		Path:         a.Name,
		Size:         a.Size,
		LastModified: a.Updated.UTC(),
		ETag:         strings.Trim(a.Etag, `"`),
		ContentType:  a.ContentType,
		Metadata:     a.Metadata,
	}
}

func (g *GCS) Remove(ctx context.Context, objectPath string) error {
	o, err := g.object(objectPath)
	if err != nil {
		return err
	}
	if err := o.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", objectPath, g.bucket, err)
	}
	return nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]Info, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: strings.TrimPrefix(prefix, "/")})
	var out []Info
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if attrs.Prefix != "" {
			continue
		}
		out = append(out, *infoFromAttrs(attrs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

var _ Store = (*GCS)(nil)
