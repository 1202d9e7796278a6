// Package blob abstracts the parts of Google Cloud Storage used by the widget
// consumer: listing and popping queue objects, and writing widget documents.
// Production code wraps *storage.Client with NewGCSClientAdapter; tests use the
// in-memory implementation in package blobtest.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

var (
	// ErrBucketNotExist is returned when the addressed bucket does not exist.
	ErrBucketNotExist = errors.New("blob: bucket does not exist")
	// ErrObjectNotExist is returned when the addressed object does not exist.
	ErrObjectNotExist = errors.New("blob: object does not exist")
)

// --- GCS Client Abstraction Interfaces ---

// Client abstracts the top-level *storage.Client.
type Client interface {
	Bucket(name string) BucketHandle
}

// BucketHandle abstracts a *storage.BucketHandle.
type BucketHandle interface {
	Object(name string) ObjectHandle
	// ListKeys returns up to max object names under prefix, in the store's
	// listing order.
	ListKeys(ctx context.Context, prefix string, max int) ([]string, error)
}

// ObjectHandle abstracts a *storage.ObjectHandle.
type ObjectHandle interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context, contentType string) Writer
	Delete(ctx context.Context) error
}

// Writer abstracts a *storage.Writer. The object is committed by Close.
type Writer interface {
	io.WriteCloser
}

// --- Adapters to wrap the concrete Google Cloud Storage client ---

type gcsClientAdapter struct {
	client *storage.Client
}

// NewGCSClientAdapter creates an adapter that makes the concrete *storage.Client
// conform to the Client interface.
func NewGCSClientAdapter(client *storage.Client) Client {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) BucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name), name: name}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
	name   string
}

func (a *gcsBucketHandleAdapter) Object(name string) ObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

// ListKeys asks the service for a single page of at most max names.
func (a *gcsBucketHandleAdapter) ListKeys(ctx context.Context, prefix string, max int) ([]string, error) {
	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, fmt.Errorf("failed to build listing query for bucket %s: %w", a.name, err)
	}
	it := a.handle.Objects(ctx, query)
	if max > 0 {
		it.PageInfo().MaxSize = max
	}

	var keys []string
	for max <= 0 || len(keys) < max {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", a.name, translate(err))
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (io.ReadCloser, error) {
	r, err := a.handle.NewReader(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

// NewWriter returns the underlying *storage.Writer, which already satisfies Writer.
func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context, contentType string) Writer {
	w := a.handle.NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (a *gcsObjectHandleAdapter) Delete(ctx context.Context) error {
	return translate(a.handle.Delete(ctx))
}

// translate maps storage sentinel errors onto this package's sentinels while
// keeping the underlying error in the chain.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrBucketNotExist):
		return fmt.Errorf("%w: %w", ErrBucketNotExist, err)
	case errors.Is(err, storage.ErrObjectNotExist):
		return fmt.Errorf("%w: %w", ErrObjectNotExist, err)
	}
	return err
}
