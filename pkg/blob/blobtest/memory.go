// Package blobtest provides an in-memory blob.Client for tests.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/illmade-knight/go-widgetflow/pkg/blob"
)

// Object is a stored object as seen by the fake.
type Object struct {
	Body        []byte
	ContentType string
}

// Client is an in-memory blob.Client. Buckets must be created with
// CreateBucket; addressing any other bucket yields blob.ErrBucketNotExist.
type Client struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewClient returns a client with the named buckets already created.
func NewClient(buckets ...string) *Client {
	c := &Client{buckets: make(map[string]*Bucket)}
	for _, name := range buckets {
		c.CreateBucket(name)
	}
	return c
}

// CreateBucket creates (or returns) the named bucket.
func (c *Client) CreateBucket(name string) *Bucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[name]
	if !ok {
		b = &Bucket{name: name, objects: make(map[string]Object)}
		c.buckets[name] = b
	}
	return b
}

// Bucket satisfies blob.Client.
func (c *Client) Bucket(name string) blob.BucketHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buckets[name]; ok {
		return b
	}
	return missingBucket{}
}

// Bucket is an in-memory bucket with optional failure injection.
type Bucket struct {
	name string

	mu      sync.Mutex
	objects map[string]Object

	// ListErr, ReadErr, DeleteErr and WriteErr, when set, are returned by the
	// corresponding operation. Use Fail to change them while the bucket is in use.
	ListErr   error
	ReadErr   error
	DeleteErr error
	WriteErr  error

	// ListCalls counts ListKeys invocations.
	ListCalls int
}

// Fail sets the injected failures under the bucket lock. Nil clears one.
func (b *Bucket) Fail(list, read, del, write error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ListErr, b.ReadErr, b.DeleteErr, b.WriteErr = list, read, del, write
}

// Put stores an object directly.
func (b *Bucket) Put(key string, body []byte, contentType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = Object{Body: append([]byte(nil), body...), ContentType: contentType}
}

// Get returns the stored object.
func (b *Bucket) Get(key string) (Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.objects[key]
	return o, ok
}

// Keys returns every stored key in sorted order.
func (b *Bucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// injected returns the failure stored in *field, read under the bucket lock.
func (b *Bucket) injected(field *error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *field
}

// Object satisfies blob.BucketHandle.
func (b *Bucket) Object(name string) blob.ObjectHandle {
	return &objectHandle{bucket: b, key: name}
}

// ListKeys satisfies blob.BucketHandle. Keys are listed in sorted order like GCS.
func (b *Bucket) ListKeys(_ context.Context, prefix string, max int) ([]string, error) {
	b.mu.Lock()
	b.ListCalls++
	b.mu.Unlock()
	if listErr := b.injected(&b.ListErr); listErr != nil {
		return nil, listErr
	}
	var keys []string
	for _, k := range b.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if max > 0 && len(keys) >= max {
			break
		}
		keys = append(keys, k)
	}
	return keys, nil
}

type objectHandle struct {
	bucket *Bucket
	key    string
}

func (o *objectHandle) NewReader(_ context.Context) (io.ReadCloser, error) {
	if err := o.bucket.injected(&o.bucket.ReadErr); err != nil {
		return nil, err
	}
	obj, ok := o.bucket.Get(o.key)
	if !ok {
		return nil, blob.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(obj.Body)), nil
}

func (o *objectHandle) NewWriter(_ context.Context, contentType string) blob.Writer {
	return &writer{handle: o, contentType: contentType}
}

func (o *objectHandle) Delete(_ context.Context) error {
	if err := o.bucket.injected(&o.bucket.DeleteErr); err != nil {
		return err
	}
	o.bucket.mu.Lock()
	defer o.bucket.mu.Unlock()
	if _, ok := o.bucket.objects[o.key]; !ok {
		return blob.ErrObjectNotExist
	}
	delete(o.bucket.objects, o.key)
	return nil
}

// writer buffers writes and commits the object on Close, as GCS does.
type writer struct {
	handle      *objectHandle
	contentType string
	buf         bytes.Buffer
	closed      bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write on closed writer")
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.closed {
		return errors.New("already closed")
	}
	w.closed = true
	if err := w.handle.bucket.injected(&w.handle.bucket.WriteErr); err != nil {
		return err
	}
	w.handle.bucket.Put(w.handle.key, w.buf.Bytes(), w.contentType)
	return nil
}

type missingBucket struct{}

func (missingBucket) Object(string) blob.ObjectHandle { return missingObject{} }

func (missingBucket) ListKeys(context.Context, string, int) ([]string, error) {
	return nil, blob.ErrBucketNotExist
}

type missingObject struct{}

func (missingObject) NewReader(context.Context) (io.ReadCloser, error) {
	return nil, blob.ErrBucketNotExist
}

func (missingObject) NewWriter(context.Context, string) blob.Writer { return failingWriter{} }

func (missingObject) Delete(context.Context) error { return blob.ErrBucketNotExist }

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return len(p), nil }
func (failingWriter) Close() error                { return blob.ErrBucketNotExist }
