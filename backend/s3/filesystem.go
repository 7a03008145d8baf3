package s3

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/config"
	"github.com/objfs/s3fs/lib/bucket"
)

// FileSystem binds a bucket, an endpoint and a principal to a client.
// Exactly one instance exists per identity key within a provider's
// lifetime, until closed.
type FileSystem struct {
	provider   *Provider
	cfg        *config.Configuration
	scheme     string
	endpoint   string
	bucketName string
	identity   string
	accessKey  string
	secretKey  string
	hasCreds   bool

	clientMu sync.Mutex
	client   Client

	mu      sync.Mutex
	closed  bool
	closers map[io.Closer]struct{}

	cache *bucket.Cache
}

// check the interfaces are satisfied
var (
	_ fs.Info   = (*FileSystem)(nil)
	_ fs.Lister = (*FileSystem)(nil)
)

// Scheme returns the URI scheme the filesystem was created with
func (f *FileSystem) Scheme() string {
	return f.scheme
}

// Endpoint returns "host" or "host:port", or "" for the canonical scheme
func (f *FileSystem) Endpoint() string {
	return f.endpoint
}

// Bucket returns the bucket the filesystem is bound to
func (f *FileSystem) Bucket() string {
	return f.bucketName
}

// Identity returns the identity key the provider interned this
// filesystem under
func (f *FileSystem) Identity() string {
	return f.identity
}

// Credentials returns the principal bound to the filesystem, if any
func (f *FileSystem) Credentials() (string, string, bool) {
	return f.accessKey, f.secretKey, f.hasCreds
}

// Configuration returns the configuration the filesystem was built
// with. It is effectively immutable once bound.
func (f *FileSystem) Configuration() *config.Configuration {
	return f.cfg
}

// String converts this FileSystem to a string
func (f *FileSystem) String() string {
	if f.endpoint == "" {
		return fmt.Sprintf("S3 bucket %s", f.bucketName)
	}
	return fmt.Sprintf("S3 bucket %s at %s", f.bucketName, f.endpoint)
}

// Path joins the given segments into a Path on this filesystem
func (f *FileSystem) Path(first string, more ...string) *fs.Path {
	return fs.NewPath(f, first, more...)
}

// RootDirectories returns the single root of the bound bucket
func (f *FileSystem) RootDirectories() []*fs.Path {
	return []*fs.Path{fs.RootPath(f)}
}

// Root returns the root path of the bound bucket
func (f *FileSystem) Root() *fs.Path {
	return fs.RootPath(f)
}

// IsOpen reports whether the filesystem has not been closed
func (f *FileSystem) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// checkOpen fails with fs.ErrorFsClosed after Close
func (f *FileSystem) checkOpen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("'%s': %w", f.identity, fs.ErrorFsClosed)
	}
	return nil
}

// Client lazily constructs the object client from the configuration
func (f *FileSystem) Client() (Client, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	f.clientMu.Lock()
	defer f.clientMu.Unlock()
	if f.client == nil {
		client, err := f.provider.newClient(f.cfg)
		if err != nil {
			return nil, fmt.Errorf("client for '%s': %w", f.identity, err)
		}
		f.client = client
	}
	return f.client, nil
}

// ListPage lists one page of keys below prefix in the bound bucket.
// This makes FileSystem the Lister that fs/list and fs/walk consume.
func (f *FileSystem) ListPage(ctx context.Context, prefix, delimiter, token string) (*fs.Page, error) {
	client, err := f.Client()
	if err != nil {
		return nil, err
	}
	return client.ListPage(ctx, f.bucketName, prefix, delimiter, token)
}

// register adds a live stream or channel to the close cascade
func (f *FileSystem) register(c io.Closer) {
	f.mu.Lock()
	if f.closers == nil {
		f.closers = make(map[io.Closer]struct{})
	}
	f.closers[c] = struct{}{}
	f.mu.Unlock()
}

// deregister removes a stream or channel which closed itself
func (f *FileSystem) deregister(c io.Closer) {
	f.mu.Lock()
	delete(f.closers, c)
	f.mu.Unlock()
}

// Close invalidates the filesystem: live streams and channels are
// closed, the client is released and the provider forgets the
// identity key. Closing twice is harmless.
func (f *FileSystem) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	live := make([]io.Closer, 0, len(f.closers))
	for c := range f.closers {
		live = append(live, c)
	}
	f.closers = nil
	f.mu.Unlock()

	for _, c := range live {
		if err := c.Close(); err != nil {
			fs.Debugf(f, "closing resource: %v", err)
		}
	}

	f.clientMu.Lock()
	client := f.client
	f.client = nil
	f.clientMu.Unlock()
	var err error
	if client != nil {
		err = client.Close()
	}

	f.provider.detach(f)
	fs.Debugf(f, "closed")
	return err
}
