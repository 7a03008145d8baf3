// Package s3 exposes an S3 compatible object store as a hierarchical,
// path addressable filesystem. A Provider interns one FileSystem per
// identity key and dispatches the path operations: channels, directory
// streams, create, delete, copy, move and stat.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ncw/swift/v2"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/config"
	"github.com/objfs/s3fs/fs/fserrors"
	"github.com/objfs/s3fs/fs/fspath"
	"github.com/objfs/s3fs/fs/list"
	"github.com/objfs/s3fs/lib/bucket"
)

// metaMtime is the object metadata key recording the wall-clock
// modification time as seconds since the epoch
const metaMtime = "mtime"

// Provider owns the registry of live filesystems for the s3 and s3x
// schemes. Tests spawn isolated providers; DefaultProvider serves
// programs that want the usual process-wide one.
type Provider struct {
	mu          sync.Mutex
	filesystems map[string]*FileSystem
	newClient   func(*config.Configuration) (Client, error)
}

// DefaultProvider is the process-wide provider
var DefaultProvider = NewProvider()

// NewProvider makes an empty, isolated provider
func NewProvider() *Provider {
	return &Provider{
		filesystems: make(map[string]*FileSystem),
		newClient:   newAWSClient,
	}
}

// Schemes returns the URI schemes the provider owns
func (p *Provider) Schemes() []string {
	return []string{fs.SchemeS3, fs.SchemeS3X}
}

// bindURI pushes the URI's parts into cfg at setter precedence
func bindURI(cfg *config.Configuration, info *fspath.Info) error {
	if _, err := cfg.WithBucketName(info.Bucket); err != nil {
		return err
	}
	if info.Endpoint != "" {
		if _, err := cfg.WithEndpoint(info.Endpoint); err != nil {
			return err
		}
	}
	if info.HasCredentials() && info.Secret != "" {
		if _, err := cfg.WithCredentials(info.AccessKey, info.Secret); err != nil {
			return err
		}
	}
	return nil
}

// newFileSystem constructs a FileSystem without registering it
func (p *Provider) newFileSystem(info *fspath.Info, cfg *config.Configuration) *FileSystem {
	return &FileSystem{
		provider:   p,
		cfg:        cfg,
		scheme:     info.Scheme,
		endpoint:   info.Endpoint,
		bucketName: info.Bucket,
		identity:   info.Identity(),
		accessKey:  info.AccessKey,
		secretKey:  info.Secret,
		hasCreds:   info.HasCredentials(),
		cache:      bucket.NewCache(),
	}
}

// NewFileSystem creates and registers the filesystem the URI
// addresses. It fails if one already exists for the same identity
// key. When the configuration carries a location constraint the
// bucket is created if it does not exist; otherwise it is assumed to
// exist.
func (p *Provider) NewFileSystem(ctx context.Context, uri string, opts map[string]string) (*FileSystem, error) {
	info, err := fspath.Parse(uri)
	if err != nil {
		return nil, err
	}
	cfg := config.NewFromMap(opts)
	if err := bindURI(cfg, info); err != nil {
		return nil, err
	}
	identity := info.Identity()

	p.mu.Lock()
	if _, ok := p.filesystems[identity]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("filesystem '%s' already exists: %w", identity, fs.ErrorFsAlreadyExists)
	}
	fsys := p.newFileSystem(info, cfg)
	p.filesystems[identity] = fsys
	p.mu.Unlock()

	if constraint := cfg.LocationConstraint(); constraint != "" {
		if err := p.ensureBucket(ctx, fsys, constraint); err != nil {
			_ = fsys.Close()
			return nil, err
		}
	}
	fs.Debugf(fsys, "created")
	return fsys, nil
}

// ensureBucket creates the bucket unless it exists already
func (p *Provider) ensureBucket(ctx context.Context, fsys *FileSystem, constraint string) error {
	client, err := fsys.Client()
	if err != nil {
		return err
	}
	return fsys.cache.Create(fsys.bucketName, func() error {
		fs.Debugf(fsys, "creating bucket with location constraint %q", constraint)
		return client.CreateBucket(ctx, fsys.bucketName, constraint)
	}, func() (bool, error) {
		return client.BucketExists(ctx, fsys.bucketName)
	})
}

// GetFileSystem returns the live filesystem for the URI's identity key
func (p *Provider) GetFileSystem(uri string) (*FileSystem, error) {
	info, err := fspath.Parse(uri)
	if err != nil {
		return nil, err
	}
	identity := info.Identity()
	p.mu.Lock()
	defer p.mu.Unlock()
	fsys, ok := p.filesystems[identity]
	if !ok {
		return nil, fmt.Errorf("no filesystem for '%s': %w", identity, fs.ErrorFsNotFound)
	}
	return fsys, nil
}

// GetPath resolves the URI to a path, creating the filesystem on
// demand when none is registered for its identity key.
func (p *Provider) GetPath(ctx context.Context, uri string) (*fs.Path, error) {
	info, err := fspath.Parse(uri)
	if err != nil {
		return nil, err
	}
	identity := info.Identity()
	p.mu.Lock()
	fsys, ok := p.filesystems[identity]
	if !ok {
		cfg := config.NewFromMap(nil)
		if err := bindURI(cfg, info); err != nil {
			p.mu.Unlock()
			return nil, err
		}
		fsys = p.newFileSystem(info, cfg)
		p.filesystems[identity] = fsys
	}
	p.mu.Unlock()
	return fs.PathFromKey(fsys, info.Key), nil
}

// CloseFileSystem removes the filesystem from the registry and closes it
func (p *Provider) CloseFileSystem(fsys *FileSystem) error {
	return fsys.Close()
}

// detach forgets the filesystem if it is still the registered one
func (p *Provider) detach(fsys *FileSystem) {
	p.mu.Lock()
	if current, ok := p.filesystems[fsys.identity]; ok && current == fsys {
		delete(p.filesystems, fsys.identity)
	}
	p.mu.Unlock()
}

// fsOf extracts the backend filesystem a path belongs to
func fsOf(p *fs.Path) (*FileSystem, error) {
	fsys, ok := p.Info().(*FileSystem)
	if !ok {
		return nil, fmt.Errorf("path '%v' does not belong to an S3 filesystem: %w", p, fs.ErrorInvalidArgument)
	}
	return fsys, nil
}

// DirectoryStream is a managed list.Stream: closing it detaches it
// from its filesystem's close cascade.
type DirectoryStream struct {
	*list.Stream
	fsys *FileSystem
}

// Close closes the stream and deregisters it
func (d *DirectoryStream) Close() error {
	d.fsys.deregister(d)
	return d.Stream.Close()
}

// NewDirectoryStream opens a lazy stream over the children of dir.
// filter may be nil to accept everything. A missing prefix yields an
// empty stream; CheckAccess probes existence.
func (p *Provider) NewDirectoryStream(ctx context.Context, dir *fs.Path, filter list.Filter) (*DirectoryStream, error) {
	fsys, err := fsOf(dir)
	if err != nil {
		return nil, err
	}
	if err := fsys.checkOpen(); err != nil {
		return nil, err
	}
	d := &DirectoryStream{
		Stream: list.New(ctx, fsys, dir, filter),
		fsys:   fsys,
	}
	fsys.register(d)
	return d, nil
}

// NewInputStream opens the object at path for sequential reading
func (p *Provider) NewInputStream(ctx context.Context, path *fs.Path) (io.ReadCloser, error) {
	return p.NewReadChannel(ctx, path)
}

// CreateDirectory writes a zero byte marker object whose key is the
// path's key with a trailing separator. Creating a directory which
// already exists succeeds.
func (p *Provider) CreateDirectory(ctx context.Context, dir *fs.Path) error {
	fsys, err := fsOf(dir)
	if err != nil {
		return err
	}
	key := dirKey(dir)
	if key == "" {
		// the root exists by definition
		return nil
	}
	client, err := fsys.Client()
	if err != nil {
		return err
	}
	if _, err := client.Head(ctx, fsys.bucketName, key); err == nil {
		return nil
	} else if !fserrors.IsNotFound(err) {
		return err
	}
	fs.Debugf(fsys, "creating directory marker %q", key)
	metadata := map[string]string{metaMtime: swift.TimeToFloatString(time.Now())}
	return client.Put(ctx, fsys.bucketName, key, bytes.NewReader(nil), 0, "", metadata)
}

// dirKey is the path's key with the trailing separator a directory
// marker needs
func dirKey(dir *fs.Path) string {
	key := dir.Key()
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return key
}

// Delete removes the object or the empty directory at path. Deleting
// a prefix which still has children fails with fs.ErrorDirNotEmpty;
// deleting a missing object fails with fs.ErrorObjectNotFound.
func (p *Provider) Delete(ctx context.Context, path *fs.Path) error {
	fsys, err := fsOf(path)
	if err != nil {
		return err
	}
	if path.IsRoot() {
		return fmt.Errorf("cannot delete the root of '%s': %w", fsys.identity, fs.ErrorInvalidArgument)
	}
	client, err := fsys.Client()
	if err != nil {
		return err
	}
	key := path.Key()
	if strings.HasSuffix(key, "/") {
		empty, err := p.prefixEmpty(ctx, fsys, key)
		if err != nil {
			return err
		}
		if !empty {
			return fmt.Errorf("'%s': %w", key, fs.ErrorDirNotEmpty)
		}
		return client.Delete(ctx, fsys.bucketName, key)
	}
	if _, err := client.Head(ctx, fsys.bucketName, key); err != nil {
		return err
	}
	return client.Delete(ctx, fsys.bucketName, key)
}

// prefixEmpty reports whether nothing but the marker itself lives
// under the prefix
func (p *Provider) prefixEmpty(ctx context.Context, fsys *FileSystem, prefix string) (bool, error) {
	page, err := fsys.ListPage(ctx, prefix, "/", "")
	if err != nil {
		if fserrors.IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	if len(page.CommonPrefixes) > 0 {
		return false, nil
	}
	for _, object := range page.Objects {
		if object.Key != prefix {
			return false, nil
		}
	}
	return true, nil
}

// CopyOptions modify Copy and Move
type CopyOptions struct {
	// ReplaceExisting suppresses the already-exists failure on the target
	ReplaceExisting bool
}

// Copy copies the object at src to dst. Within one filesystem the
// service copies server-side; across filesystems the bytes stream
// through. Without ReplaceExisting an existing destination fails.
func (p *Provider) Copy(ctx context.Context, src, dst *fs.Path, opts CopyOptions) error {
	srcFs, err := fsOf(src)
	if err != nil {
		return err
	}
	dstFs, err := fsOf(dst)
	if err != nil {
		return err
	}
	dstClient, err := dstFs.Client()
	if err != nil {
		return err
	}
	if !opts.ReplaceExisting {
		if _, err := dstClient.Head(ctx, dstFs.bucketName, dst.Key()); err == nil {
			return fmt.Errorf("'%s': %w", dst.Key(), fs.ErrorFileAlreadyExists)
		} else if !fserrors.IsNotFound(err) {
			return err
		}
	}
	if srcFs.identity == dstFs.identity {
		return dstClient.Copy(ctx, srcFs.bucketName, src.Key(), dstFs.bucketName, dst.Key())
	}
	// cross filesystem: stream the bytes through
	in, err := p.NewReadChannel(ctx, src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()
	out, err := p.NewWriteChannel(ctx, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Abort()
		return err
	}
	return out.Close()
}

// Move copies src to dst and then deletes src. The sequence is not
// atomic: a failure after the copy leaves both objects.
func (p *Provider) Move(ctx context.Context, src, dst *fs.Path, opts CopyOptions) error {
	if err := p.Copy(ctx, src, dst, opts); err != nil {
		return err
	}
	return p.Delete(ctx, src)
}

// CheckAccess succeeds iff the object or prefix exists. Access is
// read-only - there are no permissions to check beyond existence.
func (p *Provider) CheckAccess(ctx context.Context, path *fs.Path) error {
	_, err := p.ReadAttributes(ctx, path)
	return err
}

// ReadAttributes stats the path. A directory exists when its marker
// object does or when anything lives under its prefix.
func (p *Provider) ReadAttributes(ctx context.Context, path *fs.Path) (*fs.Attributes, error) {
	fsys, err := fsOf(path)
	if err != nil {
		return nil, err
	}
	client, err := fsys.Client()
	if err != nil {
		return nil, err
	}
	if path.IsRoot() {
		exists, err := client.BucketExists(ctx, fsys.bucketName)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("bucket '%s': %w", fsys.bucketName, fs.ErrorDirNotFound)
		}
		return &fs.Attributes{Dir: true}, nil
	}
	key := path.Key()
	if info, err := client.Head(ctx, fsys.bucketName, key); err == nil {
		return attributesOf(info, strings.HasSuffix(key, "/")), nil
	} else if !fserrors.IsNotFound(err) {
		return nil, err
	}
	// no object under the exact key - it may still exist as a prefix
	prefix := key
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if info, err := client.Head(ctx, fsys.bucketName, prefix); err == nil {
		return attributesOf(info, true), nil
	} else if !fserrors.IsNotFound(err) {
		return nil, err
	}
	empty, err := p.prefixEmpty(ctx, fsys, prefix)
	if err != nil {
		return nil, err
	}
	if !empty {
		return &fs.Attributes{Dir: true}, nil
	}
	if strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("'%s': %w", key, fs.ErrorDirNotFound)
	}
	return nil, fmt.Errorf("'%s': %w", key, fs.ErrorObjectNotFound)
}

// attributesOf converts a head result, preferring the recorded mtime
// metadata over the service's LastModified when present
func attributesOf(info *fs.ObjectInfo, dir bool) *fs.Attributes {
	attrs := &fs.Attributes{
		Size:    info.Size,
		ModTime: info.LastModified,
		ETag:    info.ETag,
		Dir:     dir,
	}
	if value, ok := info.Metadata[metaMtime]; ok {
		if t, err := swift.FloatStringToTime(value); err == nil {
			attrs.ModTime = t
		}
	}
	return attrs
}

// IsSameFile reports whether the two paths address the same object:
// equal normalized absolute form on the same filesystem identity.
func (p *Provider) IsSameFile(a, b *fs.Path) bool {
	return a.Normalize().Equal(b.Normalize())
}

// IsHidden reports whether the path is hidden. S3 has no notion of
// hidden objects.
func (p *Provider) IsHidden(path *fs.Path) bool {
	return false
}
