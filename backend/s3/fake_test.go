package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/config"
)

// fakeObject is one stored object
type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modTime     time.Time
}

// fakeUpload is one in-flight multipart upload
type fakeUpload struct {
	bucket      string
	key         string
	contentType string
	metadata    map[string]string
	parts       map[int64][]byte
}

// fakeClient is an in-memory Client so everything above the adapter
// tests without a network
type fakeClient struct {
	mu       sync.Mutex
	buckets  map[string]map[string]*fakeObject
	uploads  map[string]*fakeUpload
	pageSize int
	ranges   []string // the byte ranges GetRange was asked for
	closed   bool
}

func newFakeClient(buckets ...string) *fakeClient {
	c := &fakeClient{
		buckets:  make(map[string]map[string]*fakeObject),
		uploads:  make(map[string]*fakeUpload),
		pageSize: 1000,
	}
	for _, b := range buckets {
		c.buckets[b] = make(map[string]*fakeObject)
	}
	return c
}

// put stores an object directly, for test setup
func (c *fakeClient) put(bucket, key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buckets[bucket] == nil {
		c.buckets[bucket] = make(map[string]*fakeObject)
	}
	c.buckets[bucket][key] = &fakeObject{data: data, modTime: time.Now()}
}

func (c *fakeClient) notFound(what string) error {
	return fmt.Errorf("'%s': %w", what, fs.ErrorObjectNotFound)
}

func (c *fakeClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.buckets[bucket]
	return ok, nil
}

func (c *fakeClient) CreateBucket(ctx context.Context, bucket, locationConstraint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buckets[bucket] == nil {
		c.buckets[bucket] = make(map[string]*fakeObject)
	}
	return nil
}

func (c *fakeClient) Head(ctx context.Context, bucket, key string) (*fs.ObjectInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.buckets[bucket][key]
	if !ok {
		return nil, c.notFound(key)
	}
	return &fs.ObjectInfo{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: o.modTime,
		ContentType:  o.contentType,
		Metadata:     o.metadata,
	}, nil
}

func (c *fakeClient) GetRange(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.buckets[bucket][key]
	if !ok {
		return nil, c.notFound(key)
	}
	c.ranges = append(c.ranges, fmt.Sprintf("%d+%d", offset, length))
	if offset >= int64(len(o.data)) {
		return nil, nil
	}
	end := offset + length
	if end > int64(len(o.data)) {
		end = int64(len(o.data))
	}
	return append([]byte(nil), o.data[offset:end]...), nil
}

func (c *fakeClient) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64, contentType string, metadata map[string]string) error {
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buckets[bucket] == nil {
		return fmt.Errorf("bucket '%s': %w", bucket, fs.ErrorDirNotFound)
	}
	c.buckets[bucket][key] = &fakeObject{
		data:        data,
		contentType: contentType,
		metadata:    metadata,
		modTime:     time.Now(),
	}
	return nil
}

func (c *fakeClient) Delete(ctx context.Context, bucket, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buckets[bucket], key)
	return nil
}

func (c *fakeClient) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.buckets[srcBucket][srcKey]
	if !ok {
		return c.notFound(srcKey)
	}
	clone := *o
	clone.data = append([]byte(nil), o.data...)
	c.buckets[dstBucket][dstKey] = &clone
	return nil
}

// listEntry is one delivered item - an object or a common prefix
type listEntry struct {
	key      string
	isPrefix bool
	obj      *fakeObject
}

func (c *fakeClient) ListPage(ctx context.Context, bucket, prefix, delimiter, token string) (*fs.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	objects, ok := c.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket '%s': %w", bucket, fs.ErrorDirNotFound)
	}
	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	// group keys with the delimiter after the prefix into common prefixes
	var entries []listEntry
	seen := map[string]bool{}
	for _, key := range keys {
		rest := key[len(prefix):]
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				common := prefix + rest[:i+len(delimiter)]
				if !seen[common] {
					seen[common] = true
					entries = append(entries, listEntry{key: common, isPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, listEntry{key: key, obj: objects[key]})
	}
	page := &fs.Page{}
	count := 0
	for i, e := range entries {
		if token != "" && e.key <= token {
			continue
		}
		if count >= c.pageSize {
			break
		}
		count++
		if e.isPrefix {
			page.CommonPrefixes = append(page.CommonPrefixes, e.key)
		} else {
			page.Objects = append(page.Objects, fs.ObjectInfo{
				Key:          e.key,
				Size:         int64(len(e.obj.data)),
				LastModified: e.obj.modTime,
			})
		}
		if count == c.pageSize && i < len(entries)-1 {
			page.NextToken = e.key
		}
	}
	return page, nil
}

func (c *fakeClient) CreateMultipart(ctx context.Context, bucket, key, contentType string, metadata map[string]string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New().String()
	c.uploads[id] = &fakeUpload{
		bucket:      bucket,
		key:         key,
		contentType: contentType,
		metadata:    metadata,
		parts:       make(map[int64][]byte),
	}
	return id, nil
}

func (c *fakeClient) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int64, body io.ReadSeeker) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.uploads[uploadID]
	if !ok {
		return "", c.notFound(uploadID)
	}
	u.parts[partNumber] = data
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (c *fakeClient) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.uploads[uploadID]
	if !ok {
		return c.notFound(uploadID)
	}
	var data []byte
	for _, part := range parts {
		data = append(data, u.parts[part.PartNumber]...)
	}
	c.buckets[bucket][key] = &fakeObject{
		data:        data,
		contentType: u.contentType,
		metadata:    u.metadata,
		modTime:     time.Now(),
	}
	delete(c.uploads, uploadID)
	return nil
}

func (c *fakeClient) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.uploads, uploadID)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// newTestProvider wires a provider to a shared fake client
func newTestProvider(client *fakeClient) *Provider {
	p := NewProvider()
	p.newClient = func(*config.Configuration) (Client, error) {
		return client, nil
	}
	return p
}
