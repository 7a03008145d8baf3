package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ncw/swift/v2"
	"golang.org/x/sync/errgroup"

	"github.com/objfs/s3fs/fs"
)

const (
	// multipartCutoff is the staged size above which Close switches
	// from a single PUT to a multipart upload
	multipartCutoff = 200 * 1024 * 1024
	// uploadConcurrency is how many parts upload at once
	uploadConcurrency = 4
)

// WriteChannel stages the bytes of a single object: in memory up to
// one fragment size, then spilled to an anonymous temporary file. The
// object is uploaded on Close - as one PUT, or transparently as a
// multipart upload above the cutoff. Nothing is visible remotely
// until Close returns.
//
// A channel is not safe for concurrent use.
type WriteChannel struct {
	fsys        *FileSystem
	ctx         context.Context
	key         string
	contentType string
	threshold   int64
	partSize    int64

	mu     sync.Mutex
	buf    bytes.Buffer
	spill  *os.File
	size   int64
	closed bool
}

// NewWriteChannel opens the object at path for (re)writing
func (p *Provider) NewWriteChannel(ctx context.Context, path *fs.Path) (*WriteChannel, error) {
	return p.NewWriteChannelContentType(ctx, path, "")
}

// NewWriteChannelContentType opens the object at path for writing
// with an explicit content type
func (p *Provider) NewWriteChannelContentType(ctx context.Context, path *fs.Path, contentType string) (*WriteChannel, error) {
	fsys, err := fsOf(path)
	if err != nil {
		return nil, err
	}
	if err := fsys.checkOpen(); err != nil {
		return nil, err
	}
	fragSize := int64(fsys.cfg.MaxFragmentSize())
	w := &WriteChannel{
		fsys:        fsys,
		ctx:         ctx,
		key:         path.Key(),
		contentType: contentType,
		threshold:   fragSize,
		partSize:    fragSize,
	}
	fsys.register(w)
	return w, nil
}

// Write stages p. The bytes only reach the service on Close.
func (w *WriteChannel) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, fs.ErrorChannelClosed
	}
	if w.spill == nil && int64(w.buf.Len()+len(p)) > w.threshold {
		if err := w.spillToFileLocked(); err != nil {
			return 0, err
		}
	}
	var n int
	var err error
	if w.spill != nil {
		n, err = w.spill.Write(p)
	} else {
		n, err = w.buf.Write(p)
	}
	w.size += int64(n)
	return n, err
}

// Size returns the number of bytes staged so far
func (w *WriteChannel) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// spillToFileLocked moves the staging buffer to an anonymous
// temporary file. Call with the lock held.
func (w *WriteChannel) spillToFileLocked() error {
	f, err := os.CreateTemp("", "s3fs-spool-")
	if err != nil {
		return fmt.Errorf("spill: %w", err)
	}
	// unlink immediately so the spool never outlives the process
	name := f.Name()
	if err := os.Remove(name); err != nil {
		fs.Debugf(w.fsys, "unlinking spool %q: %v", name, err)
	}
	if _, err := f.Write(w.buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("spill: %w", err)
	}
	fs.Debugf(w.fsys, "staging for %q spilled to disk", w.key)
	w.buf.Reset()
	w.spill = f
	return nil
}

// Abort discards the staged bytes without uploading
func (w *WriteChannel) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.discardLocked()
	w.fsys.deregister(w)
	return nil
}

func (w *WriteChannel) discardLocked() {
	if w.spill != nil {
		_ = w.spill.Close()
		w.spill = nil
	}
	w.buf.Reset()
}

// Close uploads the staged bytes as the object and releases the
// staging resources. Further writes fail with fs.ErrorChannelClosed.
func (w *WriteChannel) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fs.ErrorChannelClosed
	}
	w.closed = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.discardLocked()
		w.mu.Unlock()
		w.fsys.deregister(w)
	}()

	client, err := w.fsys.Client()
	if err != nil {
		return err
	}
	metadata := map[string]string{metaMtime: swift.TimeToFloatString(time.Now())}
	if w.size > multipartCutoff {
		return w.uploadMultipart(client, metadata)
	}
	var body io.ReadSeeker
	if w.spill != nil {
		body = w.spill
	} else {
		body = bytes.NewReader(w.buf.Bytes())
	}
	fs.Debugf(w.fsys, "uploading %q (%d bytes)", w.key, w.size)
	return client.Put(w.ctx, w.fsys.bucketName, w.key, body, w.size, w.contentType, metadata)
}

// sectionAt returns a reader over one part of the staged bytes
func (w *WriteChannel) sectionAt(offset, length int64) io.ReadSeeker {
	if w.spill != nil {
		return io.NewSectionReader(w.spill, offset, length)
	}
	return bytes.NewReader(w.buf.Bytes()[offset : offset+length])
}

// uploadMultipart uploads the staged bytes as a multipart upload with
// concurrent parts, aborting the upload on any failure
func (w *WriteChannel) uploadMultipart(client Client, metadata map[string]string) (err error) {
	uploadID, err := client.CreateMultipart(w.ctx, w.fsys.bucketName, w.key, w.contentType, metadata)
	if err != nil {
		return fmt.Errorf("multipart upload of '%s': %w", w.key, err)
	}
	defer func() {
		if err != nil {
			if abortErr := client.AbortMultipart(w.ctx, w.fsys.bucketName, w.key, uploadID); abortErr != nil {
				fs.Debugf(w.fsys, "aborting multipart upload of %q: %v", w.key, abortErr)
			}
		}
	}()

	numParts := (w.size + w.partSize - 1) / w.partSize
	parts := make([]CompletedPart, numParts)
	g, gCtx := errgroup.WithContext(w.ctx)
	g.SetLimit(uploadConcurrency)
	fs.Debugf(w.fsys, "uploading %q in %d parts of %d bytes", w.key, numParts, w.partSize)
	for i := int64(0); i < numParts; i++ {
		i := i
		g.Go(func() error {
			offset := i * w.partSize
			length := w.partSize
			if offset+length > w.size {
				length = w.size - offset
			}
			etag, err := client.UploadPart(gCtx, w.fsys.bucketName, w.key, uploadID, i+1, w.sectionAt(offset, length))
			if err != nil {
				return fmt.Errorf("part %d: %w", i+1, err)
			}
			parts[i] = CompletedPart{PartNumber: i + 1, ETag: etag}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	return client.CompleteMultipart(w.ctx, w.fsys.bucketName, w.key, uploadID, parts)
}
