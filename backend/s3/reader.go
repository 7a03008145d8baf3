package s3

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/objfs/s3fs/fs"
)

// fragment is one aligned byte range of the object. data and err are
// valid once ready is closed.
type fragment struct {
	index int64
	ready chan struct{}
	data  []byte
	err   error
}

// ReadChannel reads an object through a read-ahead window of
// fragments. Asking for a byte schedules its fragment and the
// following ones up to the window size; the oldest fragment is
// evicted when the window overflows.
//
// It implements io.Reader, io.ReaderAt, io.Seeker and io.Closer. A
// channel is not safe for concurrent use.
type ReadChannel struct {
	fsys     *FileSystem
	key      string
	size     int64
	fragSize int64
	maxFrags int

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	pos    int64
	frags  map[int64]*fragment
	order  []int64
	closed bool
}

// ReadResult is the outcome of an asynchronous read
type ReadResult struct {
	N   int
	Err error
}

// NewReadChannel opens the object at path for reading. The object's
// size is fixed by an initial head call.
func (p *Provider) NewReadChannel(ctx context.Context, path *fs.Path) (*ReadChannel, error) {
	fsys, err := fsOf(path)
	if err != nil {
		return nil, err
	}
	client, err := fsys.Client()
	if err != nil {
		return nil, err
	}
	key := path.Key()
	info, err := client.Head(ctx, fsys.bucketName, key)
	if err != nil {
		return nil, err
	}
	fetchCtx, cancel := context.WithCancel(context.Background())
	r := &ReadChannel{
		fsys:     fsys,
		key:      key,
		size:     info.Size,
		fragSize: int64(fsys.cfg.MaxFragmentSize()),
		maxFrags: fsys.cfg.MaxFragmentNumber(),
		ctx:      fetchCtx,
		cancel:   cancel,
		frags:    make(map[int64]*fragment),
	}
	fsys.register(r)
	return r, nil
}

// Size returns the size of the object
func (r *ReadChannel) Size() int64 {
	return r.size
}

// Read reads from the current position and advances it
func (r *ReadChannel) Read(p []byte) (int, error) {
	r.mu.Lock()
	pos := r.pos
	r.mu.Unlock()
	n, err := r.ReadAt(p, pos)
	r.mu.Lock()
	r.pos = pos + int64(n)
	r.mu.Unlock()
	return n, err
}

// ReadAt reads len(p) bytes starting at off. It returns io.EOF when
// the end of the object is reached before p is filled, including when
// off is at or past the end.
func (r *ReadChannel) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, fs.ErrorChannelClosed
	}
	r.mu.Unlock()
	if off < 0 {
		return 0, fmt.Errorf("negative read offset %d: %w", off, fs.ErrorInvalidArgument)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && off < r.size {
		frag, err := r.fragmentAt(off)
		if err != nil {
			return n, err
		}
		fragStart := frag.index * r.fragSize
		copied := copy(p[n:], frag.data[off-fragStart:])
		if copied == 0 {
			// the service returned fewer bytes than the object size promised
			return n, io.ErrUnexpectedEOF
		}
		n += copied
		off += int64(copied)
	}
	if off >= r.size && n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadAtAsync is the deferred variant of ReadAt
func (r *ReadChannel) ReadAtAsync(p []byte, off int64) <-chan ReadResult {
	out := make(chan ReadResult, 1)
	go func() {
		n, err := r.ReadAt(p, off)
		out <- ReadResult{N: n, Err: err}
	}()
	return out
}

// fragmentAt schedules the window starting at the fragment holding
// off and waits for that fragment to land
func (r *ReadChannel) fragmentAt(off int64) (*fragment, error) {
	index := off / r.fragSize
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fs.ErrorChannelClosed
	}
	r.scheduleLocked(index)
	// hold on to the fragment before read-ahead can evict it
	frag := r.frags[index]
	for i := index + 1; i < index+int64(r.maxFrags); i++ {
		if i*r.fragSize >= r.size {
			break
		}
		r.scheduleLocked(i)
	}
	r.mu.Unlock()

	select {
	case <-frag.ready:
	case <-r.ctx.Done():
		return nil, fs.ErrorChannelClosed
	}
	if frag.err != nil {
		return nil, frag.err
	}
	return frag, nil
}

// scheduleLocked starts fetching fragment i unless it is already in
// the window, evicting the oldest fragment on overflow. Call with the
// lock held.
func (r *ReadChannel) scheduleLocked(i int64) {
	if _, ok := r.frags[i]; ok {
		return
	}
	for len(r.frags) >= r.maxFrags {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.frags, oldest)
	}
	frag := &fragment{index: i, ready: make(chan struct{})}
	r.frags[i] = frag
	r.order = append(r.order, i)

	start := i * r.fragSize
	length := r.fragSize
	if start+length > r.size {
		length = r.size - start
	}
	go func() {
		defer close(frag.ready)
		client, err := r.fsys.Client()
		if err != nil {
			frag.err = err
			return
		}
		fs.Debugf(r.fsys, "fetching fragment %d of %q (%d bytes at %d)", i, r.key, length, start)
		frag.data, frag.err = client.GetRange(r.ctx, r.fsys.bucketName, r.key, start, length)
	}()
}

// Seek sets the position for the next Read
func (r *ReadChannel) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, fs.ErrorChannelClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d: %w", whence, fs.ErrorInvalidArgument)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position %d: %w", abs, fs.ErrorInvalidArgument)
	}
	r.pos = abs
	return abs, nil
}

// Close cancels any in-flight fragment fetches and drops the window
func (r *ReadChannel) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.frags = nil
	r.order = nil
	r.mu.Unlock()
	r.cancel()
	r.fsys.deregister(r)
	return nil
}
