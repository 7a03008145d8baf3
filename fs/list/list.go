// Package list turns the paginated listing of a prefix into a lazy,
// cancellable, single-pass sequence of paths.
package list

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/fserrors"
)

// Filter decides whether a path is delivered. Non-matching paths are
// silently dropped.
type Filter func(*fs.Path) bool

// All matches every path
func All(*fs.Path) bool { return true }

// Result is one item of the asynchronous stream
type Result struct {
	Path *fs.Path
	Err  error
}

// Stream is a lazy sequence of the children of a directory. A
// producer goroutine fetches pages on demand; items hand over on an
// unbuffered channel so the page after the current one is only
// requested once the consumer has taken the last item of the current
// page. The sequence is finite and not restartable.
type Stream struct {
	dir    *fs.Path
	cancel context.CancelFunc
	ch     chan Result

	mu     sync.Mutex
	closed bool
}

// New opens a stream over the children of dir. A non-existing prefix
// yields an empty stream, not an error - CheckAccess is the way to
// probe existence. Closing the stream cancels the in-flight page
// request.
func New(ctx context.Context, lister fs.Lister, dir *fs.Path, filter Filter) *Stream {
	if filter == nil {
		filter = All
	}
	prefix := dir.Key()
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		dir:    dir,
		cancel: cancel,
		ch:     make(chan Result),
	}
	go s.produce(ctx, lister, prefix, filter)
	return s
}

// produce paginates through the listing, delivering items in service
// order: the objects of a page first, then its common prefixes.
func (s *Stream) produce(ctx context.Context, lister fs.Lister, prefix string, filter Filter) {
	defer close(s.ch)
	info := s.dir.Info()
	token := ""
	for {
		page, err := lister.ListPage(ctx, prefix, "/", token)
		if err != nil {
			if fserrors.IsNotFound(err) {
				// a missing prefix or bucket lists as empty
				return
			}
			s.send(ctx, Result{Err: err})
			return
		}
		for _, object := range page.Objects {
			if object.Key == prefix {
				// the marker of the directory itself
				continue
			}
			p := fs.PathFromKey(info, object.Key)
			if !filter(p) {
				continue
			}
			if !s.send(ctx, Result{Path: p}) {
				return
			}
		}
		for _, commonPrefix := range page.CommonPrefixes {
			p := fs.PathFromKey(info, commonPrefix)
			if !filter(p) {
				continue
			}
			if !s.send(ctx, Result{Path: p}) {
				return
			}
		}
		if page.NextToken == "" {
			return
		}
		token = page.NextToken
	}
}

func (s *Stream) send(ctx context.Context, r Result) bool {
	select {
	case s.ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// Next blocks for the next path. It returns io.EOF once the sequence
// is exhausted and fs.ErrorStreamClosed after Close.
func (s *Stream) Next(ctx context.Context) (*fs.Path, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fs.ErrorStreamClosed
	}
	select {
	case r, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return r.Path, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NextAsync is the deferred variant of Next: the result arrives on the
// returned channel.
func (s *Stream) NextAsync(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		p, err := s.Next(ctx)
		if err == io.EOF {
			out <- Result{Err: io.EOF}
			return
		}
		out <- Result{Path: p, Err: err}
	}()
	return out
}

// Collect drains the stream into a slice
func (s *Stream) Collect(ctx context.Context) ([]*fs.Path, error) {
	var paths []*fs.Path
	for {
		p, err := s.Next(ctx)
		if err == io.EOF {
			return paths, nil
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
}

// Close cancels any pending page request. Further Next calls fail
// with fs.ErrorStreamClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return nil
}
