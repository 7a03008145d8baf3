package fserrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/objfs/s3fs/fs"
)

func TestKindOf(t *testing.T) {
	for _, test := range []struct {
		err  error
		want Kind
	}{
		{err: nil, want: KindUnknown},
		{err: fs.ErrorObjectNotFound, want: KindNotFound},
		{err: fmt.Errorf("head 'x': %w", fs.ErrorObjectNotFound), want: KindNotFound},
		{err: fs.ErrorDirNotFound, want: KindNotFound},
		{err: fs.ErrorFsNotFound, want: KindNotFound},
		{err: fs.ErrorFsAlreadyExists, want: KindAlreadyExists},
		{err: fs.ErrorFileAlreadyExists, want: KindAlreadyExists},
		{err: fs.ErrorInvalidArgument, want: KindInvalidArgument},
		{err: fs.ErrorFsClosed, want: KindClosed},
		{err: fs.ErrorStreamClosed, want: KindClosed},
		{err: fs.ErrorChannelClosed, want: KindClosed},
		{err: fs.ErrorDirNotEmpty, want: KindDirNotEmpty},
		{err: errors.New("connection reset"), want: KindTransport},
	} {
		assert.Equal(t, test.want, KindOf(test.err), fmt.Sprint(test.err))
	}
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", fs.ErrorDirNotFound)))
	assert.False(t, IsNotFound(errors.New("other")))
	assert.True(t, IsAlreadyExists(fs.ErrorFsAlreadyExists))
	assert.False(t, IsAlreadyExists(fs.ErrorObjectNotFound))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.True(t, ShouldRetry(io.EOF))
	assert.True(t, ShouldRetry(io.ErrUnexpectedEOF))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.False(t, ShouldRetry(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.False(t, ShouldRetry(fs.ErrorObjectNotFound))
	assert.False(t, ShouldRetry(fs.ErrorInvalidArgument))
	var netErr net.Error = timeoutError{}
	assert.True(t, ShouldRetry(netErr))
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.False(t, ShouldRetry(errors.New("some application error")))
}

func TestContextError(t *testing.T) {
	ctx := context.Background()
	var err error
	assert.False(t, ContextError(ctx, &err))
	assert.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.True(t, ContextError(cancelled, &err))
	assert.ErrorIs(t, err, context.Canceled)

	// an existing error is not overwritten
	boom := errors.New("boom")
	err = boom
	expired, cancel2 := context.WithTimeout(ctx, time.Nanosecond)
	defer cancel2()
	time.Sleep(time.Millisecond)
	assert.True(t, ContextError(expired, &err))
	assert.Equal(t, boom, err)
}
