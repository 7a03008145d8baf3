package s3

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/config"
)

func TestWriteChannelSmallObject(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient("baa")
	p, fsys := setupFs(t, client, "s3://baa/")

	w, err := p.NewWriteChannel(ctx, fsys.Path("/greeting.txt"))
	require.NoError(t, err)
	_, err = w.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), w.Size())

	// nothing is visible until Close
	_, err = client.Head(ctx, "baa", "greeting.txt")
	assert.ErrorIs(t, err, fs.ErrorObjectNotFound)

	require.NoError(t, w.Close())
	info, err := client.Head(ctx, "baa", "greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
	assert.Contains(t, info.Metadata, "mtime")
}

func TestWriteChannelSpillsToDisk(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient("baa")
	p := newTestProvider(client)
	// a four byte staging threshold forces the spill
	fsys, err := p.NewFileSystem(ctx, "s3://baa/", map[string]string{
		config.PropertyReadMaxFragmentSize: "4",
	})
	require.NoError(t, err)

	w, err := p.NewWriteChannel(ctx, fsys.Path("/big.bin"))
	require.NoError(t, err)
	payload := []byte("well past the threshold")
	_, err = w.Write(payload[:3])
	require.NoError(t, err)
	assert.Nil(t, w.spill)
	_, err = w.Write(payload[3:])
	require.NoError(t, err)
	assert.NotNil(t, w.spill)

	require.NoError(t, w.Close())
	info, err := client.Head(ctx, "baa", "big.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)
	data, err := client.GetRange(ctx, "baa", "big.bin", 0, info.Size)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, data))
}

func TestWriteChannelOverwrites(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient("baa")
	client.put("baa", "file.txt", []byte("old content"))
	p, fsys := setupFs(t, client, "s3://baa/")

	w, err := p.NewWriteChannel(ctx, fsys.Path("/file.txt"))
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := client.Head(ctx, "baa", "file.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)
}

func TestWriteChannelContentType(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient("baa")
	p, fsys := setupFs(t, client, "s3://baa/")

	w, err := p.NewWriteChannelContentType(ctx, fsys.Path("/page.html"), "text/html")
	require.NoError(t, err)
	_, err = w.Write([]byte("<html></html>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := client.Head(ctx, "baa", "page.html")
	require.NoError(t, err)
	assert.Equal(t, "text/html", info.ContentType)
}

func TestWriteChannelAbort(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient("baa")
	p, fsys := setupFs(t, client, "s3://baa/")

	w, err := p.NewWriteChannel(ctx, fsys.Path("/doomed.txt"))
	require.NoError(t, err)
	_, err = w.Write([]byte("never uploaded"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = client.Head(ctx, "baa", "doomed.txt")
	assert.ErrorIs(t, err, fs.ErrorObjectNotFound)
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, fs.ErrorChannelClosed)
}

func TestWriteChannelClosed(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient("baa")
	p, fsys := setupFs(t, client, "s3://baa/")

	w, err := p.NewWriteChannel(ctx, fsys.Path("/file.txt"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, fs.ErrorChannelClosed)
	assert.ErrorIs(t, w.Close(), fs.ErrorChannelClosed)
}

func TestWriteChannelMultipart(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient("baa")
	p, fsys := setupFs(t, client, "s3://baa/")

	w, err := p.NewWriteChannel(ctx, fsys.Path("/huge.bin"))
	require.NoError(t, err)
	// drop the thresholds so the test stays small
	w.threshold = 16
	w.partSize = 16

	payload := bytes.Repeat([]byte("0123456789abcdef"), 5)
	payload = append(payload, []byte("tail")...)
	_, err = w.Write(payload)
	require.NoError(t, err)

	// drive the multipart path directly - the cutoff which normally
	// selects it is 200 MiB
	metadata := map[string]string{metaMtime: "1.0"}
	require.NoError(t, w.uploadMultipart(client, metadata))

	info, err := client.Head(ctx, "baa", "huge.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size)
	data, err := client.GetRange(ctx, "baa", "huge.bin", 0, info.Size)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, data))
	// and the 84 byte payload spans six parts of 16 bytes
	assert.Equal(t, int64(6), (w.size+w.partSize-1)/w.partSize)
}

func TestWriteChannelMultipartPartCount(t *testing.T) {
	for _, test := range []struct {
		size     int64
		partSize int64
		want     int64
	}{
		{size: 1, partSize: 16, want: 1},
		{size: 16, partSize: 16, want: 1},
		{size: 17, partSize: 16, want: 2},
		{size: 160, partSize: 16, want: 10},
	} {
		got := (test.size + test.partSize - 1) / test.partSize
		assert.Equal(t, test.want, got, strconv.FormatInt(test.size, 10))
	}
}
