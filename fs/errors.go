package fs

import "errors"

// Sentinel errors returned by the library. Callers test for them with
// errors.Is after any amount of wrapping.
var (
	// ErrorObjectNotFound is returned when an object does not exist
	ErrorObjectNotFound = errors.New("object not found")

	// ErrorDirNotFound is returned when a directory prefix or bucket does not exist
	ErrorDirNotFound = errors.New("directory not found")

	// ErrorDirNotEmpty is returned when deleting a prefix which still has children
	ErrorDirNotEmpty = errors.New("directory not empty")

	// ErrorFileAlreadyExists is returned when a copy or move would
	// overwrite an existing object without ReplaceExisting
	ErrorFileAlreadyExists = errors.New("file already exists")

	// ErrorFsNotFound is returned by GetFileSystem when no filesystem
	// is registered for the identity key
	ErrorFsNotFound = errors.New("filesystem not found")

	// ErrorFsAlreadyExists is returned by NewFileSystem when a
	// filesystem is already registered for the identity key
	ErrorFsAlreadyExists = errors.New("filesystem already exists")

	// ErrorFsClosed is returned for any operation on a closed filesystem
	ErrorFsClosed = errors.New("filesystem is closed")

	// ErrorStreamClosed is returned by Next on a closed directory stream
	ErrorStreamClosed = errors.New("directory stream is closed")

	// ErrorChannelClosed is returned for reads or writes on a closed channel
	ErrorChannelClosed = errors.New("channel is closed")

	// ErrorInvalidArgument is returned for malformed buckets, endpoints,
	// protocols, fragment sizes and cross filesystem paths
	ErrorInvalidArgument = errors.New("invalid argument")
)
