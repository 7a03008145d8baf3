// Package fs holds the core types of the S3 filesystem adapter: the
// hierarchical Path model, the interfaces a backend filesystem
// implements, listing page types and the error sentinels.
package fs

import (
	"context"
	"time"
)

// URI schemes understood by the adapter
const (
	// SchemeS3 is the canonical scheme - the authority is the bucket
	SchemeS3 = "s3"
	// SchemeS3X is the extended scheme - the authority is an endpoint,
	// optionally with inline credentials, and the first path segment is
	// the bucket
	SchemeS3X = "s3x"
)

// Info describes the filesystem a Path belongs to.
//
// It is implemented by backend/s3.FileSystem and by test stubs.
type Info interface {
	// Scheme returns the URI scheme the filesystem was created with
	Scheme() string
	// Endpoint returns "host" or "host:port", or "" for the canonical scheme
	Endpoint() string
	// Bucket returns the bucket the filesystem is bound to
	Bucket() string
	// Identity returns the identity key: "bucket", "endpoint/bucket" or
	// "accessKey@endpoint/bucket"
	Identity() string
	// Credentials returns the principal bound to the filesystem, if any
	Credentials() (accessKey, secretKey string, ok bool)
}

// ObjectInfo describes a single remote object as returned by a head
// call or a listing page. Metadata is only populated by head.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
}

// Page is one page of a paginated listing. NextToken is "" on the
// final page.
type Page struct {
	Objects        []ObjectInfo
	CommonPrefixes []string
	NextToken      string
}

// Lister issues one page of a delimited listing. Implemented by
// backend/s3.FileSystem; fs/list and fs/walk are written against it.
type Lister interface {
	ListPage(ctx context.Context, prefix, delimiter, token string) (*Page, error)
}

// Attributes are the stat result for a path
type Attributes struct {
	Size    int64
	ModTime time.Time
	ETag    string
	Dir     bool
}

// IsRegular reports whether the attributes describe a plain object
func (a *Attributes) IsRegular() bool {
	return !a.Dir
}
