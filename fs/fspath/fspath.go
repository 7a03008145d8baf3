// Package fspath parses s3:// and s3x:// URIs into their endpoint,
// bucket, key and principal parts and computes the identity key which
// interns filesystem instances.
package fspath

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/lib/bucket"
)

// Info is the parse result. HasSecret distinguishes "user@host" from
// "user:@host".
type Info struct {
	Scheme    string
	AccessKey string
	Secret    string
	HasSecret bool
	Endpoint  string
	Bucket    string
	Key       string
}

// Parse splits a URI of either scheme into its Info.
//
// Canonical: the authority is the bucket, there is no endpoint and no
// credentials. Extended: the authority is "host[:port]" optionally
// preceded by "user[:secret]@", the first path segment is the bucket
// and the remainder is the key.
func Parse(rawURI string) (*Info, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("cannot parse '%s': %v: %w", rawURI, err, fs.ErrorInvalidArgument)
	}
	info := &Info{Scheme: u.Scheme}
	switch u.Scheme {
	case fs.SchemeS3:
		if u.User != nil {
			return nil, fmt.Errorf("scheme '%s' does not carry credentials in the URI: %w", fs.SchemeS3, fs.ErrorInvalidArgument)
		}
		info.Bucket = u.Host
		info.Key = strings.TrimPrefix(u.Path, "/")
	case fs.SchemeS3X:
		if u.Host == "" {
			return nil, fmt.Errorf("'%s' has no endpoint: %w", rawURI, fs.ErrorInvalidArgument)
		}
		info.Endpoint = u.Host
		if u.User != nil {
			info.AccessKey = u.User.Username()
			info.Secret, info.HasSecret = u.User.Password()
		}
		info.Bucket, info.Key = bucket.Split(strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, fmt.Errorf("unsupported scheme '%s': %w", u.Scheme, fs.ErrorInvalidArgument)
	}
	if err := bucket.ValidName(info.Bucket); err != nil {
		return nil, fmt.Errorf("%v: %w", err, fs.ErrorInvalidArgument)
	}
	return info, nil
}

// Identity returns the canonical string identifying the filesystem
// this URI addresses: "bucket" for the canonical scheme,
// "endpoint/bucket" for the extended scheme, and
// "accessKey@endpoint/bucket" when the URI carries a principal.
func (i *Info) Identity() string {
	if i.Endpoint == "" {
		return i.Bucket
	}
	if i.AccessKey == "" {
		return i.Endpoint + "/" + i.Bucket
	}
	return i.AccessKey + "@" + i.Endpoint + "/" + i.Bucket
}

// HasCredentials reports whether the URI carried an access key
func (i *Info) HasCredentials() bool {
	return i.AccessKey != ""
}
