package fs

import (
	"fmt"
	"net/url"
	"strings"
)

// Separator is the path separator. S3 keys use it by convention.
const Separator = "/"

// Path is an immutable, normalized-on-demand view of an object key as
// a hierarchical path. It remembers whether the original string was
// absolute and whether it ended with the separator (the directory
// flag), because a trailing "/" is what distinguishes a prefix from an
// object in S3.
type Path struct {
	info     Info
	names    []string
	absolute bool
	dir      bool
}

// NewPath makes a Path belonging to info from one or more path
// strings, joined with the separator before parsing.
func NewPath(info Info, first string, more ...string) *Path {
	s := first
	if len(more) > 0 {
		parts := append([]string{first}, more...)
		s = strings.Join(parts, Separator)
	}
	names, absolute, dir := splitPath(s)
	return &Path{info: info, names: names, absolute: absolute, dir: dir}
}

// RootPath returns the root of the filesystem - the bucket itself
func RootPath(info Info) *Path {
	return &Path{info: info, absolute: true, dir: true}
}

// PathFromKey builds an absolute Path from an object key. The
// directory flag follows the key's trailing separator. The root key is
// the empty string.
func PathFromKey(info Info, key string) *Path {
	return NewPath(info, Separator+key)
}

// splitPath breaks s into its non-empty segments and the two flags
func splitPath(s string) (names []string, absolute, dir bool) {
	absolute = strings.HasPrefix(s, Separator)
	for _, seg := range strings.Split(s, Separator) {
		if seg != "" {
			names = append(names, seg)
		}
	}
	dir = len(names) > 0 && strings.HasSuffix(s, Separator)
	if len(names) == 0 {
		// "/" and "" - the root is a directory, the empty path is not
		dir = absolute
	}
	return names, absolute, dir
}

// Info returns the filesystem this path belongs to
func (p *Path) Info() Info {
	return p.info
}

// IsAbsolute reports whether the path is absolute
func (p *Path) IsAbsolute() bool {
	return p.absolute
}

// IsDir reports the directory flag - true iff the original string
// ended with the separator, or the path is the root
func (p *Path) IsDir() bool {
	return p.dir
}

// IsRoot reports whether this is the bucket root
func (p *Path) IsRoot() bool {
	return p.absolute && len(p.names) == 0
}

// NameCount returns the number of segments
func (p *Path) NameCount() int {
	return len(p.names)
}

// Name returns segment i
func (p *Path) Name(i int) string {
	return p.names[i]
}

// Base returns the final segment, or "" for the root and the empty path
func (p *Path) Base() string {
	if len(p.names) == 0 {
		return ""
	}
	return p.names[len(p.names)-1]
}

// String renders the path - leading separator if absolute, trailing
// separator if the directory flag is set
func (p *Path) String() string {
	s := strings.Join(p.names, Separator)
	if p.absolute {
		s = Separator + s
	}
	if p.dir && len(p.names) > 0 {
		s += Separator
	}
	return s
}

// Key returns the S3 object key: segments joined by the separator,
// with a trailing separator iff the directory flag is set and no
// leading separator. The root's key is the empty string.
func (p *Path) Key() string {
	s := strings.Join(p.names, Separator)
	if p.dir && len(p.names) > 0 {
		s += Separator
	}
	return s
}

// sameFs checks other belongs to the same filesystem as p
func (p *Path) sameFs(other *Path) error {
	if p.info == nil && other.info == nil {
		return nil
	}
	if p.info == nil || other.info == nil || p.info.Identity() != other.info.Identity() {
		return fmt.Errorf("path '%v' belongs to a different filesystem: %w", other, ErrorInvalidArgument)
	}
	return nil
}

// Equal reports segment-wise equality of paths on the same filesystem
func (p *Path) Equal(other *Path) bool {
	if other == nil || p.sameFs(other) != nil {
		return false
	}
	if p.absolute != other.absolute || p.dir != other.dir || len(p.names) != len(other.names) {
		return false
	}
	for i := range p.names {
		if p.names[i] != other.names[i] {
			return false
		}
	}
	return true
}

// Parent returns the parent path, or nil when there is none. The
// parent of "/a" is the root; "a" has no parent. Parents are
// directories by construction.
func (p *Path) Parent() *Path {
	if len(p.names) == 0 {
		return nil
	}
	if len(p.names) == 1 && !p.absolute {
		return nil
	}
	return &Path{
		info:     p.info,
		names:    p.names[:len(p.names)-1],
		absolute: p.absolute,
		dir:      true,
	}
}

// Resolve resolves other against p with POSIX semantics: an absolute
// other wins outright, an empty other returns p, anything else is
// appended. The result inherits the absolute flag from p and the
// directory flag from other.
func (p *Path) Resolve(other *Path) (*Path, error) {
	if err := p.sameFs(other); err != nil {
		return nil, err
	}
	if other.absolute {
		return other, nil
	}
	if len(other.names) == 0 {
		return p, nil
	}
	names := make([]string, 0, len(p.names)+len(other.names))
	names = append(names, p.names...)
	names = append(names, other.names...)
	return &Path{info: p.info, names: names, absolute: p.absolute, dir: other.dir}, nil
}

// ResolveSibling resolves other against the parent of p; with no
// parent it behaves like Resolve on other alone.
func (p *Path) ResolveSibling(other *Path) (*Path, error) {
	if err := p.sameFs(other); err != nil {
		return nil, err
	}
	parent := p.Parent()
	if parent == nil {
		return other, nil
	}
	return parent.Resolve(other)
}

// Relativize computes the minimal relative path from p to other. Both
// paths must share absoluteness.
func (p *Path) Relativize(other *Path) (*Path, error) {
	if err := p.sameFs(other); err != nil {
		return nil, err
	}
	if p.absolute != other.absolute {
		return nil, fmt.Errorf("cannot relativize an absolute and a relative path: %w", ErrorInvalidArgument)
	}
	base := p.Normalize()
	target := other.Normalize()
	common := 0
	for common < len(base.names) && common < len(target.names) && base.names[common] == target.names[common] {
		common++
	}
	var names []string
	for i := common; i < len(base.names); i++ {
		names = append(names, "..")
	}
	names = append(names, target.names[common:]...)
	dir := target.dir
	if len(names) == 0 {
		dir = false
	}
	return &Path{info: p.info, names: names, dir: dir}, nil
}

// Normalize collapses "." and ".." segments. An absolute path never
// keeps "..", a relative path keeps a leading run of them. The
// directory flag is preserved.
func (p *Path) Normalize() *Path {
	var names []string
	changed := false
	for _, name := range p.names {
		switch name {
		case ".":
			changed = true
		case "..":
			if n := len(names); n > 0 && names[n-1] != ".." {
				names = names[:n-1]
				changed = true
			} else if p.absolute {
				// cannot go above the root
				changed = true
			} else {
				names = append(names, name)
			}
		default:
			names = append(names, name)
		}
	}
	if !changed {
		return p
	}
	dir := p.dir
	if len(names) == 0 {
		dir = p.absolute
	}
	return &Path{info: p.info, names: names, absolute: p.absolute, dir: dir}
}

// Subpath returns the relative path of segments [begin, end)
func (p *Path) Subpath(begin, end int) (*Path, error) {
	if begin < 0 || end > len(p.names) || begin >= end {
		return nil, fmt.Errorf("subpath [%d, %d) out of range for %d segments: %w", begin, end, len(p.names), ErrorInvalidArgument)
	}
	dir := p.dir && end == len(p.names)
	return &Path{info: p.info, names: p.names[begin:end], dir: dir}, nil
}

// StartsWith reports whether p begins with the segments of other.
// Paths of different filesystems or absoluteness never match.
func (p *Path) StartsWith(other *Path) bool {
	if p.sameFs(other) != nil || p.absolute != other.absolute {
		return false
	}
	if len(other.names) > len(p.names) {
		return false
	}
	for i := range other.names {
		if p.names[i] != other.names[i] {
			return false
		}
	}
	return true
}

// EndsWith reports whether p ends with the segments of other. An
// absolute other only matches an equal absolute p.
func (p *Path) EndsWith(other *Path) bool {
	if p.sameFs(other) != nil {
		return false
	}
	if other.absolute {
		return p.absolute && p.equalNames(other)
	}
	if len(other.names) > len(p.names) || len(other.names) == 0 {
		return false
	}
	offset := len(p.names) - len(other.names)
	for i := range other.names {
		if p.names[offset+i] != other.names[i] {
			return false
		}
	}
	return true
}

func (p *Path) equalNames(other *Path) bool {
	if len(p.names) != len(other.names) {
		return false
	}
	for i := range p.names {
		if p.names[i] != other.names[i] {
			return false
		}
	}
	return true
}

// URI reconstructs the URI of the path using the owning filesystem's
// scheme, endpoint and credentials. Relative paths are rendered from
// the root.
func (p *Path) URI() string {
	n := p.Normalize()
	key := strings.Join(n.names, Separator)
	if n.dir && len(n.names) > 0 {
		key += Separator
	}
	u := url.URL{Scheme: SchemeS3}
	bucket := ""
	if p.info != nil {
		u.Scheme = p.info.Scheme()
		bucket = p.info.Bucket()
	}
	if p.info != nil && p.info.Endpoint() != "" {
		u.Host = p.info.Endpoint()
		u.Path = Separator + bucket
		if key != "" {
			u.Path += Separator + key
		}
		if access, secret, ok := p.info.Credentials(); ok {
			if secret != "" {
				u.User = url.UserPassword(access, secret)
			} else {
				u.User = url.User(access)
			}
		}
	} else {
		u.Host = bucket
		u.Path = Separator + key
	}
	return u.String()
}
