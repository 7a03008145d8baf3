// Package bucket deals with bucket/path pairs: splitting and joining
// them, validating bucket names against the DNS rules, and remembering
// which buckets are known to exist.
package bucket

import (
	"fmt"
	"strings"
	"sync"
)

// Split takes an absolute path which includes the bucket and splits it
// into a bucket and a path in that bucket: "bucket/path" -> "bucket",
// "path"
func Split(absPath string) (bucket, bucketPath string) {
	i := strings.IndexRune(absPath, '/')
	if i < 0 {
		return absPath, ""
	}
	return absPath[:i], absPath[i+1:]
}

// Join joins path elements together, ignoring empty ones
func Join(elements ...string) string {
	var out strings.Builder
	for _, element := range elements {
		if element == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteRune('/')
		}
		out.WriteString(element)
	}
	return out.String()
}

// ValidName checks name against the DNS bucket-name rules: lowercase
// letters, digits, dots and dashes, 3 to 63 characters, starting and
// ending with a letter or digit, no adjacent dots.
func ValidName(name string) error {
	if name == "" {
		return fmt.Errorf("bucket name cannot be empty")
	}
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name '%s' must be between 3 and 63 characters long", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("bucket name '%s' cannot contain adjacent dots", name)
	}
	if !isAlnum(name[0]) || !isAlnum(name[len(name)-1]) {
		return fmt.Errorf("bucket name '%s' must begin and end with a lowercase letter or a digit", name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isAlnum(c) && c != '.' && c != '-' {
			return fmt.Errorf("bucket name '%s' contains the invalid character %q", name, rune(c))
		}
	}
	return nil
}

// IsValidName reports whether name satisfies the DNS bucket-name rules
func IsValidName(name string) bool {
	return ValidName(name) == nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// Cache stores whether buckets are known to exist so repeated create
// or exists checks don't hit the service again.
type Cache struct {
	mu     sync.Mutex
	status map[string]bool
}

// NewCache makes a new empty Cache
func NewCache() *Cache {
	return &Cache{
		status: make(map[string]bool, 1),
	}
}

// MarkOK marks the bucket as existing
func (c *Cache) MarkOK(bucket string) {
	if bucket == "" {
		return
	}
	c.mu.Lock()
	c.status[bucket] = true
	c.mu.Unlock()
}

// MarkDeleted marks the bucket as deleted
func (c *Cache) MarkDeleted(bucket string) {
	if bucket == "" {
		return
	}
	c.mu.Lock()
	c.status[bucket] = false
	c.mu.Unlock()
}

// IsDeleted reports whether the bucket has been deleted through this cache
func (c *Cache) IsDeleted(bucket string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.status[bucket]
	return ok && !status
}

// Create the bucket unless the cache knows it exists already. exists
// is consulted first when supplied; create performs the creation. Both
// may be nil.
func (c *Cache) Create(bucket string, create func() error, exists func() (bool, error)) error {
	// always succeed if the bucket root
	if bucket == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status[bucket] {
		return nil
	}
	if exists != nil {
		found, err := exists()
		if err != nil {
			return err
		}
		if found {
			c.status[bucket] = true
			return nil
		}
	}
	if create != nil {
		if err := create(); err != nil {
			return err
		}
	}
	c.status[bucket] = true
	return nil
}

// Remove the bucket with deleteBucket, recording the deletion on success
func (c *Cache) Remove(bucket string, deleteBucket func() error) error {
	if bucket == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := deleteBucket()
	if err == nil {
		c.status[bucket] = false
	}
	return err
}
