// Package config resolves the adapter's tunables from explicit
// setters, a construction options map, process properties and the
// environment, in that order of precedence, and validates them.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/lib/bucket"
)

// The dotted property names
const (
	PropertyReadMaxFragmentSize   = "s3.spi.read.max-fragment-size"
	PropertyReadMaxFragmentNumber = "s3.spi.read.max-fragment-number"
	PropertyEndpoint              = "s3.spi.endpoint"
	PropertyEndpointProtocol      = "s3.spi.endpoint-protocol"
	PropertyForcePathStyle        = "s3.spi.force-path-style"
	PropertyBucketName            = "s3.spi.bucket-name"
	PropertyLocationConstraint    = "s3.spi.location-constraint"
	PropertyRegion                = "aws.region"
	PropertyAccessKey             = "aws.access-key"
	PropertyAccessKeyID           = "aws.accessKeyId"
	PropertySecretKey             = "aws.secret-access-key"
	PropertySecretAccessKey       = "aws.secretAccessKey"
)

// The defaults
const (
	DefaultMaxFragmentSize   = 5 * 1024 * 1024
	DefaultMaxFragmentNumber = 50
	DefaultEndpointProtocol  = "https"
	DefaultForcePathStyle    = true
)

// endpointRe matches "host" or "host:port" with a numeric port
var endpointRe = regexp.MustCompile(`^[\w.\-]+(:\d+)?$`)

// Credentials is an access-key / secret-key pair
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Configuration resolves option values. Reads walk the precedence
// chain: explicit setter, construction map, process property,
// environment, default. Zero or more fluent With setters may be
// chained - each returns the same instance.
//
// A Configuration is effectively immutable once bound to a filesystem.
type Configuration struct {
	set     Simple
	getters []Getter
}

// New makes a Configuration backed by the process properties and the
// environment only.
func New() *Configuration {
	return NewFromMap(nil)
}

// NewFromMap makes a Configuration layering m below any explicit
// setters and above the process properties and environment.
func NewFromMap(m map[string]string) *Configuration {
	c := &Configuration{set: Simple{}}
	c.getters = append(c.getters, c.set)
	if len(m) > 0 {
		c.getters = append(c.getters, Simple(m))
	}
	c.getters = append(c.getters, propertyGetter{}, envGetter{})
	return c
}

// get walks the precedence chain
func (c *Configuration) get(key string) (string, bool) {
	for _, g := range c.getters {
		if value, ok := g.Get(key); ok {
			return value, true
		}
	}
	return "", false
}

// getFirst walks the chain for each key in turn
func (c *Configuration) getFirst(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := c.get(key); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

// intOr parses the value of key falling back to def on absence, any
// parse failure or a value below one. Invalid numerics never fail -
// they fall back silently, with a debug log only.
func (c *Configuration) intOr(key string, def int) int {
	value, ok := c.get(key)
	if !ok || value == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		fs.Debugf(nil, "ignoring invalid value %q for %s, using %d", value, key, def)
		return def
	}
	return n
}

// MaxFragmentSize returns the size of each read-ahead fragment in bytes
func (c *Configuration) MaxFragmentSize() int {
	return c.intOr(PropertyReadMaxFragmentSize, DefaultMaxFragmentSize)
}

// MaxFragmentNumber returns the number of fragments held in a
// read-ahead window
func (c *Configuration) MaxFragmentNumber() int {
	return c.intOr(PropertyReadMaxFragmentNumber, DefaultMaxFragmentNumber)
}

// EndpointProtocol returns "http" or "https"
func (c *Configuration) EndpointProtocol() string {
	value, ok := c.get(PropertyEndpointProtocol)
	if !ok || value == "" {
		return DefaultEndpointProtocol
	}
	return value
}

// Endpoint returns the endpoint override as "host" or "host:port", or
// "" for the SDK default
func (c *Configuration) Endpoint() string {
	value, _ := c.get(PropertyEndpoint)
	return value
}

// EndpointURI builds the full endpoint override, or "" when there is none
func (c *Configuration) EndpointURI() string {
	endpoint := c.Endpoint()
	if endpoint == "" {
		return ""
	}
	return c.EndpointProtocol() + "://" + endpoint
}

// Region returns the region, or ""
func (c *Configuration) Region() string {
	value, _ := c.getFirst(PropertyRegion)
	return value
}

// BucketName returns the bucket bound to this configuration, or ""
func (c *Configuration) BucketName() string {
	value, _ := c.get(PropertyBucketName)
	return value
}

// LocationConstraint returns the constraint used on bucket creation, or ""
func (c *Configuration) LocationConstraint() string {
	value, _ := c.get(PropertyLocationConstraint)
	return value
}

// ForcePathStyle reports whether path-style addressing is forced
func (c *Configuration) ForcePathStyle() bool {
	value, ok := c.get(PropertyForcePathStyle)
	if !ok || value == "" {
		return DefaultForcePathStyle
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		fs.Debugf(nil, "ignoring invalid value %q for %s", value, PropertyForcePathStyle)
		return DefaultForcePathStyle
	}
	return b
}

// Credentials returns the access-key / secret-key pair, and whether
// both halves are present.
func (c *Configuration) Credentials() (*Credentials, bool) {
	access, okA := c.getFirst(PropertyAccessKey, PropertyAccessKeyID)
	if !okA {
		access, okA = lookupEnvAny("AWS_ACCESS_KEY_ID")
	}
	secret, okS := c.getFirst(PropertySecretKey, PropertySecretAccessKey)
	if !okS {
		secret, okS = lookupEnvAny("AWS_SECRET_ACCESS_KEY")
	}
	if !okA || !okS || access == "" || secret == "" {
		return nil, false
	}
	return &Credentials{AccessKey: access, SecretKey: secret}, true
}

// WithMaxFragmentSize sets the read fragment size in bytes
func (c *Configuration) WithMaxFragmentSize(n int) (*Configuration, error) {
	if n <= 0 {
		return nil, fmt.Errorf("max fragment size %d must be positive: %w", n, fs.ErrorInvalidArgument)
	}
	c.set.Set(PropertyReadMaxFragmentSize, strconv.Itoa(n))
	return c, nil
}

// WithMaxFragmentNumber sets the read-ahead window size in fragments
func (c *Configuration) WithMaxFragmentNumber(n int) (*Configuration, error) {
	if n <= 0 {
		return nil, fmt.Errorf("max fragment number %d must be positive: %w", n, fs.ErrorInvalidArgument)
	}
	c.set.Set(PropertyReadMaxFragmentNumber, strconv.Itoa(n))
	return c, nil
}

// WithEndpointProtocol sets the protocol used when building the
// endpoint override. Blank clears it back to the default.
func (c *Configuration) WithEndpointProtocol(protocol string) (*Configuration, error) {
	protocol = strings.TrimSpace(protocol)
	if protocol == "" {
		delete(c.set, PropertyEndpointProtocol)
		return c, nil
	}
	if protocol != "http" && protocol != "https" {
		return nil, fmt.Errorf("endpoint protocol '%s' must be 'http' or 'https': %w", protocol, fs.ErrorInvalidArgument)
	}
	c.set.Set(PropertyEndpointProtocol, protocol)
	return c, nil
}

// WithEndpoint sets the endpoint override. Blank clears it.
func (c *Configuration) WithEndpoint(endpoint string) (*Configuration, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		delete(c.set, PropertyEndpoint)
		return c, nil
	}
	if !endpointRe.MatchString(endpoint) {
		return nil, fmt.Errorf("endpoint '%s' does not match format host:port where port is a number: %w", endpoint, fs.ErrorInvalidArgument)
	}
	c.set.Set(PropertyEndpoint, endpoint)
	return c, nil
}

// WithRegion sets the region. Blank clears it.
func (c *Configuration) WithRegion(region string) (*Configuration, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		delete(c.set, PropertyRegion)
		return c, nil
	}
	c.set.Set(PropertyRegion, region)
	return c, nil
}

// WithBucketName sets and validates the bucket name. Blank clears it.
func (c *Configuration) WithBucketName(name string) (*Configuration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		delete(c.set, PropertyBucketName)
		return c, nil
	}
	if err := bucket.ValidName(name); err != nil {
		return nil, fmt.Errorf("%v: %w", err, fs.ErrorInvalidArgument)
	}
	c.set.Set(PropertyBucketName, name)
	return c, nil
}

// WithCredentials sets the access-key / secret-key pair. A blank
// access key clears both; a blank secret with a non-blank access key
// is an error.
func (c *Configuration) WithCredentials(accessKey, secretKey string) (*Configuration, error) {
	accessKey = strings.TrimSpace(accessKey)
	secretKey = strings.TrimSpace(secretKey)
	if accessKey == "" {
		delete(c.set, PropertyAccessKey)
		delete(c.set, PropertySecretKey)
		return c, nil
	}
	if secretKey == "" {
		return nil, fmt.Errorf("secret-key must be supplied with access-key: %w", fs.ErrorInvalidArgument)
	}
	c.set.Set(PropertyAccessKey, accessKey)
	c.set.Set(PropertySecretKey, secretKey)
	return c, nil
}

// WithForcePathStyle sets path-style vs virtual-host addressing
func (c *Configuration) WithForcePathStyle(force bool) (*Configuration, error) {
	c.set.Set(PropertyForcePathStyle, strconv.FormatBool(force))
	return c, nil
}

// WithLocationConstraint sets the constraint applied on bucket
// creation. Blank clears it.
func (c *Configuration) WithLocationConstraint(constraint string) (*Configuration, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		delete(c.set, PropertyLocationConstraint)
		return c, nil
	}
	c.set.Set(PropertyLocationConstraint, constraint)
	return c, nil
}

// PropertyToEnv converts a dotted property name to its environment
// variable: uppercase with dots and dashes becoming underscores.
// Blank input converts to "".
func PropertyToEnv(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.ToUpper(name)
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
