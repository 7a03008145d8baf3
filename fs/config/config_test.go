package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objfs/s3fs/fs"
)

func TestDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultMaxFragmentSize, c.MaxFragmentSize())
	assert.Equal(t, DefaultMaxFragmentNumber, c.MaxFragmentNumber())
	assert.Equal(t, "https", c.EndpointProtocol())
	assert.Equal(t, "", c.Endpoint())
	assert.Equal(t, "", c.Region())
	assert.True(t, c.ForcePathStyle())
	_, ok := c.Credentials()
	assert.False(t, ok)
}

func TestSettersReturnSameInstance(t *testing.T) {
	c := New()
	c2, err := c.WithRegion("eu-central-1")
	require.NoError(t, err)
	assert.Same(t, c, c2)
	c3, err := c2.WithEndpoint("minio.local:9000")
	require.NoError(t, err)
	assert.Same(t, c, c3)
	assert.Equal(t, "eu-central-1", c.Region())
	assert.Equal(t, "minio.local:9000", c.Endpoint())
}

func TestPrecedenceEnvThenProperty(t *testing.T) {
	// environment below properties below the construction map
	t.Setenv("S3_SPI_ENDPOINT_PROTOCOL", "http")
	c := New()
	assert.Equal(t, "http", c.EndpointProtocol())

	SetProperty(PropertyEndpointProtocol, "https")
	defer ClearProperty(PropertyEndpointProtocol)
	c = New()
	assert.Equal(t, "https", c.EndpointProtocol())
}

func TestPrecedenceMapOverProperty(t *testing.T) {
	SetProperty(PropertyRegion, "us-east-1")
	defer ClearProperty(PropertyRegion)
	c := NewFromMap(map[string]string{PropertyRegion: "eu-west-2"})
	assert.Equal(t, "eu-west-2", c.Region())
}

func TestPrecedenceSetterWinsOverEverything(t *testing.T) {
	t.Setenv("S3_SPI_ENDPOINT", "env.example.com")
	SetProperty(PropertyEndpoint, "prop.example.com")
	defer ClearProperty(PropertyEndpoint)
	c := NewFromMap(map[string]string{PropertyEndpoint: "map.example.com"})
	assert.Equal(t, "map.example.com", c.Endpoint())
	_, err := c.WithEndpoint("set.example.com")
	require.NoError(t, err)
	assert.Equal(t, "set.example.com", c.Endpoint())
}

func TestInvalidEndpoint(t *testing.T) {
	c := New()
	_, err := c.WithEndpoint("wrongport.somewhere.com:aabbcc")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrorInvalidArgument)
	assert.Contains(t, err.Error(), "endpoint 'wrongport.somewhere.com:aabbcc' does not match format host:port where port is a number")

	_, err = c.WithEndpoint("fine.somewhere.com:2020")
	assert.NoError(t, err)
	_, err = c.WithEndpoint("justahost")
	assert.NoError(t, err)
}

func TestInvalidProtocol(t *testing.T) {
	c := New()
	_, err := c.WithEndpointProtocol("gopher")
	assert.ErrorIs(t, err, fs.ErrorInvalidArgument)
	_, err = c.WithEndpointProtocol("http")
	assert.NoError(t, err)
}

func TestFragmentSettings(t *testing.T) {
	c := New()
	_, err := c.WithMaxFragmentSize(0)
	assert.ErrorIs(t, err, fs.ErrorInvalidArgument)
	_, err = c.WithMaxFragmentNumber(-1)
	assert.ErrorIs(t, err, fs.ErrorInvalidArgument)
	_, err = c.WithMaxFragmentSize(1024)
	require.NoError(t, err)
	_, err = c.WithMaxFragmentNumber(2)
	require.NoError(t, err)
	assert.Equal(t, 1024, c.MaxFragmentSize())
	assert.Equal(t, 2, c.MaxFragmentNumber())
}

func TestInvalidNumericFallsBackSilently(t *testing.T) {
	c := NewFromMap(map[string]string{
		PropertyReadMaxFragmentSize:   "not-a-number",
		PropertyReadMaxFragmentNumber: "-5",
	})
	assert.Equal(t, DefaultMaxFragmentSize, c.MaxFragmentSize())
	assert.Equal(t, DefaultMaxFragmentNumber, c.MaxFragmentNumber())
}

func TestCredentials(t *testing.T) {
	c := New()
	_, err := c.WithCredentials("akey", "asecret")
	require.NoError(t, err)
	creds, ok := c.Credentials()
	require.True(t, ok)
	assert.Equal(t, "akey", creds.AccessKey)
	assert.Equal(t, "asecret", creds.SecretKey)

	// a blank secret with a non-blank access key is invalid
	_, err = c.WithCredentials("akey", "")
	assert.ErrorIs(t, err, fs.ErrorInvalidArgument)

	// a blank access key clears the pair
	_, err = c.WithCredentials("", "")
	require.NoError(t, err)
	_, ok = c.Credentials()
	assert.False(t, ok)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "envkey")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "envsecret")
	c := New()
	creds, ok := c.Credentials()
	require.True(t, ok)
	assert.Equal(t, "envkey", creds.AccessKey)
	assert.Equal(t, "envsecret", creds.SecretKey)
}

func TestBucketName(t *testing.T) {
	c := New()
	_, err := c.WithBucketName("Valid-Not")
	assert.ErrorIs(t, err, fs.ErrorInvalidArgument)
	_, err = c.WithBucketName("my-bucket.prod")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket.prod", c.BucketName())
}

func TestClearBySettingBlank(t *testing.T) {
	t.Setenv("S3_SPI_ENDPOINT", "env.example.com")
	c := New()
	_, err := c.WithEndpoint("explicit.example.com")
	require.NoError(t, err)
	assert.Equal(t, "explicit.example.com", c.Endpoint())
	// clearing the setter exposes the environment again
	_, err = c.WithEndpoint("  ")
	require.NoError(t, err)
	assert.Equal(t, "env.example.com", c.Endpoint())
}

func TestEndpointURI(t *testing.T) {
	c := New()
	assert.Equal(t, "", c.EndpointURI())
	_, err := c.WithEndpoint("minio.local:9000")
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local:9000", c.EndpointURI())
	_, err = c.WithEndpointProtocol("http")
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local:9000", c.EndpointURI())
}

func TestPropertyToEnv(t *testing.T) {
	for _, test := range []struct {
		in   string
		want string
	}{
		{in: "foo.baa.fizz-buzz", want: "FOO_BAA_FIZZ_BUZZ"},
		{in: "s3.spi.endpoint-protocol", want: "S3_SPI_ENDPOINT_PROTOCOL"},
		{in: "aws.region", want: "AWS_REGION"},
		{in: "", want: ""},
		{in: "   ", want: ""},
	} {
		assert.Equal(t, test.want, PropertyToEnv(test.in), test.in)
	}
}

func TestForcePathStyle(t *testing.T) {
	c := NewFromMap(map[string]string{PropertyForcePathStyle: "false"})
	assert.False(t, c.ForcePathStyle())
	c = NewFromMap(map[string]string{PropertyForcePathStyle: "nonsense"})
	assert.True(t, c.ForcePathStyle())
	c = New()
	_, err := c.WithForcePathStyle(false)
	require.NoError(t, err)
	assert.False(t, c.ForcePathStyle())
}
