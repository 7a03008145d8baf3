package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/objfs/s3fs/fs"
	"github.com/objfs/s3fs/fs/config"
	"github.com/objfs/s3fs/fs/fserrors"
	"github.com/objfs/s3fs/lib/pacer"
)

// CompletedPart identifies one uploaded part of a multipart upload
type CompletedPart struct {
	PartNumber int64
	ETag       string
}

// Client is the thin asynchronous-friendly wrapper around the object
// service. Every method but Close takes a context and performs exactly
// one logical remote call. backend tests substitute an in-memory fake.
type Client interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket, locationConstraint string) error
	Head(ctx context.Context, bucket, key string) (*fs.ObjectInfo, error)
	GetRange(ctx context.Context, bucket, key string, offset, length int64) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64, contentType string, metadata map[string]string) error
	Delete(ctx context.Context, bucket, key string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	ListPage(ctx context.Context, bucket, prefix, delimiter, token string) (*fs.Page, error)
	CreateMultipart(ctx context.Context, bucket, key, contentType string, metadata map[string]string) (uploadID string, err error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int64, body io.ReadSeeker) (etag string, err error)
	CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) error
	AbortMultipart(ctx context.Context, bucket, key, uploadID string) error
	Close() error
}

// retryErrorCodes is a slice of error codes that we will retry
var retryErrorCodes = []int{
	429, // Too Many Requests
	500, // Internal Server Error
	503, // Service Unavailable/Slow Down
}

const (
	minSleep = 10 * time.Millisecond
	maxSleep = 2 * time.Second
)

// awsClient implements Client over the AWS SDK
type awsClient struct {
	c     *s3.S3
	pacer *pacer.Pacer
}

// newAWSClient builds the SDK client from the configuration's
// endpoint, protocol, region, credentials and addressing style.
func newAWSClient(cfg *config.Configuration) (Client, error) {
	awsConfig := aws.NewConfig()
	if region := cfg.Region(); region != "" {
		awsConfig = awsConfig.WithRegion(region)
	}
	if endpoint := cfg.EndpointURI(); endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(endpoint)
	}
	if creds, ok := cfg.Credentials(); ok {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(creds.AccessKey, creds.SecretKey, ""))
	}
	awsConfig = awsConfig.WithS3ForcePathStyle(cfg.ForcePathStyle())
	ses, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &awsClient{
		c:     s3.New(ses),
		pacer: pacer.New(pacer.MinSleep(minSleep), pacer.MaxSleep(maxSleep)),
	}, nil
}

// shouldRetry decides whether err is worth another attempt
func shouldRetry(ctx context.Context, err error) (bool, error) {
	if fserrors.ContextError(ctx, &err) {
		return false, err
	}
	if awsError, ok := err.(awserr.Error); ok {
		if fserrors.ShouldRetry(awsError.OrigErr()) {
			return true, err
		}
		if awsError.Code() == "RequestTimeout" {
			return true, err
		}
		if reqErr, ok := err.(awserr.RequestFailure); ok {
			for _, e := range retryErrorCodes {
				if reqErr.StatusCode() == e {
					return true, err
				}
			}
		}
	}
	return fserrors.ShouldRetry(err), err
}

// isNotFound reports whether err is the service's 404
func isNotFound(err error) bool {
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		return reqErr.StatusCode() == http.StatusNotFound
	}
	if awsErr, ok := err.(awserr.Error); ok {
		return awsErr.Code() == s3.ErrCodeNoSuchKey || awsErr.Code() == s3.ErrCodeNoSuchBucket || awsErr.Code() == "NotFound"
	}
	return false
}

func (c *awsClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	req := s3.HeadBucketInput{
		Bucket: &bucketName,
	}
	err := c.pacer.Call(func() (bool, error) {
		_, err := c.c.HeadBucketWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *awsClient) CreateBucket(ctx context.Context, bucketName, locationConstraint string) error {
	req := s3.CreateBucketInput{
		Bucket: &bucketName,
	}
	if locationConstraint != "" {
		req.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: &locationConstraint,
		}
	}
	err := c.pacer.Call(func() (bool, error) {
		_, err := c.c.CreateBucketWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if awsErr, ok := err.(awserr.Error); ok {
		if awsErr.Code() == "BucketAlreadyOwnedByYou" {
			err = nil
		}
	}
	return err
}

func (c *awsClient) Head(ctx context.Context, bucketName, key string) (*fs.ObjectInfo, error) {
	req := s3.HeadObjectInput{
		Bucket: &bucketName,
		Key:    &key,
	}
	var resp *s3.HeadObjectOutput
	err := c.pacer.Call(func() (bool, error) {
		var err error
		resp, err = c.c.HeadObjectWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("'%s': %w", key, fs.ErrorObjectNotFound)
		}
		return nil, err
	}
	info := &fs.ObjectInfo{
		Key:         key,
		ETag:        aws.StringValue(resp.ETag),
		ContentType: aws.StringValue(resp.ContentType),
		Metadata:    make(map[string]string, len(resp.Metadata)),
	}
	// Ignore missing Content-Length assuming it is 0
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	for k, v := range resp.Metadata {
		if v != nil {
			info.Metadata[lower(k)] = *v
		}
	}
	return info, nil
}

func (c *awsClient) GetRange(ctx context.Context, bucketName, key string, offset, length int64) ([]byte, error) {
	byteRange := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	req := s3.GetObjectInput{
		Bucket: &bucketName,
		Key:    &key,
		Range:  &byteRange,
	}
	var resp *s3.GetObjectOutput
	err := c.pacer.Call(func() (bool, error) {
		var err error
		resp, err = c.c.GetObjectWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("'%s': %w", key, fs.ErrorObjectNotFound)
		}
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return io.ReadAll(resp.Body)
}

func (c *awsClient) Put(ctx context.Context, bucketName, key string, body io.ReadSeeker, size int64, contentType string, metadata map[string]string) error {
	req := s3.PutObjectInput{
		Bucket: &bucketName,
		Key:    &key,
		Body:   body,
	}
	if contentType != "" {
		req.ContentType = &contentType
	}
	if len(metadata) > 0 {
		req.Metadata = make(map[string]*string, len(metadata))
		for k, v := range metadata {
			req.Metadata[k] = aws.String(v)
		}
	}
	return c.pacer.Call(func() (bool, error) {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
		_, err := c.c.PutObjectWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
}

func (c *awsClient) Delete(ctx context.Context, bucketName, key string) error {
	req := s3.DeleteObjectInput{
		Bucket: &bucketName,
		Key:    &key,
	}
	return c.pacer.Call(func() (bool, error) {
		_, err := c.c.DeleteObjectWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
}

func (c *awsClient) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	source := pathEscape(srcBucket + "/" + srcKey)
	req := s3.CopyObjectInput{
		Bucket:     &dstBucket,
		Key:        &dstKey,
		CopySource: &source,
	}
	err := c.pacer.Call(func() (bool, error) {
		_, err := c.c.CopyObjectWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if err != nil && isNotFound(err) {
		return fmt.Errorf("'%s': %w", srcKey, fs.ErrorObjectNotFound)
	}
	return err
}

func (c *awsClient) ListPage(ctx context.Context, bucketName, prefix, delimiter, token string) (*fs.Page, error) {
	req := s3.ListObjectsV2Input{
		Bucket:    &bucketName,
		Prefix:    &prefix,
		Delimiter: &delimiter,
	}
	if token != "" {
		req.ContinuationToken = &token
	}
	var resp *s3.ListObjectsV2Output
	err := c.pacer.Call(func() (bool, error) {
		var err error
		resp, err = c.c.ListObjectsV2WithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("bucket '%s': %w", bucketName, fs.ErrorDirNotFound)
		}
		return nil, err
	}
	page := &fs.Page{}
	for _, object := range resp.Contents {
		if object.Key == nil {
			fs.Debugf(nil, "nil key received in listing")
			continue
		}
		info := fs.ObjectInfo{
			Key:  *object.Key,
			ETag: aws.StringValue(object.ETag),
		}
		if object.Size != nil {
			info.Size = *object.Size
		}
		if object.LastModified != nil {
			info.LastModified = *object.LastModified
		}
		page.Objects = append(page.Objects, info)
	}
	for _, commonPrefix := range resp.CommonPrefixes {
		if commonPrefix.Prefix == nil {
			fs.Debugf(nil, "nil common prefix received in listing")
			continue
		}
		page.CommonPrefixes = append(page.CommonPrefixes, *commonPrefix.Prefix)
	}
	if aws.BoolValue(resp.IsTruncated) {
		page.NextToken = aws.StringValue(resp.NextContinuationToken)
	}
	return page, nil
}

func (c *awsClient) CreateMultipart(ctx context.Context, bucketName, key, contentType string, metadata map[string]string) (string, error) {
	req := s3.CreateMultipartUploadInput{
		Bucket: &bucketName,
		Key:    &key,
	}
	if contentType != "" {
		req.ContentType = &contentType
	}
	if len(metadata) > 0 {
		req.Metadata = make(map[string]*string, len(metadata))
		for k, v := range metadata {
			req.Metadata[k] = aws.String(v)
		}
	}
	var resp *s3.CreateMultipartUploadOutput
	err := c.pacer.Call(func() (bool, error) {
		var err error
		resp, err = c.c.CreateMultipartUploadWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(resp.UploadId), nil
}

func (c *awsClient) UploadPart(ctx context.Context, bucketName, key, uploadID string, partNumber int64, body io.ReadSeeker) (string, error) {
	req := s3.UploadPartInput{
		Bucket:     &bucketName,
		Key:        &key,
		UploadId:   &uploadID,
		PartNumber: &partNumber,
		Body:       body,
	}
	var resp *s3.UploadPartOutput
	err := c.pacer.Call(func() (bool, error) {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
		var err error
		resp, err = c.c.UploadPartWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(resp.ETag), nil
}

func (c *awsClient) CompleteMultipart(ctx context.Context, bucketName, key, uploadID string, parts []CompletedPart) error {
	completed := make([]*s3.CompletedPart, len(parts))
	for i, part := range parts {
		completed[i] = &s3.CompletedPart{
			PartNumber: aws.Int64(part.PartNumber),
			ETag:       aws.String(part.ETag),
		}
	}
	req := s3.CompleteMultipartUploadInput{
		Bucket:   &bucketName,
		Key:      &key,
		UploadId: &uploadID,
		MultipartUpload: &s3.CompletedMultipartUpload{
			Parts: completed,
		},
	}
	return c.pacer.Call(func() (bool, error) {
		_, err := c.c.CompleteMultipartUploadWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
}

func (c *awsClient) AbortMultipart(ctx context.Context, bucketName, key, uploadID string) error {
	req := s3.AbortMultipartUploadInput{
		Bucket:   &bucketName,
		Key:      &key,
		UploadId: &uploadID,
	}
	return c.pacer.Call(func() (bool, error) {
		_, err := c.c.AbortMultipartUploadWithContext(ctx, &req)
		return shouldRetry(ctx, err)
	})
}

// Close is a no-op for the SDK client - connections belong to the
// shared transport.
func (c *awsClient) Close() error {
	return nil
}

// pathEscape escapes s as for a URL path, leaving the separators
// alone and also escaping '+' for S3 compatibility
func pathEscape(s string) string {
	segments := strings.Split(s, "/")
	for i, segment := range segments {
		segments[i] = strings.ReplaceAll(url.PathEscape(segment), "+", "%2B")
	}
	return strings.Join(segments, "/")
}

func lower(s string) string {
	return strings.ToLower(s)
}
