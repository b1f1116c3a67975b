// Package s3driver stores chunks and merged files in an S3-compatible bucket.
package s3driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/DanikLP1/chunk-upload-service/internal/storage"
)

type Params struct {
	Bucket          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	// Prefix is prepended to every key inside the bucket.
	Prefix string
}

// API is the part of *s3.Client the driver calls.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type Driver struct {
	client   API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func New(ctx context.Context, p Params) (*Driver, error) {
	if p.Bucket == "" {
		return nil, fmt.Errorf("s3driver: bucket must not be empty")
	}
	if p.Region == "" {
		return nil, fmt.Errorf("s3driver: region must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(p.Region),
	}
	if p.AccessKeyID != "" && p.SecretAccessKey != "" {
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(p.AccessKeyID, p.SecretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3driver: load config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if p.Endpoint != "" {
			o.BaseEndpoint = aws.String(p.Endpoint)
		}
		o.UsePathStyle = p.PathStyle
	})
	return NewWithClient(client, p.Bucket, p.Prefix), nil
}

func NewWithClient(client API, bucket, prefix string) *Driver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Driver{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (d *Driver) Name() string { return "s3" }

func (d *Driver) objectKey(key string) string { return d.prefix + key }

func (d *Driver) storageKey(objectKey string) string {
	return strings.TrimPrefix(objectKey, d.prefix)
}

type writeSession struct {
	pw   *io.PipeWriter
	done chan error
}

// BeginWrite streams the object through the multipart upload manager. With
// NoOverwrite the existence check happens up front; S3 offers no atomic
// create-if-absent here, so a concurrent writer can still slip in between.
func (d *Driver) BeginWrite(ctx context.Context, key string, opts storage.PutOpts) (storage.WriteSession, error) {
	if opts.NoOverwrite {
		_, ok, err := d.Stat(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, storage.ErrExists
		}
	}

	pr, pw := io.Pipe()
	ws := &writeSession{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := d.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(d.bucket),
			Key:    aws.String(d.objectKey(key)),
			Body:   pr,
		})
		_ = pr.CloseWithError(err)
		ws.done <- err
	}()
	return ws, nil
}

func (ws *writeSession) Writer() io.Writer { return ws.pw }

func (ws *writeSession) Commit(ctx context.Context) error {
	_ = ws.pw.Close()
	select {
	case err := <-ws.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ws *writeSession) Abort(ctx context.Context) error {
	_ = ws.pw.CloseWithError(errors.New("s3driver: write aborted"))
	<-ws.done
	return nil
}

func (d *Driver) ReadAt(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
	}
	switch {
	case n == 0:
		return io.NopCloser(strings.NewReader("")), nil
	case n > 0:
		in.Range = aws.String(fmt.Sprintf("bytes=%d-%d", off, off+n-1))
	case off > 0:
		in.Range = aws.String(fmt.Sprintf("bytes=%d-", off))
	}
	out, err := d.client.GetObject(ctx, in)
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3driver: get %s: %w", key, err)
	}
	return out.Body, nil
}

func (d *Driver) Stat(ctx context.Context, key string) (storage.ObjectInfo, bool, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return storage.ObjectInfo{}, false, nil
		}
		return storage.ObjectInfo{}, false, fmt.Errorf("s3driver: head %s: %w", key, err)
	}
	info := storage.ObjectInfo{Key: key, Size: aws.ToInt64(out.ContentLength)}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, true, nil
}

func (d *Driver) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	err := d.eachPage(ctx, prefix, func(objs []types.Object) error {
		for _, o := range objs {
			info := storage.ObjectInfo{Key: d.storageKey(aws.ToString(o.Key)), Size: aws.ToInt64(o.Size)}
			if o.LastModified != nil {
				info.ModTime = *o.LastModified
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (d *Driver) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3driver: delete %s: %w", key, err)
	}
	return nil
}

func (d *Driver) DeletePrefix(ctx context.Context, prefix string) error {
	return d.eachPage(ctx, prefix, func(objs []types.Object) error {
		if len(objs) == 0 {
			return nil
		}
		ids := make([]types.ObjectIdentifier, 0, len(objs))
		for _, o := range objs {
			ids = append(ids, types.ObjectIdentifier{Key: o.Key})
		}
		_, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(d.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3driver: delete objects: %w", err)
		}
		return nil
	})
}

func (d *Driver) eachPage(ctx context.Context, prefix string, fn func([]types.Object) error) error {
	p := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(d.objectKey(prefix)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3driver: list %s: %w", prefix, err)
		}
		if err := fn(page.Contents); err != nil {
			return err
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey")
}
