package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/models"
)

// s3API is the subset of the S3 client the adapter uses. Kept as an
// interface so tests can stub it.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures the S3-backed adapter.
type S3Options struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Adapter implements Adapter against an S3-compatible bucket. Object keys
// mirror the logical hierarchy under each tenant's root prefix; folders are
// pure prefixes and renames/moves are server-side copy+delete per object.
type S3Adapter struct {
	client   s3API
	bucket   string
	resolver *Resolver
}

// NewS3Adapter builds an adapter for the configured bucket. The resolver is
// used only for tenant-root confinement of keys; its base path plays no role
// in key construction.
func NewS3Adapter(ctx context.Context, resolver *Resolver, opts S3Options) (*S3Adapter, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.User,
			opts.Password,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Adapter{client: client, bucket: opts.Bucket, resolver: resolver}, nil
}

func (a *S3Adapter) key(tenant models.Tenant, rel string) (string, error) {
	return a.resolver.Within(tenant, rel)
}

func (a *S3Adapter) exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return true, nil
}

func (a *S3Adapter) prefixExists(ctx context.Context, prefix string) (bool, error) {
	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &a.bucket,
		Prefix:  aws.String(prefix + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list %s: %w", prefix, err)
	}
	return len(out.Contents) > 0, nil
}

func (a *S3Adapter) Save(ctx context.Context, tenant models.Tenant, dir string, file *models.IncomingFile) (string, error) {
	name := path.Base(strings.ReplaceAll(file.Name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("file name %q: %w", file.Name, common.ErrorInvalidArgument)
	}

	rel := path.Join(dir, name)
	key, err := a.key(tenant, rel)
	if err != nil {
		return "", err
	}
	taken, err := a.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if taken {
		name = disambiguate(name)
		rel = path.Join(dir, name)
		if key, err = a.key(tenant, rel); err != nil {
			return "", err
		}
	}

	in := &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   file.Content,
	}
	if file.Size > 0 {
		in.ContentLength = aws.Int64(file.Size)
	}
	if file.ContentType != "" {
		in.ContentType = aws.String(file.ContentType)
	}
	if _, err := a.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return rel, nil
}

// CreateFolder writes a zero-byte prefix marker. S3 has no directories, so
// "already existed" means any object lives under the prefix.
func (a *S3Adapter) CreateFolder(ctx context.Context, tenant models.Tenant, rel string) (bool, error) {
	key, err := a.key(tenant, rel)
	if err != nil {
		return false, err
	}
	taken, err := a.prefixExists(ctx, key)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	marker := key + "/"
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &marker,
	}); err != nil {
		return false, fmt.Errorf("put marker %s: %w", marker, err)
	}
	return true, nil
}

func (a *S3Adapter) Rename(ctx context.Context, item *models.Item, newName, currentFolderPath string) (string, error) {
	var srcRel string
	switch item.Type {
	case models.ItemTypeFile:
		srcRel = item.FilePath
		if ext := path.Ext(newName); ext == "" {
			newName += path.Ext(item.FilePath)
		}
	case models.ItemTypeFolder:
		if strings.TrimSpace(currentFolderPath) == "" {
			return "", fmt.Errorf("folder path: %w", common.ErrorInvalidArgument)
		}
		srcRel = currentFolderPath
	default:
		return "", fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}

	newRel := path.Join(TrimLastSegment(srcRel), newName)
	return newRel, a.relocate(ctx, item, srcRel, newRel)
}

func (a *S3Adapter) Move(ctx context.Context, item *models.Item, destinationFolderPath, sourceFolderPath string) (string, error) {
	if strings.TrimSpace(destinationFolderPath) == "" {
		return "", fmt.Errorf("destination path: %w", common.ErrorInvalidArgument)
	}

	var srcRel, newRel string
	switch item.Type {
	case models.ItemTypeFile:
		srcRel = item.FilePath
		newRel = path.Join(destinationFolderPath, path.Base(item.FilePath))
	case models.ItemTypeFolder:
		if strings.TrimSpace(sourceFolderPath) == "" {
			return "", fmt.Errorf("source folder path: %w", common.ErrorInvalidArgument)
		}
		srcRel = sourceFolderPath
		newRel = path.Join(destinationFolderPath, item.Name)
	default:
		return "", fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}

	return newRel, a.relocate(ctx, item, srcRel, newRel)
}

func (a *S3Adapter) relocate(ctx context.Context, item *models.Item, srcRel, dstRel string) error {
	tenant := item.Tenant()
	srcKey, err := a.key(tenant, srcRel)
	if err != nil {
		return err
	}
	dstKey, err := a.key(tenant, dstRel)
	if err != nil {
		return err
	}

	if item.IsFile() {
		taken, err := a.exists(ctx, dstKey)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("destination %s: %w", dstRel, common.ErrorAlreadyExists)
		}
		return a.copyDelete(ctx, srcKey, dstKey, srcRel)
	}

	taken, err := a.prefixExists(ctx, dstKey)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("destination %s: %w", dstRel, common.ErrorAlreadyExists)
	}

	moved := 0
	var token *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &a.bucket,
			Prefix:            aws.String(srcKey + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", srcKey, err)
		}
		for _, obj := range out.Contents {
			newKey := dstKey + strings.TrimPrefix(*obj.Key, srcKey)
			if err := a.copyDelete(ctx, *obj.Key, newKey, srcRel); err != nil {
				return err
			}
			moved++
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	if moved == 0 {
		return fmt.Errorf("source %s: %w", srcRel, common.ErrorNotFound)
	}
	return nil
}

func (a *S3Adapter) copyDelete(ctx context.Context, srcKey, dstKey, srcRel string) error {
	_, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &a.bucket,
		CopySource: aws.String(a.bucket + "/" + srcKey),
		Key:        &dstKey,
	})
	if err != nil {
		var nf *types.NoSuchKey
		if errors.As(err, &nf) {
			return fmt.Errorf("source %s: %w", srcRel, common.ErrorNotFound)
		}
		return fmt.Errorf("copy %s -> %s: %w", srcKey, dstKey, err)
	}
	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &a.bucket,
		Key:    &srcKey,
	}); err != nil {
		return fmt.Errorf("delete %s: %w", srcKey, err)
	}
	return nil
}

// Delete removes the object or everything under the folder prefix. S3
// deletes are idempotent, matching the adapter contract.
func (a *S3Adapter) Delete(ctx context.Context, item *models.Item, folderPath string) error {
	switch item.Type {
	case models.ItemTypeFile:
		if item.FilePath == "" {
			return nil
		}
		key, err := a.key(item.Tenant(), item.FilePath)
		if err != nil {
			return err
		}
		if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &a.bucket,
			Key:    &key,
		}); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	case models.ItemTypeFolder:
		if folderPath == "" {
			return nil
		}
		prefix, err := a.key(item.Tenant(), folderPath)
		if err != nil {
			return err
		}
		return a.deletePrefix(ctx, prefix)
	default:
		return fmt.Errorf("type %q: %w", item.Type, common.ErrorNotSupportedType)
	}
}

func (a *S3Adapter) deletePrefix(ctx context.Context, prefix string) error {
	var token *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &a.bucket,
			Prefix:            aws.String(prefix + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		if len(out.Contents) > 0 {
			objects := make([]types.ObjectIdentifier, 0, len(out.Contents))
			for _, obj := range out.Contents {
				objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: &a.bucket,
				Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			}); err != nil {
				return fmt.Errorf("delete under %s: %w", prefix, err)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return nil
		}
		token = out.NextContinuationToken
	}
}

func (a *S3Adapter) Open(ctx context.Context, tenant models.Tenant, rel string) (io.ReadCloser, error) {
	key, err := a.key(tenant, rel)
	if err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("file %s: %w", rel, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out.Body, nil
}
