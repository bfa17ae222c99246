package persistent

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/repo"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/s3client"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type BlobRepo struct {
	*s3client.S3Client
	bucket string
}

func NewBlobRepo(s3c *s3client.S3Client, bucket string) *BlobRepo {
	return &BlobRepo{s3c, bucket}
}

func (r *BlobRepo) Upload(ctx context.Context, ref repo.BlobRef, data io.Reader, contentType string, size int64) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(ref.Path()),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("BlobRepo - Upload - r.Client.PutObject: %w", err)
	}

	return nil
}

func (r *BlobRepo) Download(ctx context.Context, ref repo.BlobRef) (io.ReadCloser, error) {
	result, err := r.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(ref.Path()),
	})
	if err != nil {
		return nil, fmt.Errorf("BlobRepo - Download - r.Client.GetObject: %w", err)
	}

	return result.Body, nil
}

func (r *BlobRepo) Delete(ctx context.Context, ref repo.BlobRef) error {
	_, err := r.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(ref.Path()),
	})
	if err != nil {
		return fmt.Errorf("BlobRepo - Delete - r.Client.DeleteObject: %w", err)
	}

	return nil
}

func (r *BlobRepo) Copy(ctx context.Context, src, dst repo.BlobRef) error {
	_, err := r.Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(r.bucket),
		CopySource: aws.String(r.bucket + "/" + src.Path()),
		Key:        aws.String(dst.Path()),
	})
	if err != nil {
		return fmt.Errorf("BlobRepo - Copy - r.Client.CopyObject: %w", err)
	}

	return nil
}

// DeleteProject removes every object under the project's prefix, page by page.
func (r *BlobRepo) DeleteProject(ctx context.Context, ownerID, projectID uuid.UUID) error {
	prefix := fmt.Sprintf("%s/%s/", ownerID, projectID)

	var continuation *string
	for {
		page, err := r.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(r.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return fmt.Errorf("BlobRepo - DeleteProject - r.Client.ListObjectsV2: %w", err)
		}

		for _, object := range page.Contents {
			_, err = r.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(r.bucket),
				Key:    object.Key,
			})
			if err != nil {
				return fmt.Errorf("BlobRepo - DeleteProject - r.Client.DeleteObject: %w", err)
			}
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		continuation = page.NextContinuationToken
	}
}

func (r *BlobRepo) PresignGet(ctx context.Context, ref repo.BlobRef, ttl time.Duration) (string, error) {
	url, err := r.S3Client.PresignGet(ctx, r.bucket, ref.Path(), ttl)
	if err != nil {
		return "", fmt.Errorf("BlobRepo - PresignGet: %w", err)
	}

	return url, nil
}

func (r *BlobRepo) PresignPut(ctx context.Context, ref repo.BlobRef, ttl time.Duration) (string, error) {
	url, err := r.S3Client.PresignPut(ctx, r.bucket, ref.Path(), ttl)
	if err != nil {
		return "", fmt.Errorf("BlobRepo - PresignPut: %w", err)
	}

	return url, nil
}
