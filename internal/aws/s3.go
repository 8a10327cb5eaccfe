// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mrdp/mrdp/internal/log"
)

// Object is a listed S3 key with its size.
type Object struct {
	Key  string
	Size int64
}

// PutBytes uploads body to bucket/key. Empty contentType is left to S3.
func PutBytes(ctx context.Context, api S3API, bucket, key string, body []byte, contentType string, contentEncoding string) error {
	in := &s3v2.PutObjectInput{
		Bucket: awsv2.String(bucket),
		Key:    awsv2.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		in.ContentType = awsv2.String(contentType)
	}
	if contentEncoding != "" {
		in.ContentEncoding = awsv2.String(contentEncoding)
	}
	if _, err := api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, err)
	}
	log.Debugf("s3 put: bucket=%s key=%s bytes=%d", bucket, key, len(body))
	return nil
}

// PutReader streams size bytes from body to bucket/key.
func PutReader(ctx context.Context, api S3API, bucket, key string, body io.ReadSeeker, size int64, contentType string, contentEncoding string) error {
	in := &s3v2.PutObjectInput{
		Bucket:        awsv2.String(bucket),
		Key:           awsv2.String(key),
		Body:          body,
		ContentLength: awsv2.Int64(size),
	}
	if contentType != "" {
		in.ContentType = awsv2.String(contentType)
	}
	if contentEncoding != "" {
		in.ContentEncoding = awsv2.String(contentEncoding)
	}
	if _, err := api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, err)
	}
	log.Debugf("s3 put: bucket=%s key=%s bytes=%d", bucket, key, size)
	return nil
}

// GetBytes downloads bucket/key fully into memory.
func GetBytes(ctx context.Context, api S3API, bucket, key string) ([]byte, error) {
	out, err := api.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return b, nil
}

// ListObjects walks every page under prefix and returns the objects whose
// key passes keep. A nil keep accepts everything. limit <= 0 means no limit.
func ListObjects(ctx context.Context, api S3API, bucket, prefix string, limit int, keep func(string) bool) ([]Object, error) {
	p := s3v2.NewListObjectsV2Paginator(api, &s3v2.ListObjectsV2Input{
		Bucket: awsv2.String(bucket),
		Prefix: awsv2.String(prefix),
	})

	var objs []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, o := range page.Contents {
			key := awsv2.ToString(o.Key)
			if keep != nil && !keep(key) {
				continue
			}
			objs = append(objs, Object{Key: key, Size: awsv2.ToInt64(o.Size)})
			if limit > 0 && len(objs) >= limit {
				return objs, nil
			}
		}
	}
	return objs, nil
}

// S3URI renders the s3:// form used by Redshift COPY.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ObjectURL renders the virtual-hosted https URL CloudFormation accepts as a
// TemplateURL.
func ObjectURL(region, bucket, key string) string {
	host := bucket + ".s3.amazonaws.com"
	if region != "" && region != "us-east-1" {
		host = bucket + ".s3." + region + ".amazonaws.com"
	}
	u := url.URL{Scheme: "https", Host: host, Path: "/" + strings.TrimPrefix(key, "/")}
	return u.String()
}
