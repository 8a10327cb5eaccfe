// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

//go:build integration
// +build integration

package aws

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegration_S3RoundTrip exercises PutBytes, GetBytes and ListObjects
// against a throwaway bucket. Requires working AWS credentials.
func TestIntegration_S3RoundTrip(t *testing.T) {
	ctx := context.Background()

	cfg, err := LoadAWSConfig(ctx, WithRegion("us-east-1"))
	require.NoError(t, err)
	client := NewS3(cfg)

	bucket := fmt.Sprintf("mrdp-it-%d", time.Now().UnixNano())
	_, err = client.CreateBucket(ctx, &s3v2.CreateBucketInput{Bucket: awsv2.String(bucket)})
	require.NoError(t, err)
	defer func() {
		for _, k := range []string{"telemetry/p1/a.json", "telemetry/p1/b.txt"} {
			_, _ = client.DeleteObject(ctx, &s3v2.DeleteObjectInput{Bucket: awsv2.String(bucket), Key: awsv2.String(k)})
		}
		_, _ = client.DeleteBucket(ctx, &s3v2.DeleteBucketInput{Bucket: awsv2.String(bucket)})
	}()

	require.NoError(t, PutBytes(ctx, client, bucket, "telemetry/p1/a.json", []byte(`{"procedure_id":"p1"}`), "application/json", ""))
	require.NoError(t, PutBytes(ctx, client, bucket, "telemetry/p1/b.txt", []byte("x"), "", ""))

	b, err := GetBytes(ctx, client, bucket, "telemetry/p1/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"procedure_id":"p1"}`, string(b))

	objs, err := ListObjects(ctx, client, bucket, "telemetry/", 0, func(k string) bool {
		return strings.HasSuffix(k, ".json")
	})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "telemetry/p1/a.json", objs[0].Key)
}
