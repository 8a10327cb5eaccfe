// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package awstest provides in-memory fakes of the narrow AWS client
// interfaces for use in tests.
package awstest

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smv2 "github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/mrdp/mrdp/internal/aws"
)

var (
	_ aws.S3API      = (*S3)(nil)
	_ aws.SecretsAPI = (*Secrets)(nil)
)

// S3 is a concurrency-safe in-memory bucket store. Listings return PageSize
// keys per page.
type S3 struct {
	mu       sync.Mutex
	Objects  map[string][]byte // "bucket/key" -> body
	Meta     map[string]*s3v2.PutObjectInput
	PutErr   error
	GetErr   map[string]error // "bucket/key" -> error
	PageSize int
}

// NewS3 returns an empty fake.
func NewS3() *S3 {
	return &S3{
		Objects:  map[string][]byte{},
		Meta:     map[string]*s3v2.PutObjectInput{},
		GetErr:   map[string]error{},
		PageSize: 1000,
	}
}

func path(bucket, key string) string {
	return bucket + "/" + key
}

// Put seeds an object.
func (f *S3) Put(bucket, key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[path(bucket, key)] = body
}

// Get returns a stored object body.
func (f *S3) Get(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Objects[path(bucket, key)]
	return b, ok
}

// Keys returns the sorted keys stored in bucket under prefix.
func (f *S3) Keys(bucket, prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for p := range f.Objects {
		b, k, _ := strings.Cut(p, "/")
		if b == bucket && strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (f *S3) PutObject(_ context.Context, in *s3v2.PutObjectInput, _ ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error) {
	if f.PutErr != nil {
		return nil, f.PutErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := path(awsv2.ToString(in.Bucket), awsv2.ToString(in.Key))
	f.Objects[p] = b
	f.Meta[p] = in
	return &s3v2.PutObjectOutput{}, nil
}

func (f *S3) GetObject(_ context.Context, in *s3v2.GetObjectInput, _ ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := path(awsv2.ToString(in.Bucket), awsv2.ToString(in.Key))
	if err := f.GetErr[p]; err != nil {
		return nil, err
	}
	b, ok := f.Objects[p]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: awsv2.String(p)}
	}
	return &s3v2.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(b))),
		ContentLength: awsv2.Int64(int64(len(b))),
	}, nil
}

func (f *S3) ListObjectsV2(_ context.Context, in *s3v2.ListObjectsV2Input, _ ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error) {
	keys := f.Keys(awsv2.ToString(in.Bucket), awsv2.ToString(in.Prefix))

	start := 0
	if tok := awsv2.ToString(in.ContinuationToken); tok != "" {
		start = sort.SearchStrings(keys, tok)
	}
	size := f.PageSize
	if size <= 0 {
		size = 1000
	}
	end := min(start+size, len(keys))

	out := &s3v2.ListObjectsV2Output{KeyCount: awsv2.Int32(int32(end - start))}
	f.mu.Lock()
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{
			Key:  awsv2.String(k),
			Size: awsv2.Int64(int64(len(f.Objects[path(awsv2.ToString(in.Bucket), k)]))),
		})
	}
	f.mu.Unlock()
	if end < len(keys) {
		out.IsTruncated = awsv2.Bool(true)
		out.NextContinuationToken = awsv2.String(keys[end])
	}
	return out, nil
}

// Secrets serves fixed secret strings by id.
type Secrets struct {
	Values map[string]string
}

func (f *Secrets) GetSecretValue(_ context.Context, in *smv2.GetSecretValueInput, _ ...func(*smv2.Options)) (*smv2.GetSecretValueOutput, error) {
	id := awsv2.ToString(in.SecretId)
	v, ok := f.Values[id]
	if !ok {
		return nil, &smNotFound{id: id}
	}
	return &smv2.GetSecretValueOutput{ARN: in.SecretId, SecretString: awsv2.String(v)}, nil
}

type smNotFound struct{ id string }

func (e *smNotFound) Error() string { return "secret not found: " + e.id }
