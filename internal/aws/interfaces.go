// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"

	cfnv2 "github.com/aws/aws-sdk-go-v2/service/cloudformation"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	smv2 "github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// S3API is the subset of S3 used for raw telemetry, ETL staging and
// template uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3v2.ListObjectsV2Input, optFns ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
}

// CloudFormationAPI is the subset of CloudFormation used to drive the
// provisioning pipeline.
type CloudFormationAPI interface {
	CreateStack(ctx context.Context, params *cfnv2.CreateStackInput, optFns ...func(*cfnv2.Options)) (*cfnv2.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cfnv2.UpdateStackInput, optFns ...func(*cfnv2.Options)) (*cfnv2.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cfnv2.DeleteStackInput, optFns ...func(*cfnv2.Options)) (*cfnv2.DeleteStackOutput, error)
	DescribeStacks(ctx context.Context, params *cfnv2.DescribeStacksInput, optFns ...func(*cfnv2.Options)) (*cfnv2.DescribeStacksOutput, error)
	DescribeStackEvents(ctx context.Context, params *cfnv2.DescribeStackEventsInput, optFns ...func(*cfnv2.Options)) (*cfnv2.DescribeStackEventsOutput, error)
	GetTemplate(ctx context.Context, params *cfnv2.GetTemplateInput, optFns ...func(*cfnv2.Options)) (*cfnv2.GetTemplateOutput, error)
}

// SecretsAPI is the subset of Secrets Manager used to resolve database
// passwords.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *smv2.GetSecretValueInput, optFns ...func(*smv2.Options)) (*smv2.GetSecretValueOutput, error)
}

// SDK clients must keep satisfying the narrow interfaces.
var (
	_ S3API                         = (*s3v2.Client)(nil)
	_ s3v2.ListObjectsV2APIClient   = (S3API)(nil)
	_ CloudFormationAPI             = (*cfnv2.Client)(nil)
	_ cfnv2.DescribeStacksAPIClient = (CloudFormationAPI)(nil)
	_ SecretsAPI                    = (*smv2.Client)(nil)
)
