// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"reflect"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/attrs"
	"github.com/mrdp/mrdp/internal/aws"
	"github.com/mrdp/mrdp/internal/db"
	"github.com/mrdp/mrdp/internal/log"
	"github.com/mrdp/mrdp/internal/meta"
	"github.com/mrdp/mrdp/internal/output"
)

// BuildAttrs constructs an AttrList from the command defaults plus any
// --attrs extras.
func BuildAttrs(cmd *cli.Command, defaults ...string) (al attrs.AttrList) {
	for _, spec := range defaults {
		if err := al.Set(spec); err != nil {
			log.Warnf("ignoring attrs %q: %v", spec, err)
		}
	}
	if extras := cmd.String("attrs"); extras != "" {
		if err := al.Set(extras); err != nil {
			log.Warnf("ignoring attrs %q: %v", extras, err)
		}
	}
	return
}

// DumpSchemaIfRequested writes the row keys of t to w when --schema is set,
// and reports whether it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, t reflect.Type) bool {
	if cmd.Bool("schema") && t != nil {
		output.DumpSchema(t, cmd.Root().Writer)
		return true
	}
	return false
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr mrdp-<subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "mrdp-"+subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// Clients lazily builds the AWS clients a command needs from its --profile
// and --region flags. Commands that never touch AWS never load a config.
type Clients struct {
	cmd *cli.Command
	cfg *awsv2.Config

	s3      aws.S3API
	cfn     aws.CloudFormationAPI
	secrets aws.SecretsAPI
}

// NewClients returns a Clients bound to cmd.
func NewClients(cmd *cli.Command) *Clients {
	return &Clients{cmd: cmd}
}

// Config loads the AWS config once.
func (c *Clients) Config(ctx context.Context) (awsv2.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	opts := []aws.Option{
		aws.WithProfile(c.cmd.String("profile")),
		aws.WithRegion(c.cmd.String("region")),
	}
	if n := int(c.cmd.Int("max-attempts")); n > 0 {
		opts = append(opts, aws.WithRetryer(func() awsv2.Retryer {
			return retry.AddWithMaxAttempts(retry.NewStandard(), n)
		}))
	}
	cfg, err := aws.LoadAWSConfig(ctx, opts...)
	if err != nil {
		return awsv2.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	c.cfg = &cfg
	return cfg, nil
}

// S3 returns the S3 client.
func (c *Clients) S3(ctx context.Context) (aws.S3API, error) {
	if c.s3 == nil {
		cfg, err := c.Config(ctx)
		if err != nil {
			return nil, err
		}
		var optFns []func(*s3v2.Options)
		if c.cmd.Bool("s3-path-style") {
			optFns = append(optFns, aws.WithS3PathStyle())
		}
		c.s3 = aws.NewS3(cfg, optFns...)
	}
	return c.s3, nil
}

// CloudFormation returns the CloudFormation client.
func (c *Clients) CloudFormation(ctx context.Context) (aws.CloudFormationAPI, error) {
	if c.cfn == nil {
		cfg, err := c.Config(ctx)
		if err != nil {
			return nil, err
		}
		c.cfn = aws.NewCloudFormation(cfg)
	}
	return c.cfn, nil
}

// Secrets returns the Secrets Manager client.
func (c *Clients) Secrets(ctx context.Context) (aws.SecretsAPI, error) {
	if c.secrets == nil {
		cfg, err := c.Config(ctx)
		if err != nil {
			return nil, err
		}
		c.secrets = aws.NewSecretsManager(cfg)
	}
	return c.secrets, nil
}

// OpenDB opens the endpoint described by e's flags. Secrets Manager is only
// consulted when a secret ARN is given without a password.
func (c *Clients) OpenDB(ctx context.Context, e endpoint) (*sql.DB, error) {
	p := e.Params(c.cmd)
	var secrets aws.SecretsAPI
	if p.SecretARN != "" && p.Password == "" {
		var err error
		if secrets, err = c.Secrets(ctx); err != nil {
			return nil, err
		}
	}
	return db.Open(ctx, p, secrets)
}
