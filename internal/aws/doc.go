// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package aws wraps AWS SDK v2 configuration loading and exposes narrow
// client interfaces for S3, CloudFormation and Secrets Manager so callers can
// be exercised with fakes.
package aws
