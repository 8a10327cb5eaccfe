// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package stack drives the platform's CloudFormation stacks through the
// fixed provisioning order vpc, security-groups, s3, iam, rds, bastion,
// ecs or eks, redshift. Stacks are deployed strictly one after another and
// a stack only counts as deployed when it settles in CREATE_COMPLETE,
// UPDATE_COMPLETE or IMPORT_COMPLETE. Rollback states are failures and are
// left for an operator to clean up.
package stack
