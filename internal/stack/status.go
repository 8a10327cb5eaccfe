// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"errors"
	"fmt"
	"strings"
)

// NotDeployed is reported for planned stacks that do not exist.
const NotDeployed = "NOT_DEPLOYED"

var (
	// ErrStackBusy means the stack has an operation in flight.
	ErrStackBusy = errors.New("stack operation in progress")
	// ErrRollbackComplete means a failed create left the stack unusable
	// until an operator deletes it.
	ErrRollbackComplete = errors.New("stack is in ROLLBACK_COMPLETE and must be deleted before it can be redeployed")
	// ErrTemplateTooLarge means a template exceeds the inline limit and no
	// artifact bucket is configured.
	ErrTemplateTooLarge = errors.New("template exceeds the inline size limit and no artifact bucket is configured")
)

// MaxInlineTemplate is the largest TemplateBody CloudFormation accepts.
const MaxInlineTemplate = 51200

// IsInProgress reports statuses that are still moving.
func IsInProgress(status string) bool {
	return strings.HasSuffix(status, "_IN_PROGRESS")
}

// IsTerminal reports statuses that will not change without a new operation.
func IsTerminal(status string) bool {
	return status != "" && !IsInProgress(status)
}

// IsSuccess reports the only terminal statuses that count as deployed.
func IsSuccess(status string) bool {
	switch status {
	case "CREATE_COMPLETE", "UPDATE_COMPLETE", "IMPORT_COMPLETE":
		return true
	}
	return false
}

// FailedEvent is a resource-level failure reported by CloudFormation.
type FailedEvent struct {
	LogicalID string
	Type      string
	Status    string
	Reason    string
}

// FailedError reports a stack that settled in a non-success status.
type FailedError struct {
	StackName string
	Status    string
	Reason    string
	Events    []FailedEvent
}

func (e *FailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stack %s finished in %s", e.StackName, e.Status)
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	for _, ev := range e.Events {
		fmt.Fprintf(&b, "\n  %s (%s) %s: %s", ev.LogicalID, ev.Type, ev.Status, ev.Reason)
	}
	return b.String()
}
