// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	cfnv2 "github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/mrdp/mrdp/internal/aws"
	"github.com/mrdp/mrdp/internal/cacheutil"
	"github.com/mrdp/mrdp/internal/log"
)

// Defaults for Deployer timing.
const (
	DefaultPollInterval = 15 * time.Second
	DefaultTimeout      = 60 * time.Minute
)

// Actions reported in a Result.
const (
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionUnchanged = "unchanged"
	ActionDelete    = "delete"
	ActionAbsent    = "absent"
)

// Result describes what happened to one stack.
type Result struct {
	Component string
	StackName string
	Action    string
	Status    string
	Elapsed   time.Duration
}

// Status is a point-in-time view of a planned stack.
type Status struct {
	Component   string            `json:"component"`
	StackName   string            `json:"stack_name"`
	Status      string            `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	LastUpdated time.Time         `json:"last_updated,omitempty"`
	Outputs     map[string]string `json:"outputs,omitempty"`
}

// Deployer runs plans against CloudFormation.
type Deployer struct {
	CFN aws.CloudFormationAPI
	S3  aws.S3API

	// ArtifactBucket receives templates too large to send inline.
	ArtifactBucket string
	Region         string

	PollInterval time.Duration
	Timeout      time.Duration

	// OutputsTTL enables the local outputs cache when positive.
	OutputsTTL time.Duration

	// Env looks up ${env:NAME} references. Defaults to os.LookupEnv.
	Env func(string) (string, bool)

	now func() time.Time
}

func (d *Deployer) pollInterval() time.Duration {
	if d.PollInterval > 0 {
		return d.PollInterval
	}
	return DefaultPollInterval
}

func (d *Deployer) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

func (d *Deployer) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func (d *Deployer) resolver(p Plan) Resolver {
	env := d.Env
	if env == nil {
		env = os.LookupEnv
	}
	return Resolver{
		Env: env,
		Outputs: func(ctx context.Context, component string) (map[string]string, error) {
			return d.Outputs(ctx, p.StackName(component))
		},
	}
}

// Deploy creates or updates every stack in plan order. It stops at the
// first stack that does not settle successfully; later stacks are not
// touched. The results cover every stack that was attempted.
func (d *Deployer) Deploy(ctx context.Context, p Plan) ([]Result, error) {
	res := d.resolver(p)
	var results []Result
	for _, s := range p.Stacks {
		r, err := d.deployOne(ctx, res, s)
		results = append(results, r)
		if err != nil {
			return results, fmt.Errorf("%s: %w", s.StackName, err)
		}
	}
	return results, nil
}

func (d *Deployer) deployOne(ctx context.Context, res Resolver, s Stack) (Result, error) {
	began := d.clock()
	r := Result{Component: s.Component, StackName: s.StackName}

	params, err := res.ResolveAll(ctx, s.Parameters)
	if err != nil {
		return r, err
	}
	body, url, err := d.template(ctx, s)
	if err != nil {
		return r, err
	}

	existing, found, err := d.describe(ctx, s.StackName)
	if err != nil {
		return r, err
	}

	if found {
		status := string(existing.StackStatus)
		r.Status = status
		switch {
		case status == string(cfntypes.StackStatusRollbackComplete):
			return r, ErrRollbackComplete
		case IsInProgress(status):
			return r, fmt.Errorf("%w (%s)", ErrStackBusy, status)
		}
	}

	cfnParams := toParameters(params)
	if !found {
		r.Action = ActionCreate
		log.Infof("creating stack %s", s.StackName)
		_, err = d.CFN.CreateStack(ctx, &cfnv2.CreateStackInput{
			StackName:    awsv2.String(s.StackName),
			TemplateBody: body,
			TemplateURL:  url,
			Parameters:   cfnParams,
			Capabilities: s.Capabilities,
			Tags:         tags(s),
		})
	} else {
		r.Action = ActionUpdate
		log.Infof("updating stack %s", s.StackName)
		_, err = d.CFN.UpdateStack(ctx, &cfnv2.UpdateStackInput{
			StackName:    awsv2.String(s.StackName),
			TemplateBody: body,
			TemplateURL:  url,
			Parameters:   cfnParams,
			Capabilities: s.Capabilities,
			Tags:         tags(s),
		})
		if isNoUpdates(err) {
			r.Action = ActionUnchanged
			r.Elapsed = d.clock().Sub(began)
			log.Infof("stack %s is up to date", s.StackName)
			return r, nil
		}
	}
	if err != nil {
		return r, err
	}

	if err := cacheutil.Invalidate(cacheSubdirs, d.cacheKey(s.StackName)); err != nil {
		log.Debugf("failed to invalidate outputs cache: %v", err)
	}

	final, err := d.wait(ctx, s.StackName, began)
	r.Elapsed = d.clock().Sub(began)
	if final != nil {
		r.Status = string(final.StackStatus)
	}
	if err != nil {
		return r, err
	}
	if !IsSuccess(r.Status) {
		return r, d.failure(ctx, final, began)
	}
	d.cacheOutputs(s.StackName, outputsOf(final))
	log.Infof("stack %s is %s", s.StackName, r.Status)
	return r, nil
}

// Destroy deletes the plan's stacks in reverse order, waiting for each to
// disappear before moving on.
func (d *Deployer) Destroy(ctx context.Context, p Plan) ([]Result, error) {
	var results []Result
	for _, s := range p.Reversed() {
		began := d.clock()
		r := Result{Component: s.Component, StackName: s.StackName}

		existing, found, err := d.describe(ctx, s.StackName)
		if err != nil {
			results = append(results, r)
			return results, fmt.Errorf("%s: %w", s.StackName, err)
		}
		if !found {
			r.Action, r.Status = ActionAbsent, NotDeployed
			results = append(results, r)
			continue
		}
		if status := string(existing.StackStatus); IsInProgress(status) {
			r.Status = status
			results = append(results, r)
			return results, fmt.Errorf("%s: %w (%s)", s.StackName, ErrStackBusy, status)
		}

		r.Action = ActionDelete
		log.Infof("deleting stack %s", s.StackName)
		if _, err := d.CFN.DeleteStack(ctx, &cfnv2.DeleteStackInput{StackName: awsv2.String(s.StackName)}); err != nil {
			results = append(results, r)
			return results, fmt.Errorf("%s: %w", s.StackName, err)
		}
		_ = cacheutil.Invalidate(cacheSubdirs, d.cacheKey(s.StackName))

		final, err := d.wait(ctx, s.StackName, began)
		r.Elapsed = d.clock().Sub(began)
		r.Status = string(cfntypes.StackStatusDeleteComplete)
		if final != nil {
			r.Status = string(final.StackStatus)
		}
		results = append(results, r)
		if err != nil {
			return results, fmt.Errorf("%s: %w", s.StackName, err)
		}
		if final != nil && final.StackStatus != cfntypes.StackStatusDeleteComplete {
			return results, fmt.Errorf("%s: %w", s.StackName, d.failure(ctx, final, began))
		}
	}
	return results, nil
}

// Status describes every planned stack. Missing stacks report NotDeployed.
func (d *Deployer) Status(ctx context.Context, p Plan) ([]Status, error) {
	out := make([]Status, 0, len(p.Stacks))
	for _, s := range p.Stacks {
		st := Status{Component: s.Component, StackName: s.StackName, Status: NotDeployed}
		existing, found, err := d.describe(ctx, s.StackName)
		if err != nil {
			return out, fmt.Errorf("%s: %w", s.StackName, err)
		}
		if found {
			st.Status = string(existing.StackStatus)
			st.Reason = awsv2.ToString(existing.StackStatusReason)
			st.LastUpdated = lastUpdated(existing)
			st.Outputs = outputsOf(existing)
		}
		out = append(out, st)
	}
	return out, nil
}

var cacheSubdirs = []string{"stacks"}

func (d *Deployer) cacheKey(stackName string) string {
	return d.Region + "/" + stackName
}

func (d *Deployer) cacheOutputs(stackName string, outs map[string]string) {
	if d.OutputsTTL <= 0 {
		return
	}
	if err := cacheutil.WriteJSON(cacheSubdirs, d.cacheKey(stackName), outs); err != nil {
		log.Debugf("failed to cache outputs for %s: %v", stackName, err)
	}
}

// Outputs returns a stack's outputs, served from the local cache when it is
// enabled and fresh.
func (d *Deployer) Outputs(ctx context.Context, stackName string) (map[string]string, error) {
	if d.OutputsTTL > 0 {
		var cached map[string]string
		if cacheutil.ReadJSON(cacheSubdirs, d.cacheKey(stackName), d.OutputsTTL, &cached) {
			log.Tracef("outputs cache hit for %s", stackName)
			return cached, nil
		}
	}

	s, found, err := d.describe(ctx, stackName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("stack %s is not deployed", stackName)
	}
	outs := outputsOf(s)
	if IsSuccess(string(s.StackStatus)) {
		d.cacheOutputs(stackName, outs)
	}
	return outs, nil
}

// DeployedTemplate returns the original template body of a deployed stack.
func (d *Deployer) DeployedTemplate(ctx context.Context, stackName string) ([]byte, error) {
	out, err := d.CFN.GetTemplate(ctx, &cfnv2.GetTemplateInput{
		StackName:     awsv2.String(stackName),
		TemplateStage: cfntypes.TemplateStageOriginal,
	})
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("stack %s is not deployed", stackName)
		}
		return nil, err
	}
	return []byte(awsv2.ToString(out.TemplateBody)), nil
}

func (d *Deployer) describe(ctx context.Context, name string) (*cfntypes.Stack, bool, error) {
	out, err := d.CFN.DescribeStacks(ctx, &cfnv2.DescribeStacksInput{StackName: awsv2.String(name)})
	if err != nil {
		if isNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to describe stack: %w", err)
	}
	if len(out.Stacks) == 0 {
		return nil, false, nil
	}
	return &out.Stacks[0], true, nil
}

// wait polls until the stack settles or disappears. A vanished stack is
// returned as DELETE_COMPLETE.
func (d *Deployer) wait(ctx context.Context, name string, began time.Time) (*cfntypes.Stack, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	ticker := time.NewTicker(d.pollInterval())
	defer ticker.Stop()

	var last string
	for {
		s, found, err := d.describe(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, d.timeoutErr(name, last)
			}
			return nil, err
		}
		if !found {
			return &cfntypes.Stack{StackName: awsv2.String(name), StackStatus: cfntypes.StackStatusDeleteComplete}, nil
		}
		status := string(s.StackStatus)
		if status != last {
			log.Debugf("%s %s (%s)", name, status, d.clock().Sub(began).Round(time.Second))
			last = status
		}
		if IsTerminal(status) {
			return s, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return s, d.timeoutErr(name, last)
			}
			return s, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Deployer) timeoutErr(name, last string) error {
	return fmt.Errorf("timed out after %s waiting for %s (last status %s)", d.timeout(), name, last)
}

// failure builds a FailedError with the resource failures recorded since
// the operation began.
func (d *Deployer) failure(ctx context.Context, s *cfntypes.Stack, since time.Time) error {
	fe := &FailedError{
		StackName: awsv2.ToString(s.StackName),
		Status:    string(s.StackStatus),
		Reason:    awsv2.ToString(s.StackStatusReason),
	}
	events, err := d.failedEvents(ctx, fe.StackName, since)
	if err != nil {
		log.Debugf("failed to read stack events: %v", err)
	}
	fe.Events = events
	return fe
}

func (d *Deployer) failedEvents(ctx context.Context, name string, since time.Time) ([]FailedEvent, error) {
	var (
		out   []FailedEvent
		token *string
	)
	for page := 0; page < 10; page++ {
		resp, err := d.CFN.DescribeStackEvents(ctx, &cfnv2.DescribeStackEventsInput{
			StackName: awsv2.String(name),
			NextToken: token,
		})
		if err != nil {
			return out, err
		}
		for _, ev := range resp.StackEvents {
			if ev.Timestamp != nil && ev.Timestamp.Before(since) {
				return out, nil
			}
			if strings.HasSuffix(string(ev.ResourceStatus), "_FAILED") {
				out = append(out, FailedEvent{
					LogicalID: awsv2.ToString(ev.LogicalResourceId),
					Type:      awsv2.ToString(ev.ResourceType),
					Status:    string(ev.ResourceStatus),
					Reason:    awsv2.ToString(ev.ResourceStatusReason),
				})
			}
		}
		if resp.NextToken == nil {
			break
		}
		token = resp.NextToken
	}
	return out, nil
}

// template returns either an inline body or, for oversized templates, the
// URL of an uploaded copy.
func (d *Deployer) template(ctx context.Context, s Stack) (body, url *string, err error) {
	b, err := os.ReadFile(s.TemplatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read template: %w", err)
	}
	if len(b) <= MaxInlineTemplate {
		return awsv2.String(string(b)), nil, nil
	}
	if d.ArtifactBucket == "" || d.S3 == nil {
		return nil, nil, fmt.Errorf("%s (%d bytes): %w", s.TemplatePath, len(b), ErrTemplateTooLarge)
	}

	key := fmt.Sprintf("templates/%s/%s.yaml", s.StackName, d.clock().UTC().Format("20060102150405"))
	if err := aws.PutBytes(ctx, d.S3, d.ArtifactBucket, key, b, "application/x-yaml", ""); err != nil {
		return nil, nil, err
	}
	log.Debugf("uploaded %d byte template for %s", len(b), s.StackName)
	return nil, awsv2.String(aws.ObjectURL(d.Region, d.ArtifactBucket, key)), nil
}

func toParameters(params map[string]string) []cfntypes.Parameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]cfntypes.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   awsv2.String(k),
			ParameterValue: awsv2.String(params[k]),
		})
	}
	return out
}

func tags(s Stack) []cfntypes.Tag {
	t := []cfntypes.Tag{
		{Key: awsv2.String("mrdp:component"), Value: awsv2.String(s.Component)},
		{Key: awsv2.String("mrdp:managed-by"), Value: awsv2.String("mrdp")},
	}
	if v := s.Parameters["ProjectName"]; v != "" {
		t = append(t, cfntypes.Tag{Key: awsv2.String("Project"), Value: awsv2.String(v)})
	}
	if v := s.Parameters["Environment"]; v != "" {
		t = append(t, cfntypes.Tag{Key: awsv2.String("Environment"), Value: awsv2.String(v)})
	}
	return t
}

func outputsOf(s *cfntypes.Stack) map[string]string {
	out := make(map[string]string, len(s.Outputs))
	for _, o := range s.Outputs {
		out[awsv2.ToString(o.OutputKey)] = awsv2.ToString(o.OutputValue)
	}
	return out
}

func lastUpdated(s *cfntypes.Stack) time.Time {
	if s.LastUpdatedTime != nil {
		return *s.LastUpdatedTime
	}
	if s.CreationTime != nil {
		return *s.CreationTime
	}
	return time.Time{}
}

func validationMessage(err error) (string, bool) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		return apiErr.ErrorMessage(), true
	}
	return "", false
}

func isNotExist(err error) bool {
	msg, ok := validationMessage(err)
	return ok && strings.Contains(msg, "does not exist")
}

func isNoUpdates(err error) bool {
	msg, ok := validationMessage(err)
	return ok && strings.Contains(msg, "No updates are to be performed")
}
