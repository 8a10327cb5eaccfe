// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package stack

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	cfnv2 "github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrdp/mrdp/internal/aws/awstest"
)

// deleted marks a stack that disappears once its status is reached.
const deleted = "DELETED"

type fakeStack struct {
	statuses []string
	outputs  map[string]string
}

// fakeCFN replays scripted status sequences. Each describe consumes one
// status until only the last remains.
type fakeCFN struct {
	mu sync.Mutex

	stacks    map[string]*fakeStack
	outputs   map[string]map[string]string
	script    map[string][]string
	events    map[string][]cfntypes.StackEvent
	template  string
	updateErr error

	creates []*cfnv2.CreateStackInput
	updates []*cfnv2.UpdateStackInput
	deletes []string
}

func newFakeCFN() *fakeCFN {
	return &fakeCFN{
		stacks:  map[string]*fakeStack{},
		outputs: map[string]map[string]string{},
		script:  map[string][]string{},
		events:  map[string][]cfntypes.StackEvent{},
	}
}

func notExist(name string) error {
	return &smithy.GenericAPIError{Code: "ValidationError", Message: "Stack with id " + name + " does not exist"}
}

func (f *fakeCFN) CreateStack(_ context.Context, in *cfnv2.CreateStackInput, _ ...func(*cfnv2.Options)) (*cfnv2.CreateStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := awsv2.ToString(in.StackName)
	f.creates = append(f.creates, in)
	statuses := f.script[name]
	if statuses == nil {
		statuses = []string{"CREATE_IN_PROGRESS", "CREATE_COMPLETE"}
	}
	f.stacks[name] = &fakeStack{statuses: statuses, outputs: f.outputs[name]}
	return &cfnv2.CreateStackOutput{StackId: awsv2.String("arn:" + name)}, nil
}

func (f *fakeCFN) UpdateStack(_ context.Context, in *cfnv2.UpdateStackInput, _ ...func(*cfnv2.Options)) (*cfnv2.UpdateStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	s := f.stacks[awsv2.ToString(in.StackName)]
	s.statuses = []string{"UPDATE_IN_PROGRESS", "UPDATE_COMPLETE"}
	return &cfnv2.UpdateStackOutput{}, nil
}

func (f *fakeCFN) DeleteStack(_ context.Context, in *cfnv2.DeleteStackInput, _ ...func(*cfnv2.Options)) (*cfnv2.DeleteStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := awsv2.ToString(in.StackName)
	f.deletes = append(f.deletes, name)
	if s, ok := f.stacks[name]; ok {
		s.statuses = []string{"DELETE_IN_PROGRESS", deleted}
	}
	return &cfnv2.DeleteStackOutput{}, nil
}

func (f *fakeCFN) DescribeStacks(_ context.Context, in *cfnv2.DescribeStacksInput, _ ...func(*cfnv2.Options)) (*cfnv2.DescribeStacksOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := awsv2.ToString(in.StackName)
	s, ok := f.stacks[name]
	if !ok {
		return nil, notExist(name)
	}
	status := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	if status == deleted {
		delete(f.stacks, name)
		return nil, notExist(name)
	}

	st := cfntypes.Stack{
		StackName:    awsv2.String(name),
		StackStatus:  cfntypes.StackStatus(status),
		CreationTime: awsv2.Time(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	for k, v := range s.outputs {
		st.Outputs = append(st.Outputs, cfntypes.Output{OutputKey: awsv2.String(k), OutputValue: awsv2.String(v)})
	}
	return &cfnv2.DescribeStacksOutput{Stacks: []cfntypes.Stack{st}}, nil
}

func (f *fakeCFN) DescribeStackEvents(_ context.Context, in *cfnv2.DescribeStackEventsInput, _ ...func(*cfnv2.Options)) (*cfnv2.DescribeStackEventsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &cfnv2.DescribeStackEventsOutput{StackEvents: f.events[awsv2.ToString(in.StackName)]}, nil
}

func (f *fakeCFN) GetTemplate(_ context.Context, in *cfnv2.GetTemplateInput, _ ...func(*cfnv2.Options)) (*cfnv2.GetTemplateOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := awsv2.ToString(in.StackName)
	if _, ok := f.stacks[name]; !ok {
		return nil, notExist(name)
	}
	return &cfnv2.GetTemplateOutput{TemplateBody: awsv2.String(f.template)}, nil
}

// seed registers an existing stack in a settled status.
func (f *fakeCFN) seed(name, status string, outputs map[string]string) {
	f.stacks[name] = &fakeStack{statuses: []string{status}, outputs: outputs}
}

func writeTemplates(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		body := "AWSTemplateFormatVersion: '2010-09-09'\nResources: {}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, n+".yaml"), []byte(body), 0o600))
	}
	return dir
}

func newDeployer(cfn *fakeCFN) *Deployer {
	return &Deployer{
		CFN:          cfn,
		Region:       "us-east-1",
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
		Env:          func(string) (string, bool) { return "", false },
	}
}

func TestBuildPlan(t *testing.T) {
	tests := []struct {
		name    string
		opts    PlanOptions
		want    []string
		wantErr string
	}{
		{
			name: "full ecs order",
			opts: PlanOptions{Project: "medrobotics", Env: "dev"},
			want: []string{"vpc", "security-groups", "s3", "iam", "rds", "bastion", "ecs", "redshift"},
		},
		{
			name: "eks replaces ecs",
			opts: PlanOptions{Project: "medrobotics", Compute: "EKS"},
			want: []string{"vpc", "security-groups", "s3", "iam", "rds", "bastion", "eks", "redshift"},
		},
		{
			name: "only keeps plan order",
			opts: PlanOptions{Project: "medrobotics", Only: []string{"rds,vpc", " iam "}},
			want: []string{"vpc", "iam", "rds"},
		},
		{name: "missing project", opts: PlanOptions{}, wantErr: "project name is required"},
		{name: "bad compute", opts: PlanOptions{Project: "p", Compute: "lambda"}, wantErr: "unknown compute flavour"},
		{name: "unknown component", opts: PlanOptions{Project: "p", Only: []string{"eks"}}, wantErr: `unknown component "eks"`},
		{
			name:    "unknown override",
			opts:    PlanOptions{Project: "p", Overrides: map[string]map[string]string{"lambda": {"A": "b"}}},
			wantErr: `unknown component "lambda"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildPlan(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, s := range p.Stacks {
				got = append(got, s.Component)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPlan_Parameters(t *testing.T) {
	p, err := BuildPlan(PlanOptions{
		Project:     "medrobotics",
		Env:         "prod",
		TemplateDir: "cfn",
		Only:        []string{"rds", "iam"},
		Overrides:   map[string]map[string]string{"rds": {"DBInstanceClass": "db.r6g.large"}},
	})
	require.NoError(t, err)
	require.Len(t, p.Stacks, 2)

	iam, rds := p.Stacks[0], p.Stacks[1]
	assert.Equal(t, "medrobotics-prod-iam", iam.StackName)
	assert.Equal(t, []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam}, iam.Capabilities)
	assert.Equal(t, filepath.Join("cfn", "rds.yaml"), rds.TemplatePath)
	assert.Equal(t, "db.r6g.large", rds.Parameters["DBInstanceClass"])
	assert.Equal(t, "medrobotics", rds.Parameters["ProjectName"])
	assert.Equal(t, "prod", rds.Parameters["Environment"])

	// References to unselected components still name their stacks.
	assert.Equal(t, "medrobotics-prod-vpc", p.StackName("vpc"))
	assert.Equal(t, []string{"rds", "iam"}, []string{p.Reversed()[0].Component, p.Reversed()[1].Component})
}

func TestResolver(t *testing.T) {
	r := Resolver{
		Env: func(k string) (string, bool) {
			if k == "BASTION_KEY_NAME" {
				return "ops-key", true
			}
			return "", false
		},
		Outputs: func(_ context.Context, c string) (map[string]string, error) {
			if c == "vpc" {
				return map[string]string{"VpcId": "vpc-123", "PrivateSubnetIds": "subnet-a,subnet-b"}, nil
			}
			return nil, errors.New("stack not deployed")
		},
	}
	ctx := context.Background()

	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "plain", want: "plain"},
		{in: "${env:BASTION_KEY_NAME}", want: "ops-key"},
		{in: "${stack:vpc.VpcId}", want: "vpc-123"},
		{in: "subnets=${stack:vpc.PrivateSubnetIds};key=${env:BASTION_KEY_NAME}", want: "subnets=subnet-a,subnet-b;key=ops-key"},
		{in: "${env:NOPE}", wantErr: "NOPE is not set"},
		{in: "${stack:vpc.Missing}", wantErr: "has no output Missing"},
		{in: "${stack:rds.DBEndpoint}", wantErr: "stack not deployed"},
		{in: "${stack:vpc}", wantErr: "malformed stack reference"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.ResolveAll(ctx, map[string]string{"A": "ok", "B": "${env:NOPE}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter B")
}

func TestParseTemplate(t *testing.T) {
	body := []byte(`
Resources:
  Bucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: !Sub '${ProjectName}-raw'
      Tags:
        - Key: Env
          Value: !Ref Environment
Outputs:
  Arn:
    Value: !GetAtt Bucket.Arn
  Joined:
    Value: !Join [",", [!Ref A, !Ref B]]
`)
	got, err := TemplateJSON(body)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(got, &doc))
	res := doc["Resources"].(map[string]any)["Bucket"].(map[string]any)["Properties"].(map[string]any)
	assert.Equal(t, map[string]any{"Fn::Sub": "${ProjectName}-raw"}, res["BucketName"])
	assert.Equal(t, map[string]any{"Ref": "Environment"}, res["Tags"].([]any)[0].(map[string]any)["Value"])

	outs := doc["Outputs"].(map[string]any)
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"Bucket", "Arn"}}, outs["Arn"].(map[string]any)["Value"])
	assert.Equal(t, map[string]any{"Fn::Join": []any{",", []any{map[string]any{"Ref": "A"}, map[string]any{"Ref": "B"}}}},
		outs["Joined"].(map[string]any)["Value"])

	_, err = ParseTemplate([]byte("Value: !Bogus x\n"))
	assert.ErrorContains(t, err, "unknown tag !Bogus")

	_, err = ParseTemplate([]byte("Value: !GetAtt NoDot\n"))
	assert.ErrorContains(t, err, "needs Resource.Attribute")

	v, err := ParseTemplate([]byte(`{"Resources": {}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Resources": map[string]any{}}, v)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, IsInProgress("UPDATE_ROLLBACK_COMPLETE_CLEANUP_IN_PROGRESS"))
	assert.False(t, IsTerminal("CREATE_IN_PROGRESS"))
	assert.True(t, IsTerminal("ROLLBACK_COMPLETE"))
	assert.False(t, IsSuccess("ROLLBACK_COMPLETE"))
	assert.False(t, IsSuccess("UPDATE_ROLLBACK_COMPLETE"))
	assert.True(t, IsSuccess("IMPORT_COMPLETE"))

	err := &FailedError{
		StackName: "p-dev-rds",
		Status:    "ROLLBACK_COMPLETE",
		Reason:    "The following resource(s) failed to create: [DB]",
		Events:    []FailedEvent{{LogicalID: "DB", Type: "AWS::RDS::DBInstance", Status: "CREATE_FAILED", Reason: "quota"}},
	}
	assert.Equal(t, "stack p-dev-rds finished in ROLLBACK_COMPLETE: The following resource(s) failed to create: [DB]\n"+
		"  DB (AWS::RDS::DBInstance) CREATE_FAILED: quota", err.Error())
}

func TestDeploy_CreateInOrderResolvingOutputs(t *testing.T) {
	t.Setenv("MRDP_CACHE", "0")
	cfn := newFakeCFN()
	cfn.outputs["medrobotics-dev-vpc"] = map[string]string{"VpcId": "vpc-123"}

	p, err := BuildPlan(PlanOptions{
		Project:     "medrobotics",
		Env:         "dev",
		TemplateDir: writeTemplates(t, "vpc", "security-groups"),
		Only:        []string{"security-groups,vpc"},
	})
	require.NoError(t, err)

	results, err := newDeployer(cfn).Deploy(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, ActionCreate, results[0].Action)
	assert.Equal(t, "CREATE_COMPLETE", results[1].Status)

	require.Len(t, cfn.creates, 2)
	assert.Equal(t, "medrobotics-dev-vpc", awsv2.ToString(cfn.creates[0].StackName))
	sg := cfn.creates[1]
	assert.NotNil(t, sg.TemplateBody)
	assert.Nil(t, sg.TemplateURL)

	params := map[string]string{}
	var keys []string
	for _, p := range sg.Parameters {
		keys = append(keys, awsv2.ToString(p.ParameterKey))
		params[awsv2.ToString(p.ParameterKey)] = awsv2.ToString(p.ParameterValue)
	}
	assert.Equal(t, []string{"Environment", "ProjectName", "VpcId"}, keys)
	assert.Equal(t, "vpc-123", params["VpcId"])
}

func TestDeploy_UpdateAndNoop(t *testing.T) {
	t.Setenv("MRDP_CACHE", "0")
	cfn := newFakeCFN()
	cfn.seed("medrobotics-dev-s3", "CREATE_COMPLETE", nil)

	p, err := BuildPlan(PlanOptions{Project: "medrobotics", Env: "dev", TemplateDir: writeTemplates(t, "s3"), Only: []string{"s3"}})
	require.NoError(t, err)
	d := newDeployer(cfn)

	results, err := d.Deploy(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, results[0].Action)
	assert.Equal(t, "UPDATE_COMPLETE", results[0].Status)

	cfn.updateErr = &smithy.GenericAPIError{Code: "ValidationError", Message: "No updates are to be performed."}
	results, err = d.Deploy(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, results[0].Action)
}

func TestDeploy_RefusesBusyAndRolledBack(t *testing.T) {
	t.Setenv("MRDP_CACHE", "0")
	dir := writeTemplates(t, "s3")
	p, err := BuildPlan(PlanOptions{Project: "medrobotics", Env: "dev", TemplateDir: dir, Only: []string{"s3"}})
	require.NoError(t, err)

	cfn := newFakeCFN()
	cfn.seed("medrobotics-dev-s3", "ROLLBACK_COMPLETE", nil)
	_, err = newDeployer(cfn).Deploy(context.Background(), p)
	assert.ErrorIs(t, err, ErrRollbackComplete)

	cfn = newFakeCFN()
	cfn.seed("medrobotics-dev-s3", "UPDATE_IN_PROGRESS", nil)
	_, err = newDeployer(cfn).Deploy(context.Background(), p)
	assert.ErrorIs(t, err, ErrStackBusy)
	assert.Empty(t, cfn.updates)
}

func TestDeploy_FailureStopsAndCollectsEvents(t *testing.T) {
	t.Setenv("MRDP_CACHE", "0")
	cfn := newFakeCFN()
	cfn.script["medrobotics-dev-vpc"] = []string{"CREATE_IN_PROGRESS", "ROLLBACK_IN_PROGRESS", "ROLLBACK_COMPLETE"}
	future := time.Now().Add(time.Hour)
	cfn.events["medrobotics-dev-vpc"] = []cfntypes.StackEvent{
		{LogicalResourceId: awsv2.String("Vpc"), ResourceType: awsv2.String("AWS::EC2::VPC"), ResourceStatus: cfntypes.ResourceStatusCreateFailed,
			ResourceStatusReason: awsv2.String("limit exceeded"), Timestamp: &future},
		{LogicalResourceId: awsv2.String("Igw"), ResourceStatus: cfntypes.ResourceStatusCreateComplete, Timestamp: &future},
	}

	p, err := BuildPlan(PlanOptions{Project: "medrobotics", Env: "dev", TemplateDir: writeTemplates(t, "vpc", "s3"), Only: []string{"vpc,s3"}})
	require.NoError(t, err)

	results, err := newDeployer(cfn).Deploy(context.Background(), p)
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ROLLBACK_COMPLETE", results[0].Status)
	assert.Len(t, cfn.creates, 1)

	var fe *FailedError
	require.True(t, errors.As(err, &fe))
	require.Len(t, fe.Events, 1)
	assert.Equal(t, "Vpc", fe.Events[0].LogicalID)
	assert.Equal(t, "limit exceeded", fe.Events[0].Reason)
}

func TestDeploy_LargeTemplate(t *testing.T) {
	t.Setenv("MRDP_CACHE", "0")
	dir := t.TempDir()
	big := "Resources: {}\n# " + strings.Repeat("x", MaxInlineTemplate) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s3.yaml"), []byte(big), 0o600))
	p, err := BuildPlan(PlanOptions{Project: "medrobotics", Env: "dev", TemplateDir: dir, Only: []string{"s3"}})
	require.NoError(t, err)

	cfn := newFakeCFN()
	_, err = newDeployer(cfn).Deploy(context.Background(), p)
	assert.ErrorIs(t, err, ErrTemplateTooLarge)
	assert.Empty(t, cfn.creates)

	s3 := awstest.NewS3()
	d := newDeployer(cfn)
	d.S3 = s3
	d.ArtifactBucket = "cfn-artifacts"
	d.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	_, err = d.Deploy(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, cfn.creates, 1)
	assert.Nil(t, cfn.creates[0].TemplateBody)
	assert.Equal(t, "https://cfn-artifacts.s3.amazonaws.com/templates/medrobotics-dev-s3/20240301120000.yaml",
		awsv2.ToString(cfn.creates[0].TemplateURL))
	assert.Equal(t, []string{"templates/medrobotics-dev-s3/20240301120000.yaml"}, s3.Keys("cfn-artifacts", "templates/"))
}

func TestDestroy_ReverseOrder(t *testing.T) {
	t.Setenv("MRDP_CACHE", "0")
	cfn := newFakeCFN()
	cfn.seed("medrobotics-dev-vpc", "CREATE_COMPLETE", nil)
	cfn.seed("medrobotics-dev-s3", "UPDATE_COMPLETE", nil)

	p, err := BuildPlan(PlanOptions{Project: "medrobotics", Env: "dev", Only: []string{"vpc,security-groups,s3"}})
	require.NoError(t, err)

	results, err := newDeployer(cfn).Destroy(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"medrobotics-dev-s3", "medrobotics-dev-vpc"}, cfn.deletes)
	assert.Equal(t, ActionDelete, results[0].Action)
	assert.Equal(t, "DELETE_COMPLETE", results[0].Status)
	assert.Equal(t, ActionAbsent, results[1].Action)
	assert.Equal(t, NotDeployed, results[1].Status)
	assert.Empty(t, cfn.stacks)
}

func TestStatusAndOutputs(t *testing.T) {
	t.Setenv("MRDP_CACHE_DIR", t.TempDir())
	t.Setenv("MRDP_CACHE", "")
	cfn := newFakeCFN()
	cfn.seed("medrobotics-dev-vpc", "CREATE_COMPLETE", map[string]string{"VpcId": "vpc-9"})
	cfn.template = "Resources: {}"

	p, err := BuildPlan(PlanOptions{Project: "medrobotics", Env: "dev", Only: []string{"vpc,s3"}})
	require.NoError(t, err)
	d := newDeployer(cfn)
	d.OutputsTTL = time.Hour

	st, err := d.Status(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, st, 2)
	assert.Equal(t, "CREATE_COMPLETE", st[0].Status)
	assert.Equal(t, map[string]string{"VpcId": "vpc-9"}, st[0].Outputs)
	assert.Equal(t, NotDeployed, st[1].Status)

	outs, err := d.Outputs(context.Background(), "medrobotics-dev-vpc")
	require.NoError(t, err)
	assert.Equal(t, "vpc-9", outs["VpcId"])

	// A cached entry survives the stack going away.
	delete(cfn.stacks, "medrobotics-dev-vpc")
	outs, err = d.Outputs(context.Background(), "medrobotics-dev-vpc")
	require.NoError(t, err)
	assert.Equal(t, "vpc-9", outs["VpcId"])

	d.OutputsTTL = 0
	_, err = d.Outputs(context.Background(), "medrobotics-dev-vpc")
	assert.ErrorContains(t, err, "is not deployed")

	cfn.seed("medrobotics-dev-vpc", "CREATE_COMPLETE", nil)
	body, err := d.DeployedTemplate(context.Background(), "medrobotics-dev-vpc")
	require.NoError(t, err)
	assert.Equal(t, "Resources: {}", string(body))

	_, err = d.DeployedTemplate(context.Background(), "medrobotics-dev-rds")
	assert.ErrorContains(t, err, "is not deployed")
}
