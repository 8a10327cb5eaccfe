// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/mrdp/mrdp/internal/util"
)

// Compute flavours.
const (
	ComputeECS = "ecs"
	ComputeEKS = "eks"
)

// Component is one provisioning step.
type Component struct {
	Name         string
	Parameters   map[string]string
	Capabilities []cfntypes.Capability
}

var (
	vpcID          = "${stack:vpc.VpcId}"
	privateSubnets = "${stack:vpc.PrivateSubnetIds}"
	publicSubnets  = "${stack:vpc.PublicSubnetIds}"
)

// components returns the provisioning order for a compute flavour.
func components(flavour string) []Component {
	compute := Component{
		Name: ComputeECS,
		Parameters: map[string]string{
			"VpcId":                vpcID,
			"PrivateSubnetIds":     privateSubnets,
			"PublicSubnetIds":      publicSubnets,
			"ECSSecurityGroupId":   "${stack:security-groups.ECSSecurityGroupId}",
			"ALBSecurityGroupId":   "${stack:security-groups.ALBSecurityGroupId}",
			"TaskExecutionRoleArn": "${stack:iam.ECSTaskExecutionRoleArn}",
			"TaskRoleArn":          "${stack:iam.ECSTaskRoleArn}",
			"RDSEndpoint":          "${stack:rds.DBEndpoint}",
			"RDSSecretArn":         "${stack:rds.DBSecretArn}",
			"RawBucketName":        "${stack:s3.RawBucketName}",
		},
		Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityIam},
	}
	if flavour == ComputeEKS {
		compute = Component{
			Name: ComputeEKS,
			Parameters: map[string]string{
				"VpcId":                  vpcID,
				"PrivateSubnetIds":       privateSubnets,
				"ClusterSecurityGroupId": "${stack:security-groups.EKSSecurityGroupId}",
				"ClusterRoleArn":         "${stack:iam.EKSClusterRoleArn}",
				"NodeRoleArn":            "${stack:iam.EKSNodeRoleArn}",
			},
			Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityIam},
		}
	}

	return []Component{
		{Name: "vpc", Parameters: map[string]string{"VpcCidr": "10.0.0.0/16"}},
		{Name: "security-groups", Parameters: map[string]string{"VpcId": vpcID}},
		{Name: "s3", Parameters: map[string]string{}},
		{
			Name: "iam",
			Parameters: map[string]string{
				"RawBucketArn":     "${stack:s3.RawBucketArn}",
				"StagingBucketArn": "${stack:s3.StagingBucketArn}",
			},
			Capabilities: []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
		},
		{
			Name: "rds",
			Parameters: map[string]string{
				"VpcId":             vpcID,
				"PrivateSubnetIds":  privateSubnets,
				"DBSecurityGroupId": "${stack:security-groups.RDSSecurityGroupId}",
				"DBName":            "medrobotics",
				"DBUsername":        "dbadmin",
				"DBInstanceClass":   "db.t3.medium",
			},
		},
		{
			Name: "bastion",
			Parameters: map[string]string{
				"SubnetId":        "${stack:vpc.PublicSubnet1Id}",
				"SecurityGroupId": "${stack:security-groups.BastionSecurityGroupId}",
				"KeyName":         "${env:BASTION_KEY_NAME}",
			},
		},
		compute,
		{
			Name: "redshift",
			Parameters: map[string]string{
				"VpcId":                   vpcID,
				"PrivateSubnetIds":        privateSubnets,
				"RedshiftSecurityGroupId": "${stack:security-groups.RedshiftSecurityGroupId}",
				"RedshiftRoleArn":         "${stack:iam.RedshiftRoleArn}",
				"DBName":                  "medrobotics_dw",
				"MasterUsername":          "dwadmin",
			},
		},
	}
}

// ComponentNames returns the ordered component names for a compute flavour.
func ComponentNames(compute string) []string {
	cs := components(compute)
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

// Stack is a component bound to a concrete stack name and template.
type Stack struct {
	Component    string
	StackName    string
	TemplatePath string
	Parameters   map[string]string
	Capabilities []cfntypes.Capability
}

// Plan is the ordered set of stacks for one project environment.
type Plan struct {
	Project string
	Env     string
	Compute string
	Stacks  []Stack
}

// StackName returns the stack name of any component, selected or not.
func (p Plan) StackName(component string) string {
	return util.StackName(p.Project, p.Env, component)
}

// Reversed returns the stacks in teardown order.
func (p Plan) Reversed() []Stack {
	out := slices.Clone(p.Stacks)
	slices.Reverse(out)
	return out
}

// PlanOptions controls BuildPlan.
type PlanOptions struct {
	Project     string
	Env         string
	Compute     string
	TemplateDir string
	Only        []string
	// Overrides maps component name to parameter overrides.
	Overrides map[string]map[string]string
}

// BuildPlan resolves the ordered stack list. Only narrows the plan without
// changing its order.
func BuildPlan(opts PlanOptions) (Plan, error) {
	if opts.Project == "" {
		return Plan{}, fmt.Errorf("project name is required")
	}
	compute := strings.ToLower(opts.Compute)
	if compute == "" {
		compute = ComputeECS
	}
	if compute != ComputeECS && compute != ComputeEKS {
		return Plan{}, fmt.Errorf("unknown compute flavour %q (want ecs or eks)", opts.Compute)
	}

	all := components(compute)
	known := map[string]bool{}
	for _, c := range all {
		known[c.Name] = true
	}
	for name := range opts.Overrides {
		if !known[name] {
			return Plan{}, fmt.Errorf("overrides name unknown component %q", name)
		}
	}

	selected := map[string]bool{}
	for _, o := range opts.Only {
		for _, name := range strings.Split(o, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if !known[name] {
				return Plan{}, fmt.Errorf("unknown component %q (want one of %s)", name, strings.Join(ComponentNames(compute), ", "))
			}
			selected[name] = true
		}
	}

	p := Plan{Project: opts.Project, Env: opts.Env, Compute: compute}
	for _, c := range all {
		if len(selected) > 0 && !selected[c.Name] {
			continue
		}
		params := map[string]string{
			"ProjectName": opts.Project,
			"Environment": opts.Env,
		}
		maps.Copy(params, c.Parameters)
		maps.Copy(params, opts.Overrides[c.Name])

		p.Stacks = append(p.Stacks, Stack{
			Component:    c.Name,
			StackName:    p.StackName(c.Name),
			TemplatePath: filepath.Join(opts.TemplateDir, c.Name+".yaml"),
			Parameters:   params,
			Capabilities: c.Capabilities,
		})
	}
	return p, nil
}
