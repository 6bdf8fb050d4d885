// Package aws implements the provider contract against AWS: EC2 networking,
// ELBv2 load balancing, Auto Scaling and RDS. EC2-family resources are
// re-found across runs via a stratus:name tag; the remaining services carry
// a usable name or identifier of their own.
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/smithy-go"

	"github.com/stratus-io/stratus/internal/ir"
	"github.com/stratus-io/stratus/internal/provider"
)

// tagName is the tag key carrying a resource's logical name. Together with
// the kind it forms the natural key used to re-find resources across runs.
const tagName = "stratus:name"

type Provider struct {
	region  string
	profile string

	mu          sync.Mutex
	ec2Client   *ec2.Client
	elbv2Client *elasticloadbalancingv2.Client
	asgClient   *autoscaling.Client
	rdsClient   *rds.Client
}

func New(region, profile string) *Provider {
	return &Provider{region: region, profile: profile}
}

func (p *Provider) ensureClients(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ec2Client != nil {
		return nil
	}

	var opts []func(*config.LoadOptions) error
	if p.region != "" {
		opts = append(opts, config.WithRegion(p.region))
	}
	if p.profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(p.profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	p.ec2Client = ec2.NewFromConfig(cfg)
	p.elbv2Client = elasticloadbalancingv2.NewFromConfig(cfg)
	p.asgClient = autoscaling.NewFromConfig(cfg)
	p.rdsClient = rds.NewFromConfig(cfg)
	return nil
}

func (p *Provider) Find(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Kind {
	case ir.KindNetwork:
		return p.findNetwork(ctx, req)
	case ir.KindSubnet:
		return p.findSubnet(ctx, req)
	case ir.KindGateway:
		return p.findGateway(ctx, req)
	case ir.KindRouteTable:
		return p.findRouteTable(ctx, req)
	case ir.KindSecurityGroup:
		return p.findSecurityGroup(ctx, req)
	case ir.KindTargetGroup:
		return p.findTargetGroup(ctx, req)
	case ir.KindLoadBalancer:
		return p.findLoadBalancer(ctx, req)
	case ir.KindListener:
		return p.findListener(ctx, req)
	case ir.KindLaunchTemplate:
		return p.findLaunchTemplate(ctx, req)
	case ir.KindScalingGroup:
		return p.findScalingGroup(ctx, req)
	case ir.KindScalingPolicy:
		return p.findScalingPolicy(ctx, req)
	case ir.KindDatabaseSubnetGroup:
		return p.findDatabaseSubnetGroup(ctx, req)
	case ir.KindDatabaseInstance:
		return p.findDatabaseInstance(ctx, req)
	}
	return nil, fmt.Errorf("unsupported resource kind: %s", req.Kind)
}

func (p *Provider) Create(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch req.Kind {
	case ir.KindNetwork:
		return p.createNetwork(ctx, req)
	case ir.KindSubnet:
		return p.createSubnet(ctx, req)
	case ir.KindGateway:
		return p.createGateway(ctx, req)
	case ir.KindRouteTable:
		return p.createRouteTable(ctx, req)
	case ir.KindSecurityGroup:
		return p.createSecurityGroup(ctx, req)
	case ir.KindTargetGroup:
		return p.createTargetGroup(ctx, req)
	case ir.KindLoadBalancer:
		return p.createLoadBalancer(ctx, req)
	case ir.KindListener:
		return p.createListener(ctx, req)
	case ir.KindLaunchTemplate:
		return p.createLaunchTemplate(ctx, req)
	case ir.KindScalingGroup:
		return p.createScalingGroup(ctx, req)
	case ir.KindScalingPolicy:
		return p.createScalingPolicy(ctx, req)
	case ir.KindDatabaseSubnetGroup:
		return p.createDatabaseSubnetGroup(ctx, req)
	case ir.KindDatabaseInstance:
		return p.createDatabaseInstance(ctx, req)
	}
	return nil, fmt.Errorf("unsupported resource kind: %s", req.Kind)
}

func (p *Provider) Delete(ctx context.Context, req *provider.Request) error {
	if err := p.ensureClients(ctx); err != nil {
		return err
	}

	switch req.Kind {
	case ir.KindNetwork:
		return p.deleteNetwork(ctx, req)
	case ir.KindSubnet:
		return p.deleteSubnet(ctx, req)
	case ir.KindGateway:
		return p.deleteGateway(ctx, req)
	case ir.KindRouteTable:
		return p.deleteRouteTable(ctx, req)
	case ir.KindSecurityGroup:
		return p.deleteSecurityGroup(ctx, req)
	case ir.KindTargetGroup:
		return p.deleteTargetGroup(ctx, req)
	case ir.KindLoadBalancer:
		return p.deleteLoadBalancer(ctx, req)
	case ir.KindListener:
		return p.deleteListener(ctx, req)
	case ir.KindLaunchTemplate:
		return p.deleteLaunchTemplate(ctx, req)
	case ir.KindScalingGroup:
		return p.deleteScalingGroup(ctx, req)
	case ir.KindScalingPolicy:
		return p.deleteScalingPolicy(ctx, req)
	case ir.KindDatabaseSubnetGroup:
		return p.deleteDatabaseSubnetGroup(ctx, req)
	case ir.KindDatabaseInstance:
		return p.deleteDatabaseInstance(ctx, req)
	}
	return fmt.Errorf("unsupported resource kind: %s", req.Kind)
}

// isNotFound classifies "no such resource" API errors, which Find treats as
// an absent resource rather than a failure.
func isNotFound(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		return strings.Contains(code, "NotFound")
	}
	return false
}

// tagSpec builds the tag specification every created EC2-family resource
// carries: a Name tag for the console and the stratus:name natural key.
func tagSpec(rt ec2types.ResourceType, name string) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{
		{
			ResourceType: rt,
			Tags: []ec2types.Tag{
				{Key: strPtr("Name"), Value: strPtr(name)},
				{Key: strPtr(tagName), Value: strPtr(name)},
			},
		},
	}
}

// nameFilter matches EC2-family resources by the stratus:name tag.
func nameFilter(name string) []ec2types.Filter {
	return []ec2types.Filter{
		{Name: strPtr("tag:" + tagName), Values: []string{name}},
	}
}

func strPtr(s string) *string { return &s }

func int32Ptr(i int32) *int32 { return &i }

func boolPtr(b bool) *bool { return &b }

// strParam reads a string parameter, empty when absent or mistyped.
func strParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

// int32Param reads an integer parameter. YAML hands integers over as int.
func int32Param(params map[string]any, key string) int32 {
	switch v := params[key].(type) {
	case int:
		return int32(v)
	case int64:
		return int32(v)
	case float64:
		return int32(v)
	}
	return 0
}

// floatParam reads a numeric parameter as float64.
func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// boolParam reads a boolean parameter, false when absent.
func boolParam(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

// strSliceParam reads a list-of-strings parameter.
func strSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
