package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"

	"github.com/stratus-io/stratus/internal/provider"
)

// ScalingGroup. The group's AWS identifier is its name.

func (p *Provider) findScalingGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.asgClient.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{req.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe auto scaling group %s: %w", req.Name, err)
	}
	if len(resp.AutoScalingGroups) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.AutoScalingGroups[0].AutoScalingGroupName}, nil
}

func (p *Provider) createScalingGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	input := &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: &req.Name,
		MinSize:              int32Ptr(int32Param(req.Params, "min_size")),
		MaxSize:              int32Ptr(int32Param(req.Params, "max_size")),
		LaunchTemplate: &asgtypes.LaunchTemplateSpecification{
			LaunchTemplateId: strPtr(strParam(req.Params, "launch_template")),
			Version:          strPtr("$Latest"),
		},
		VPCZoneIdentifier: strPtr(strings.Join(strSliceParam(req.Params, "subnets"), ",")),
		Tags: []asgtypes.Tag{
			{
				Key:               strPtr(tagName),
				Value:             strPtr(req.Name),
				PropagateAtLaunch: boolPtr(false),
			},
		},
	}
	if _, ok := req.Params["desired_capacity"]; ok {
		input.DesiredCapacity = int32Ptr(int32Param(req.Params, "desired_capacity"))
	}
	if tgs := strSliceParam(req.Params, "target_groups"); len(tgs) > 0 {
		input.TargetGroupARNs = tgs
	}
	if hct := strParam(req.Params, "health_check_type"); hct != "" {
		input.HealthCheckType = &hct
		input.HealthCheckGracePeriod = int32Ptr(int32Param(req.Params, "health_check_grace"))
	}

	if _, err := p.asgClient.CreateAutoScalingGroup(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to create auto scaling group: %w", err)
	}
	return &provider.Result{ID: req.Name}, nil
}

func (p *Provider) deleteScalingGroup(ctx context.Context, req *provider.Request) error {
	_, err := p.asgClient.DeleteAutoScalingGroup(ctx, &autoscaling.DeleteAutoScalingGroupInput{
		AutoScalingGroupName: &req.ID,
		ForceDelete:          boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete auto scaling group %s: %w", req.ID, err)
	}
	return nil
}

// ScalingPolicy has no tag of its own; it is located through its parent
// scaling group plus the policy name.

func (p *Provider) findScalingPolicy(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	group := strParam(req.Params, "scaling_group")
	if group == "" {
		return nil, nil
	}
	resp, err := p.asgClient.DescribePolicies(ctx, &autoscaling.DescribePoliciesInput{
		AutoScalingGroupName: &group,
		PolicyNames:          []string{req.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe scaling policies on %s: %w", group, err)
	}
	if len(resp.ScalingPolicies) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.ScalingPolicies[0].PolicyARN}, nil
}

// createScalingPolicy installs a target-tracking policy on average CPU,
// which is what keeps the application tier sized to load.
func (p *Provider) createScalingPolicy(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	targetValue := floatParam(req.Params, "target_value")
	resp, err := p.asgClient.PutScalingPolicy(ctx, &autoscaling.PutScalingPolicyInput{
		AutoScalingGroupName: strPtr(strParam(req.Params, "scaling_group")),
		PolicyName:           &req.Name,
		PolicyType:           strPtr("TargetTrackingScaling"),
		TargetTrackingConfiguration: &asgtypes.TargetTrackingConfiguration{
			PredefinedMetricSpecification: &asgtypes.PredefinedMetricSpecification{
				PredefinedMetricType: asgtypes.MetricTypeASGAverageCPUUtilization,
			},
			TargetValue: &targetValue,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put scaling policy: %w", err)
	}
	return &provider.Result{ID: *resp.PolicyARN}, nil
}

func (p *Provider) deleteScalingPolicy(ctx context.Context, req *provider.Request) error {
	_, err := p.asgClient.DeletePolicy(ctx, &autoscaling.DeletePolicyInput{
		AutoScalingGroupName: strPtr(strParam(req.Params, "scaling_group")),
		PolicyName:           &req.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to delete scaling policy %s: %w", req.Name, err)
	}
	return nil
}
