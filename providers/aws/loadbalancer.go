package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/stratus-io/stratus/internal/provider"
)

const loadBalancerWait = 10 * time.Minute

// TargetGroup

func (p *Provider) findTargetGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.elbv2Client.DescribeTargetGroups(ctx, &elasticloadbalancingv2.DescribeTargetGroupsInput{
		Names: []string{req.Name},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe target group %s: %w", req.Name, err)
	}
	if len(resp.TargetGroups) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.TargetGroups[0].TargetGroupArn}, nil
}

func (p *Provider) createTargetGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	input := &elasticloadbalancingv2.CreateTargetGroupInput{
		Name:     &req.Name,
		Port:     int32Ptr(int32Param(req.Params, "port")),
		Protocol: elbtypes.ProtocolEnum(strParam(req.Params, "protocol")),
		VpcId:    strPtr(strParam(req.Params, "vpc")),
		Tags: []elbtypes.Tag{
			{Key: strPtr(tagName), Value: strPtr(req.Name)},
		},
	}
	if tt := strParam(req.Params, "target_type"); tt != "" {
		input.TargetType = elbtypes.TargetTypeEnum(tt)
	}
	if path := strParam(req.Params, "health_check_path"); path != "" {
		input.HealthCheckPath = &path
	}

	resp, err := p.elbv2Client.CreateTargetGroup(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create target group: %w", err)
	}
	return &provider.Result{ID: *resp.TargetGroups[0].TargetGroupArn}, nil
}

func (p *Provider) deleteTargetGroup(ctx context.Context, req *provider.Request) error {
	_, err := p.elbv2Client.DeleteTargetGroup(ctx, &elasticloadbalancingv2.DeleteTargetGroupInput{
		TargetGroupArn: &req.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete target group %s: %w", req.ID, err)
	}
	return nil
}

// LoadBalancer

func (p *Provider) findLoadBalancer(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.elbv2Client.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
		Names: []string{req.Name},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe load balancer %s: %w", req.Name, err)
	}
	if len(resp.LoadBalancers) == 0 {
		return nil, nil
	}
	lb := resp.LoadBalancers[0]
	return &provider.Result{
		ID:    *lb.LoadBalancerArn,
		Attrs: map[string]string{"dns_name": *lb.DNSName},
	}, nil
}

func (p *Provider) createLoadBalancer(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	input := &elasticloadbalancingv2.CreateLoadBalancerInput{
		Name:    &req.Name,
		Subnets: strSliceParam(req.Params, "subnets"),
		Tags: []elbtypes.Tag{
			{Key: strPtr(tagName), Value: strPtr(req.Name)},
		},
	}
	if sgs := strSliceParam(req.Params, "security_groups"); len(sgs) > 0 {
		input.SecurityGroups = sgs
	}
	if scheme := strParam(req.Params, "scheme"); scheme != "" {
		input.Scheme = elbtypes.LoadBalancerSchemeEnum(scheme)
	}
	if lbType := strParam(req.Params, "type"); lbType != "" {
		input.Type = elbtypes.LoadBalancerTypeEnum(lbType)
	}

	resp, err := p.elbv2Client.CreateLoadBalancer(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer: %w", err)
	}
	lb := resp.LoadBalancers[0]
	arn := *lb.LoadBalancerArn

	// Listeners and scaling groups attach to the balancer, so block until
	// it is actually usable.
	waiter := elasticloadbalancingv2.NewLoadBalancerAvailableWaiter(p.elbv2Client)
	if err := waiter.Wait(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{arn},
	}, loadBalancerWait); err != nil {
		return nil, fmt.Errorf("load balancer %s did not become available: %w", arn, err)
	}

	return &provider.Result{
		ID:    arn,
		Attrs: map[string]string{"dns_name": *lb.DNSName},
	}, nil
}

func (p *Provider) deleteLoadBalancer(ctx context.Context, req *provider.Request) error {
	_, err := p.elbv2Client.DeleteLoadBalancer(ctx, &elasticloadbalancingv2.DeleteLoadBalancerInput{
		LoadBalancerArn: &req.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete load balancer %s: %w", req.ID, err)
	}
	return nil
}

// Listener has no tag-addressable natural key of its own; it is located
// through its parent load balancer and port.

func (p *Provider) findListener(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	lbArn := strParam(req.Params, "load_balancer")
	if lbArn == "" {
		return nil, nil
	}
	resp, err := p.elbv2Client.DescribeListeners(ctx, &elasticloadbalancingv2.DescribeListenersInput{
		LoadBalancerArn: &lbArn,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe listeners on %s: %w", lbArn, err)
	}

	port := int32Param(req.Params, "port")
	for _, listener := range resp.Listeners {
		if listener.Port != nil && *listener.Port == port {
			return &provider.Result{ID: *listener.ListenerArn}, nil
		}
	}
	return nil, nil
}

func (p *Provider) createListener(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.elbv2Client.CreateListener(ctx, &elasticloadbalancingv2.CreateListenerInput{
		LoadBalancerArn: strPtr(strParam(req.Params, "load_balancer")),
		Port:            int32Ptr(int32Param(req.Params, "port")),
		Protocol:        elbtypes.ProtocolEnum(strParam(req.Params, "protocol")),
		DefaultActions: []elbtypes.Action{
			{
				Type:           elbtypes.ActionTypeEnumForward,
				TargetGroupArn: strPtr(strParam(req.Params, "target_group")),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	return &provider.Result{ID: *resp.Listeners[0].ListenerArn}, nil
}

func (p *Provider) deleteListener(ctx context.Context, req *provider.Request) error {
	_, err := p.elbv2Client.DeleteListener(ctx, &elasticloadbalancingv2.DeleteListenerInput{
		ListenerArn: &req.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete listener %s: %w", req.ID, err)
	}
	return nil
}
