package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stratus-io/stratus/internal/provider"
)

// LaunchTemplate

func (p *Provider) findLaunchTemplate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.DescribeLaunchTemplates(ctx, &ec2.DescribeLaunchTemplatesInput{
		LaunchTemplateNames: []string{req.Name},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe launch template %s: %w", req.Name, err)
	}
	if len(resp.LaunchTemplates) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.LaunchTemplates[0].LaunchTemplateId}, nil
}

func (p *Provider) createLaunchTemplate(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	data := &ec2types.RequestLaunchTemplateData{
		ImageId:      strPtr(strParam(req.Params, "image_id")),
		InstanceType: ec2types.InstanceType(strParam(req.Params, "instance_type")),
	}
	if keyName := strParam(req.Params, "key_name"); keyName != "" {
		data.KeyName = &keyName
	}
	if userData := strParam(req.Params, "user_data"); userData != "" {
		data.UserData = &userData
	}
	if sgs := strSliceParam(req.Params, "security_groups"); len(sgs) > 0 {
		data.SecurityGroupIds = sgs
	}

	resp, err := p.ec2Client.CreateLaunchTemplate(ctx, &ec2.CreateLaunchTemplateInput{
		LaunchTemplateName: &req.Name,
		LaunchTemplateData: data,
		TagSpecifications:  tagSpec(ec2types.ResourceTypeLaunchTemplate, req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create launch template: %w", err)
	}
	return &provider.Result{ID: *resp.LaunchTemplate.LaunchTemplateId}, nil
}

func (p *Provider) deleteLaunchTemplate(ctx context.Context, req *provider.Request) error {
	_, err := p.ec2Client.DeleteLaunchTemplate(ctx, &ec2.DeleteLaunchTemplateInput{
		LaunchTemplateId: &req.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete launch template %s: %w", req.ID, err)
	}
	return nil
}
