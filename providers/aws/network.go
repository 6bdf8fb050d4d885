package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/stratus-io/stratus/internal/provider"
)

const natGatewayWait = 10 * time.Minute

// Network

func (p *Provider) findNetwork(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: nameFilter(req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPCs: %w", err)
	}
	if len(resp.Vpcs) == 0 {
		return nil, nil
	}
	vpc := resp.Vpcs[0]
	return &provider.Result{
		ID:    *vpc.VpcId,
		Attrs: map[string]string{"cidr_block": *vpc.CidrBlock},
	}, nil
}

func (p *Provider) createNetwork(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         strPtr(strParam(req.Params, "cidr_block")),
		TagSpecifications: tagSpec(ec2types.ResourceTypeVpc, req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := *resp.Vpc.VpcId

	if boolParam(req.Params, "dns_hostnames") {
		_, err = p.ec2Client.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              &vpcID,
			EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: boolPtr(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enable DNS hostnames on %s: %w", vpcID, err)
		}
	}

	return &provider.Result{
		ID:    vpcID,
		Attrs: map[string]string{"cidr_block": *resp.Vpc.CidrBlock},
	}, nil
}

func (p *Provider) deleteNetwork(ctx context.Context, req *provider.Request) error {
	_, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: &req.ID})
	if err != nil {
		return fmt.Errorf("failed to delete VPC %s: %w", req.ID, err)
	}
	return nil
}

// Subnet

func (p *Provider) findSubnet(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: nameFilter(req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe subnets: %w", err)
	}
	if len(resp.Subnets) == 0 {
		return nil, nil
	}
	subnet := resp.Subnets[0]
	return &provider.Result{
		ID:    *subnet.SubnetId,
		Attrs: map[string]string{"availability_zone": *subnet.AvailabilityZone},
	}, nil
}

func (p *Provider) createSubnet(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	input := &ec2.CreateSubnetInput{
		VpcId:             strPtr(strParam(req.Params, "vpc")),
		CidrBlock:         strPtr(strParam(req.Params, "cidr_block")),
		TagSpecifications: tagSpec(ec2types.ResourceTypeSubnet, req.Name),
	}
	if az := strParam(req.Params, "availability_zone"); az != "" {
		input.AvailabilityZone = &az
	}

	resp, err := p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create subnet: %w", err)
	}
	subnetID := *resp.Subnet.SubnetId

	if boolParam(req.Params, "map_public_ip") {
		_, err = p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            &subnetID,
			MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: boolPtr(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to enable public IP mapping on %s: %w", subnetID, err)
		}
	}

	return &provider.Result{
		ID:    subnetID,
		Attrs: map[string]string{"availability_zone": *resp.Subnet.AvailabilityZone},
	}, nil
}

func (p *Provider) deleteSubnet(ctx context.Context, req *provider.Request) error {
	_, err := p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: &req.ID})
	if err != nil {
		return fmt.Errorf("failed to delete subnet %s: %w", req.ID, err)
	}
	return nil
}

// Gateway: type "internet" is an internet gateway attached to a VPC, type
// "nat" is a NAT gateway in a subnet with a freshly allocated Elastic IP.

func (p *Provider) findGateway(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	switch strParam(req.Params, "type") {
	case "nat":
		return p.findNatGateway(ctx, req)
	default:
		return p.findInternetGateway(ctx, req)
	}
}

func (p *Provider) createGateway(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	switch strParam(req.Params, "type") {
	case "nat":
		return p.createNatGateway(ctx, req)
	default:
		return p.createInternetGateway(ctx, req)
	}
}

func (p *Provider) deleteGateway(ctx context.Context, req *provider.Request) error {
	if strings.HasPrefix(req.ID, "nat-") {
		return p.deleteNatGateway(ctx, req)
	}
	return p.deleteInternetGateway(ctx, req)
}

func (p *Provider) findInternetGateway(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: nameFilter(req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe internet gateways: %w", err)
	}
	if len(resp.InternetGateways) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.InternetGateways[0].InternetGatewayId}, nil
}

func (p *Provider) createInternetGateway(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagSpec(ec2types.ResourceTypeInternetGateway, req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := *resp.InternetGateway.InternetGatewayId

	vpcID := strParam(req.Params, "vpc")
	_, err = p.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: &igwID,
		VpcId:             &vpcID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach internet gateway %s to %s: %w", igwID, vpcID, err)
	}

	return &provider.Result{ID: igwID}, nil
}

func (p *Provider) deleteInternetGateway(ctx context.Context, req *provider.Request) error {
	// Detach before delete; the VPC comes from the resolved parameters.
	if vpcID := strParam(req.Params, "vpc"); vpcID != "" {
		_, err := p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: &req.ID,
			VpcId:             &vpcID,
		})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to detach internet gateway %s: %w", req.ID, err)
		}
	}

	_, err := p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{InternetGatewayId: &req.ID})
	if err != nil {
		return fmt.Errorf("failed to delete internet gateway %s: %w", req.ID, err)
	}
	return nil
}

func (p *Provider) findNatGateway(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	filters := append(nameFilter(req.Name), ec2types.Filter{
		Name:   strPtr("state"),
		Values: []string{"pending", "available"},
	})
	resp, err := p.ec2Client.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{Filter: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to describe NAT gateways: %w", err)
	}
	if len(resp.NatGateways) == 0 {
		return nil, nil
	}

	nat := resp.NatGateways[0]
	attrs := map[string]string{}
	if len(nat.NatGatewayAddresses) > 0 && nat.NatGatewayAddresses[0].AllocationId != nil {
		attrs["allocation_id"] = *nat.NatGatewayAddresses[0].AllocationId
	}
	return &provider.Result{ID: *nat.NatGatewayId, Attrs: attrs}, nil
}

// createNatGateway allocates an Elastic IP, creates the NAT gateway in the
// given subnet and blocks until it is available: a route pointing at a NAT
// gateway that is still pending is silently useless.
func (p *Provider) createNatGateway(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	alloc, err := p.ec2Client.AllocateAddress(ctx, &ec2.AllocateAddressInput{
		Domain:            ec2types.DomainTypeVpc,
		TagSpecifications: tagSpec(ec2types.ResourceTypeElasticIp, req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate Elastic IP: %w", err)
	}

	resp, err := p.ec2Client.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:          strPtr(strParam(req.Params, "subnet")),
		AllocationId:      alloc.AllocationId,
		TagSpecifications: tagSpec(ec2types.ResourceTypeNatgateway, req.Name),
	})
	if err != nil {
		// The gateway never came into being; don't leak the address.
		_, _ = p.ec2Client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: alloc.AllocationId})
		return nil, fmt.Errorf("failed to create NAT gateway: %w", err)
	}
	natID := *resp.NatGateway.NatGatewayId

	waiter := ec2.NewNatGatewayAvailableWaiter(p.ec2Client)
	if err := waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{
		NatGatewayIds: []string{natID},
	}, natGatewayWait); err != nil {
		return nil, fmt.Errorf("NAT gateway %s did not become available: %w", natID, err)
	}

	return &provider.Result{
		ID: natID,
		Attrs: map[string]string{
			"allocation_id": *alloc.AllocationId,
			"public_ip":     *alloc.PublicIp,
		},
	}, nil
}

func (p *Provider) deleteNatGateway(ctx context.Context, req *provider.Request) error {
	_, err := p.ec2Client.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{NatGatewayId: &req.ID})
	if err != nil {
		return fmt.Errorf("failed to delete NAT gateway %s: %w", req.ID, err)
	}

	// The Elastic IP stays bound until the gateway is fully gone.
	waiter := ec2.NewNatGatewayDeletedWaiter(p.ec2Client)
	if err := waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{
		NatGatewayIds: []string{req.ID},
	}, natGatewayWait); err != nil {
		return fmt.Errorf("NAT gateway %s did not finish deleting: %w", req.ID, err)
	}

	if allocID, ok := req.Attrs["allocation_id"]; ok {
		_, err := p.ec2Client.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{AllocationId: &allocID})
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to release Elastic IP %s: %w", allocID, err)
		}
	}
	return nil
}

// RouteTable

func (p *Provider) findRouteTable(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: nameFilter(req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe route tables: %w", err)
	}
	if len(resp.RouteTables) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.RouteTables[0].RouteTableId}, nil
}

func (p *Provider) createRouteTable(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             strPtr(strParam(req.Params, "vpc")),
		TagSpecifications: tagSpec(ec2types.ResourceTypeRouteTable, req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := *resp.RouteTable.RouteTableId

	routes, _ := req.Params["routes"].([]any)
	for _, raw := range routes {
		route, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		input := &ec2.CreateRouteInput{
			RouteTableId:         &rtID,
			DestinationCidrBlock: strPtr(strParam(route, "destination")),
		}
		// The gateway reference has been resolved to an identifier by the
		// engine; the prefix tells the two gateway flavors apart.
		gatewayID := strParam(route, "gateway")
		if strings.HasPrefix(gatewayID, "nat-") {
			input.NatGatewayId = &gatewayID
		} else {
			input.GatewayId = &gatewayID
		}
		if _, err := p.ec2Client.CreateRoute(ctx, input); err != nil {
			return nil, fmt.Errorf("failed to create route on %s: %w", rtID, err)
		}
	}

	for _, subnetID := range strSliceParam(req.Params, "subnets") {
		_, err := p.ec2Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: &rtID,
			SubnetId:     &subnetID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to associate route table %s with %s: %w", rtID, subnetID, err)
		}
	}

	return &provider.Result{ID: rtID}, nil
}

func (p *Provider) deleteRouteTable(ctx context.Context, req *provider.Request) error {
	// Subnet associations block deletion and have to go first.
	resp, err := p.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{req.ID},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to describe route table %s: %w", req.ID, err)
	}
	for _, rt := range resp.RouteTables {
		for _, assoc := range rt.Associations {
			if assoc.Main != nil && *assoc.Main {
				continue
			}
			if assoc.RouteTableAssociationId == nil {
				continue
			}
			_, err := p.ec2Client.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: assoc.RouteTableAssociationId,
			})
			if err != nil && !isNotFound(err) {
				return fmt.Errorf("failed to disassociate route table %s: %w", req.ID, err)
			}
		}
	}

	_, err = p.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: &req.ID})
	if err != nil {
		return fmt.Errorf("failed to delete route table %s: %w", req.ID, err)
	}
	return nil
}

// SecurityGroup

func (p *Provider) findSecurityGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: nameFilter(req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe security groups: %w", err)
	}
	if len(resp.SecurityGroups) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.SecurityGroups[0].GroupId}, nil
}

func (p *Provider) createSecurityGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	description := strParam(req.Params, "description")
	if description == "" {
		description = "managed by stratus"
	}

	resp, err := p.ec2Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:         &req.Name,
		Description:       &description,
		VpcId:             strPtr(strParam(req.Params, "vpc")),
		TagSpecifications: tagSpec(ec2types.ResourceTypeSecurityGroup, req.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create security group: %w", err)
	}
	groupID := *resp.GroupId

	if perms := rulePermissions(req.Params, "ingress"); len(perms) > 0 {
		_, err := p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       &groupID,
			IpPermissions: perms,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to authorize ingress on %s: %w", groupID, err)
		}
	}
	if perms := rulePermissions(req.Params, "egress"); len(perms) > 0 {
		_, err := p.ec2Client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       &groupID,
			IpPermissions: perms,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to authorize egress on %s: %w", groupID, err)
		}
	}

	return &provider.Result{ID: groupID}, nil
}

func (p *Provider) deleteSecurityGroup(ctx context.Context, req *provider.Request) error {
	_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: &req.ID})
	if err != nil {
		return fmt.Errorf("failed to delete security group %s: %w", req.ID, err)
	}
	return nil
}

// rulePermissions translates a list of rule parameters into IP permissions.
// A rule grants either to CIDR blocks or to another security group (by its
// resolved identifier), which is how tier-to-tier policy is expressed.
func rulePermissions(params map[string]any, key string) []ec2types.IpPermission {
	rules, _ := params[key].([]any)
	var perms []ec2types.IpPermission
	for _, raw := range rules {
		rule, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		perm := ec2types.IpPermission{
			IpProtocol: strPtr(strParam(rule, "protocol")),
			FromPort:   int32Ptr(int32Param(rule, "from_port")),
			ToPort:     int32Ptr(int32Param(rule, "to_port")),
		}
		for _, cidr := range strSliceParam(rule, "cidr_blocks") {
			perm.IpRanges = append(perm.IpRanges, ec2types.IpRange{CidrIp: strPtr(cidr)})
		}
		if sg := strParam(rule, "security_group"); sg != "" {
			perm.UserIdGroupPairs = append(perm.UserIdGroupPairs, ec2types.UserIdGroupPair{GroupId: &sg})
		}
		perms = append(perms, perm)
	}
	return perms
}
