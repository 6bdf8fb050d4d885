package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/stratus-io/stratus/internal/provider"
)

const dbInstanceWait = 20 * time.Minute

// DatabaseSubnetGroup. The group's AWS identifier is its name.

func (p *Provider) findDatabaseSubnetGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.rdsClient.DescribeDBSubnetGroups(ctx, &rds.DescribeDBSubnetGroupsInput{
		DBSubnetGroupName: &req.Name,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe DB subnet group %s: %w", req.Name, err)
	}
	if len(resp.DBSubnetGroups) == 0 {
		return nil, nil
	}
	return &provider.Result{ID: *resp.DBSubnetGroups[0].DBSubnetGroupName}, nil
}

func (p *Provider) createDatabaseSubnetGroup(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	description := strParam(req.Params, "description")
	if description == "" {
		description = "managed by stratus"
	}

	resp, err := p.rdsClient.CreateDBSubnetGroup(ctx, &rds.CreateDBSubnetGroupInput{
		DBSubnetGroupName:        &req.Name,
		DBSubnetGroupDescription: &description,
		SubnetIds:                strSliceParam(req.Params, "subnets"),
		Tags: []rdstypes.Tag{
			{Key: strPtr(tagName), Value: strPtr(req.Name)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DB subnet group: %w", err)
	}
	return &provider.Result{ID: *resp.DBSubnetGroup.DBSubnetGroupName}, nil
}

func (p *Provider) deleteDatabaseSubnetGroup(ctx context.Context, req *provider.Request) error {
	_, err := p.rdsClient.DeleteDBSubnetGroup(ctx, &rds.DeleteDBSubnetGroupInput{
		DBSubnetGroupName: &req.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete DB subnet group %s: %w", req.ID, err)
	}
	return nil
}

// DatabaseInstance. The instance's AWS identifier is its name.

func (p *Provider) findDatabaseInstance(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	resp, err := p.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: &req.Name,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe DB instance %s: %w", req.Name, err)
	}
	if len(resp.DBInstances) == 0 {
		return nil, nil
	}

	db := resp.DBInstances[0]
	attrs := map[string]string{}
	if db.Endpoint != nil && db.Endpoint.Address != nil {
		attrs["endpoint"] = *db.Endpoint.Address
	}
	return &provider.Result{ID: *db.DBInstanceIdentifier, Attrs: attrs}, nil
}

// createDatabaseInstance provisions the instance and blocks until it is
// available, which for RDS can take the better part of the per-resource
// timeout.
func (p *Provider) createDatabaseInstance(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	input := &rds.CreateDBInstanceInput{
		DBInstanceIdentifier: &req.Name,
		Engine:               strPtr(strParam(req.Params, "engine")),
		DBInstanceClass:      strPtr(strParam(req.Params, "instance_class")),
		DBSubnetGroupName:    strPtr(strParam(req.Params, "subnet_group")),
		PubliclyAccessible:   boolPtr(false),
		Tags: []rdstypes.Tag{
			{Key: strPtr(tagName), Value: strPtr(req.Name)},
		},
	}
	if storage := int32Param(req.Params, "allocated_storage"); storage > 0 {
		input.AllocatedStorage = &storage
	}
	if username := strParam(req.Params, "username"); username != "" {
		input.MasterUsername = &username
	}
	if password := strParam(req.Params, "password"); password != "" {
		input.MasterUserPassword = &password
	}
	if sgs := strSliceParam(req.Params, "security_groups"); len(sgs) > 0 {
		input.VpcSecurityGroupIds = sgs
	}
	if boolParam(req.Params, "multi_az") {
		input.MultiAZ = boolPtr(true)
	}

	resp, err := p.rdsClient.CreateDBInstance(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create DB instance: %w", err)
	}
	id := *resp.DBInstance.DBInstanceIdentifier

	waiter := rds.NewDBInstanceAvailableWaiter(p.rdsClient)
	if err := waiter.Wait(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: &id,
	}, dbInstanceWait); err != nil {
		return nil, fmt.Errorf("DB instance %s did not become available: %w", id, err)
	}

	attrs := map[string]string{}
	described, err := p.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: &id,
	})
	if err == nil && len(described.DBInstances) > 0 {
		db := described.DBInstances[0]
		if db.Endpoint != nil && db.Endpoint.Address != nil {
			attrs["endpoint"] = *db.Endpoint.Address
		}
	}

	return &provider.Result{ID: id, Attrs: attrs}, nil
}

// deleteDatabaseInstance skips the final snapshot: rollback and destroy
// tear down infrastructure this tool created, and a snapshot would block
// the DB subnet group's deletion behind it.
func (p *Provider) deleteDatabaseInstance(ctx context.Context, req *provider.Request) error {
	_, err := p.rdsClient.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
		DBInstanceIdentifier: &req.ID,
		SkipFinalSnapshot:    boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete DB instance %s: %w", req.ID, err)
	}

	// The subnet group can only go once the instance is fully gone.
	waiter := rds.NewDBInstanceDeletedWaiter(p.rdsClient)
	if err := waiter.Wait(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: &req.ID,
	}, dbInstanceWait); err != nil {
		return fmt.Errorf("DB instance %s did not finish deleting: %w", req.ID, err)
	}
	return nil
}
