// Package rds ensures the database subnet group and postgres instance.
// A found instance is returned unchanged: configuration drift (size,
// engine version) is never reconciled here, resizing is a deliberate
// operator action.
package rds

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/probe"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

type RDSAPI interface {
	DescribeDBSubnetGroups(ctx context.Context, params *rds.DescribeDBSubnetGroupsInput, optFns ...func(*rds.Options)) (*rds.DescribeDBSubnetGroupsOutput, error)
	CreateDBSubnetGroup(ctx context.Context, params *rds.CreateDBSubnetGroupInput, optFns ...func(*rds.Options)) (*rds.CreateDBSubnetGroupOutput, error)
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	CreateDBInstance(ctx context.Context, params *rds.CreateDBInstanceInput, optFns ...func(*rds.Options)) (*rds.CreateDBInstanceOutput, error)
}

// InstanceSpec mirrors the database section of the configuration
// document. Credentials travel separately and are consumed exactly once
// by the creation call.
type InstanceSpec struct {
	Identifier          string `mapstructure:"identifier" validate:"required"`
	Engine              string `mapstructure:"engine" validate:"required"`
	EngineVersion       string `mapstructure:"engine_version" validate:"required"`
	InstanceClass       string `mapstructure:"instance_class" validate:"required"`
	AllocatedStorage    int32  `mapstructure:"allocated_storage" validate:"min=20"`
	StorageEncrypted    bool   `mapstructure:"storage_encrypted"`
	MultiAZ             bool   `mapstructure:"multi_az"`
	IAMAuthentication   bool   `mapstructure:"iam_authentication"`
	DeletionProtection  bool   `mapstructure:"deletion_protection"`
	BackupRetentionDays int32  `mapstructure:"backup_retention_days"`
	BackupWindow        string `mapstructure:"backup_window"`
	MaintenanceWindow   string `mapstructure:"maintenance_window"`
	DBName              string `mapstructure:"db_name" validate:"required"`
	ParameterGroupName  string `mapstructure:"parameter_group_name"`
}

type Manager struct {
	client RDSAPI
	logger ports.Logger
}

func NewManager(client RDSAPI, logger ports.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

func rdsTags(tags domain.TagSet) []rdstypes.Tag {
	out := make([]rdstypes.Tag, 0, len(tags))
	for _, k := range tags.SortedKeys() {
		out = append(out, rdstypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

// EnsureDBSubnetGroup keys on the group name.
func (m *Manager) EnsureDBSubnetGroup(ctx context.Context, name string, subnetIDs []string, tags domain.TagSet) (string, error) {
	_, err := m.client.DescribeDBSubnetGroups(ctx, &rds.DescribeDBSubnetGroupsInput{
		DBSubnetGroupName: aws.String(name),
	})
	if err == nil {
		m.logger.Infof(ctx, "Reusing DB subnet group %q", name)
		return name, nil
	}
	if !awserrors.IsNotFound(err) {
		return "", awserrors.Classify(ctx, err, domain.KindDBSubnetGroup.String(), name)
	}

	if _, err := m.client.CreateDBSubnetGroup(ctx, &rds.CreateDBSubnetGroupInput{
		DBSubnetGroupName:        aws.String(name),
		DBSubnetGroupDescription: aws.String("Private subnets for " + name),
		SubnetIds:                subnetIDs,
		Tags:                     rdsTags(tags.WithName(name)),
	}); err != nil {
		if awserrors.IsAlreadyExists(err) {
			return name, nil
		}
		return "", awserrors.Classify(ctx, err, domain.KindDBSubnetGroup.String(), name)
	}
	m.logger.Infof(ctx, "Created DB subnet group %q spanning %d subnets", name, len(subnetIDs))
	return name, nil
}

func (m *Manager) probeInstance(ctx context.Context, identifier string) (probe.Result, error) {
	_, err := m.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(identifier),
	})
	if err != nil {
		if awserrors.IsNotFound(err) {
			return probe.Absent(), nil
		}
		return probe.Result{}, awserrors.Classify(ctx, err, domain.KindDBInstance.String(), identifier)
	}
	return probe.Found(identifier), nil
}

// EnsurePostgres probes by identifier and creates with the full
// parameter set when absent. Credentials are written into the creation
// request only and never logged.
func (m *Manager) EnsurePostgres(ctx context.Context, spec InstanceSpec, subnetGroup, securityGroupID string, creds domain.Credentials, tags domain.TagSet) (string, error) {
	result, err := m.probeInstance(ctx, spec.Identifier)
	if err != nil {
		return "", err
	}
	if result.Found {
		m.logger.Infof(ctx, "Reusing RDS instance %q", spec.Identifier)
		return result.ID, nil
	}

	input := &rds.CreateDBInstanceInput{
		DBInstanceIdentifier:            aws.String(spec.Identifier),
		AllocatedStorage:                aws.Int32(spec.AllocatedStorage),
		DBInstanceClass:                 aws.String(spec.InstanceClass),
		Engine:                          aws.String(spec.Engine),
		EngineVersion:                   aws.String(spec.EngineVersion),
		MasterUsername:                  aws.String(creds.Username),
		MasterUserPassword:              aws.String(creds.Password),
		DBSubnetGroupName:               aws.String(subnetGroup),
		VpcSecurityGroupIds:             []string{securityGroupID},
		StorageEncrypted:                aws.Bool(spec.StorageEncrypted),
		BackupRetentionPeriod:           aws.Int32(spec.BackupRetentionDays),
		PreferredBackupWindow:           aws.String(spec.BackupWindow),
		PreferredMaintenanceWindow:      aws.String(spec.MaintenanceWindow),
		MultiAZ:                         aws.Bool(spec.MultiAZ),
		EnableIAMDatabaseAuthentication: aws.Bool(spec.IAMAuthentication),
		DeletionProtection:              aws.Bool(spec.DeletionProtection),
		DBName:                          aws.String(spec.DBName),
		Tags:                            rdsTags(tags.WithName(spec.Identifier)),
	}
	if spec.ParameterGroupName != "" {
		input.DBParameterGroupName = aws.String(spec.ParameterGroupName)
	}

	if _, err := m.client.CreateDBInstance(ctx, input); err != nil {
		return "", awserrors.Classify(ctx, err, domain.KindDBInstance.String(), spec.Identifier)
	}
	m.logger.Infof(ctx, "Created RDS instance %q (%s %s)", spec.Identifier, spec.Engine, spec.EngineVersion)
	return spec.Identifier, nil
}
