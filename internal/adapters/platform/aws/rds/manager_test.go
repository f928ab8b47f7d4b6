package rds_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsrds "github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/rds"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/log"
)

type mockRDS struct {
	mock.Mock
}

func (m *mockRDS) DescribeDBSubnetGroups(ctx context.Context, params *awsrds.DescribeDBSubnetGroupsInput, optFns ...func(*awsrds.Options)) (*awsrds.DescribeDBSubnetGroupsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*awsrds.DescribeDBSubnetGroupsOutput), args.Error(1)
}

func (m *mockRDS) CreateDBSubnetGroup(ctx context.Context, params *awsrds.CreateDBSubnetGroupInput, optFns ...func(*awsrds.Options)) (*awsrds.CreateDBSubnetGroupOutput, error) {
	args := m.Called(ctx, params)
	return &awsrds.CreateDBSubnetGroupOutput{}, args.Error(1)
}

func (m *mockRDS) DescribeDBInstances(ctx context.Context, params *awsrds.DescribeDBInstancesInput, optFns ...func(*awsrds.Options)) (*awsrds.DescribeDBInstancesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*awsrds.DescribeDBInstancesOutput), args.Error(1)
}

func (m *mockRDS) CreateDBInstance(ctx context.Context, params *awsrds.CreateDBInstanceInput, optFns ...func(*awsrds.Options)) (*awsrds.CreateDBInstanceOutput, error) {
	args := m.Called(ctx, params)
	return &awsrds.CreateDBInstanceOutput{}, args.Error(1)
}

type codedError struct{ code string }

func (e *codedError) Error() string     { return e.code }
func (e *codedError) ErrorCode() string { return e.code }

func pgSpec() rds.InstanceSpec {
	return rds.InstanceSpec{
		Identifier:          "app-prod-pg",
		Engine:              "postgres",
		EngineVersion:       "16.3",
		InstanceClass:       "db.t4g.medium",
		AllocatedStorage:    50,
		StorageEncrypted:    true,
		MultiAZ:             true,
		DeletionProtection:  true,
		BackupRetentionDays: 7,
		BackupWindow:        "03:00-04:00",
		MaintenanceWindow:   "sun:04:30-sun:05:30",
		DBName:              "app",
	}
}

func creds() domain.Credentials {
	return domain.Credentials{Username: "admin", Password: "s3cret"}
}

func TestEnsurePostgresReusesExistingWithoutReconciling(t *testing.T) {
	client := new(mockRDS)
	client.On("DescribeDBInstances", mock.Anything, mock.Anything).Return(&awsrds.DescribeDBInstancesOutput{}, nil)

	m := rds.NewManager(client, log.NewNop())
	id, err := m.EnsurePostgres(context.Background(), pgSpec(), "app-prod-dbsubnets", "sg-1", creds(), domain.BaseTags("app", "prod"))

	require.NoError(t, err)
	assert.Equal(t, "app-prod-pg", id)
	client.AssertNotCalled(t, "CreateDBInstance", mock.Anything, mock.Anything)
}

func TestEnsurePostgresCreatesWithFullParameterSet(t *testing.T) {
	client := new(mockRDS)
	client.On("DescribeDBInstances", mock.Anything, mock.Anything).Return(nil, &codedError{code: "DBInstanceNotFound"})
	client.On("CreateDBInstance", mock.Anything, mock.MatchedBy(func(in *awsrds.CreateDBInstanceInput) bool {
		return aws.ToString(in.MasterUsername) == "admin" &&
			aws.ToString(in.DBSubnetGroupName) == "app-prod-dbsubnets" &&
			aws.ToBool(in.StorageEncrypted) &&
			aws.ToBool(in.MultiAZ) &&
			aws.ToBool(in.DeletionProtection) &&
			in.DBParameterGroupName == nil &&
			len(in.VpcSecurityGroupIds) == 1
	})).Return(nil, nil)

	m := rds.NewManager(client, log.NewNop())
	id, err := m.EnsurePostgres(context.Background(), pgSpec(), "app-prod-dbsubnets", "sg-1", creds(), domain.BaseTags("app", "prod"))

	require.NoError(t, err)
	assert.Equal(t, "app-prod-pg", id)
	client.AssertExpectations(t)
}

func TestEnsurePostgresOtherProbeErrorPropagates(t *testing.T) {
	client := new(mockRDS)
	client.On("DescribeDBInstances", mock.Anything, mock.Anything).Return(nil, &codedError{code: "Throttling"})

	m := rds.NewManager(client, log.NewNop())
	_, err := m.EnsurePostgres(context.Background(), pgSpec(), "grp", "sg-1", creds(), domain.BaseTags("app", "prod"))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeTransient))
}

func TestEnsureDBSubnetGroupCreatesWhenAbsent(t *testing.T) {
	client := new(mockRDS)
	client.On("DescribeDBSubnetGroups", mock.Anything, mock.Anything).Return(nil, &codedError{code: "DBSubnetGroupNotFoundFault"})
	client.On("CreateDBSubnetGroup", mock.Anything, mock.MatchedBy(func(in *awsrds.CreateDBSubnetGroupInput) bool {
		return aws.ToString(in.DBSubnetGroupName) == "app-prod-dbsubnets" && len(in.SubnetIds) == 2
	})).Return(nil, nil)

	m := rds.NewManager(client, log.NewNop())
	name, err := m.EnsureDBSubnetGroup(context.Background(), "app-prod-dbsubnets", []string{"subnet-a", "subnet-b"}, domain.BaseTags("app", "prod"))

	require.NoError(t, err)
	assert.Equal(t, "app-prod-dbsubnets", name)
}

func TestEnsureDBSubnetGroupReusesExisting(t *testing.T) {
	client := new(mockRDS)
	client.On("DescribeDBSubnetGroups", mock.Anything, mock.Anything).Return(&awsrds.DescribeDBSubnetGroupsOutput{}, nil)

	m := rds.NewManager(client, log.NewNop())
	name, err := m.EnsureDBSubnetGroup(context.Background(), "app-prod-dbsubnets", []string{"subnet-a"}, domain.BaseTags("app", "prod"))

	require.NoError(t, err)
	assert.Equal(t, "app-prod-dbsubnets", name)
	client.AssertNotCalled(t, "CreateDBSubnetGroup", mock.Anything, mock.Anything)
}
