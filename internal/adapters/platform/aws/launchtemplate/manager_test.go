package launchtemplate_test

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/launchtemplate"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/log"
)

type mockEC2 struct {
	mock.Mock
}

func (m *mockEC2) DescribeLaunchTemplates(ctx context.Context, params *ec2.DescribeLaunchTemplatesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeLaunchTemplatesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.DescribeLaunchTemplatesOutput), args.Error(1)
}

func (m *mockEC2) CreateLaunchTemplate(ctx context.Context, params *ec2.CreateLaunchTemplateInput, optFns ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ec2.CreateLaunchTemplateOutput), args.Error(1)
}

type codedError struct{ code string }

func (e *codedError) Error() string     { return e.code }
func (e *codedError) ErrorCode() string { return e.code }

func webSpec() launchtemplate.Spec {
	return launchtemplate.Spec{
		Name:             "app-prod-lt",
		ImageID:          "ami-123",
		InstanceType:     "t3.medium",
		InstanceProfile:  "app-prod-profile",
		SecurityGroupIDs: []string{"sg-1"},
		UserData:         "#!/bin/sh\necho boot",
	}
}

func TestEnsureLaunchTemplateReusesByName(t *testing.T) {
	client := new(mockEC2)
	client.On("DescribeLaunchTemplates", mock.Anything, mock.Anything).Return(&ec2.DescribeLaunchTemplatesOutput{
		LaunchTemplates: []ec2types.LaunchTemplate{{LaunchTemplateId: aws.String("lt-1")}},
	}, nil)

	m := launchtemplate.NewManager(client, log.NewNop())
	id, err := m.EnsureLaunchTemplate(context.Background(), webSpec(), domain.BaseTags("app", "prod"))

	require.NoError(t, err)
	assert.Equal(t, "lt-1", id)
	client.AssertNotCalled(t, "CreateLaunchTemplate", mock.Anything, mock.Anything)
}

func TestEnsureLaunchTemplateNotFoundErrorTriggersCreate(t *testing.T) {
	client := new(mockEC2)
	client.On("DescribeLaunchTemplates", mock.Anything, mock.Anything).Return(nil, &codedError{code: "InvalidLaunchTemplateName.NotFoundException"})
	client.On("CreateLaunchTemplate", mock.Anything, mock.MatchedBy(func(in *ec2.CreateLaunchTemplateInput) bool {
		encoded := base64.StdEncoding.EncodeToString([]byte("#!/bin/sh\necho boot"))
		return aws.ToString(in.LaunchTemplateName) == "app-prod-lt" &&
			aws.ToString(in.LaunchTemplateData.UserData) == encoded &&
			len(in.LaunchTemplateData.TagSpecifications) == 2
	})).Return(&ec2.CreateLaunchTemplateOutput{
		LaunchTemplate: &ec2types.LaunchTemplate{LaunchTemplateId: aws.String("lt-new")},
	}, nil)

	m := launchtemplate.NewManager(client, log.NewNop())
	id, err := m.EnsureLaunchTemplate(context.Background(), webSpec(), domain.BaseTags("app", "prod"))

	require.NoError(t, err)
	assert.Equal(t, "lt-new", id)
}

func TestEnsureLaunchTemplateOtherLookupErrorPropagates(t *testing.T) {
	client := new(mockEC2)
	client.On("DescribeLaunchTemplates", mock.Anything, mock.Anything).Return(nil, &codedError{code: "Throttling"})

	m := launchtemplate.NewManager(client, log.NewNop())
	_, err := m.EnsureLaunchTemplate(context.Background(), webSpec(), domain.BaseTags("app", "prod"))

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeTransient))
	client.AssertNotCalled(t, "CreateLaunchTemplate", mock.Anything, mock.Anything)
}
