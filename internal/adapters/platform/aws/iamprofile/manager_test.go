package iamprofile_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/iamprofile"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/log"
)

type mockIAM struct {
	mock.Mock
}

func (m *mockIAM) GetInstanceProfile(ctx context.Context, params *iam.GetInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*iam.GetInstanceProfileOutput), args.Error(1)
}

func (m *mockIAM) CreateInstanceProfile(ctx context.Context, params *iam.CreateInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.CreateInstanceProfileOutput, error) {
	args := m.Called(ctx, params)
	return &iam.CreateInstanceProfileOutput{}, args.Error(1)
}

func (m *mockIAM) AddRoleToInstanceProfile(ctx context.Context, params *iam.AddRoleToInstanceProfileInput, optFns ...func(*iam.Options)) (*iam.AddRoleToInstanceProfileOutput, error) {
	args := m.Called(ctx, params)
	return &iam.AddRoleToInstanceProfileOutput{}, args.Error(1)
}

type codedError struct{ code string }

func (e *codedError) Error() string     { return e.code }
func (e *codedError) ErrorCode() string { return e.code }

func TestEnsureInstanceProfileReusesExisting(t *testing.T) {
	client := new(mockIAM)
	client.On("GetInstanceProfile", mock.Anything, mock.Anything).Return(&iam.GetInstanceProfileOutput{}, nil)

	m := iamprofile.NewManager(client, log.NewNop())
	name, err := m.EnsureInstanceProfile(context.Background(), "app-prod-profile", "app-prod-role")

	require.NoError(t, err)
	assert.Equal(t, "app-prod-profile", name)
	client.AssertNotCalled(t, "CreateInstanceProfile", mock.Anything, mock.Anything)
}

func TestEnsureInstanceProfileCreatesOnNotFound(t *testing.T) {
	client := new(mockIAM)
	client.On("GetInstanceProfile", mock.Anything, mock.Anything).Return(nil, &codedError{code: "NoSuchEntity"})
	client.On("CreateInstanceProfile", mock.Anything, mock.Anything).Return(nil, nil)
	client.On("AddRoleToInstanceProfile", mock.Anything, mock.Anything).Return(nil, nil)

	m := iamprofile.NewManager(client, log.NewNop())
	name, err := m.EnsureInstanceProfile(context.Background(), "app-prod-profile", "app-prod-role")

	require.NoError(t, err)
	assert.Equal(t, "app-prod-profile", name)
	client.AssertExpectations(t)
}

func TestEnsureInstanceProfilePropagatesOtherLookupErrors(t *testing.T) {
	client := new(mockIAM)
	client.On("GetInstanceProfile", mock.Anything, mock.Anything).Return(nil, &codedError{code: "AccessDenied"})

	m := iamprofile.NewManager(client, log.NewNop())
	_, err := m.EnsureInstanceProfile(context.Background(), "app-prod-profile", "app-prod-role")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodePlatformAuth))
	client.AssertNotCalled(t, "CreateInstanceProfile", mock.Anything, mock.Anything)
}
