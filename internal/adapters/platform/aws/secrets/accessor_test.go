package secrets_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/secrets"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/log"
)

type mockSecrets struct {
	mock.Mock
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsmanager.GetSecretValueOutput), args.Error(1)
}

type codedError struct{ code string }

func (e *codedError) Error() string     { return e.code }
func (e *codedError) ErrorCode() string { return e.code }

func TestFetchCredentialsExtractsNamedFields(t *testing.T) {
	client := new(mockSecrets)
	client.On("GetSecretValue", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return aws.ToString(in.SecretId) == "app/prod/db"
	})).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"db_user":"admin","db_pass":"s3cret"}`),
	}, nil)

	a := secrets.NewAccessor(client, log.NewNop())
	creds, err := a.FetchCredentials(context.Background(), "app/prod/db", "db_user", "db_pass")

	require.NoError(t, err)
	assert.Equal(t, "admin", creds.Username)
	assert.Equal(t, "s3cret", creds.Password)
}

func TestFetchCredentialsEmptyPayloadIsConfigError(t *testing.T) {
	client := new(mockSecrets)
	client.On("GetSecretValue", mock.Anything, mock.Anything).Return(&secretsmanager.GetSecretValueOutput{}, nil)

	a := secrets.NewAccessor(client, log.NewNop())
	_, err := a.FetchCredentials(context.Background(), "app/prod/db", "u", "p")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSecretMissing))
}

func TestFetchCredentialsMissingFieldIsConfigError(t *testing.T) {
	client := new(mockSecrets)
	client.On("GetSecretValue", mock.Anything, mock.Anything).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"db_user":"admin"}`),
	}, nil)

	a := secrets.NewAccessor(client, log.NewNop())
	_, err := a.FetchCredentials(context.Background(), "app/prod/db", "db_user", "db_pass")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSecretMissing))
}

func TestFetchCredentialsMissingSecretIsNotTransient(t *testing.T) {
	client := new(mockSecrets)
	client.On("GetSecretValue", mock.Anything, mock.Anything).Return(nil, &codedError{code: "ResourceNotFoundException"})

	a := secrets.NewAccessor(client, log.NewNop())
	_, err := a.FetchCredentials(context.Background(), "app/prod/db", "u", "p")

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeSecretMissing))
	assert.False(t, apperrors.Is(err, apperrors.CodeTransient))
}

func TestFetchFieldReturnsSingleValue(t *testing.T) {
	client := new(mockSecrets)
	client.On("GetSecretValue", mock.Anything, mock.Anything).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"api_key":"k-123"}`),
	}, nil)

	a := secrets.NewAccessor(client, log.NewNop())
	key, err := a.FetchField(context.Background(), "app/prod/rapidapi", "api_key")

	require.NoError(t, err)
	assert.Equal(t, "k-123", key)
}
