// Package secrets reads structured payloads from Secrets Manager. A
// missing secret or field is a configuration error: it fails the run
// immediately and is never retried.
package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Accessor struct {
	client SecretsAPI
	logger ports.Logger
}

func NewAccessor(client SecretsAPI, logger ports.Logger) *Accessor {
	return &Accessor{client: client, logger: logger}
}

func (a *Accessor) payload(ctx context.Context, secretName string) (map[string]string, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		if awserrors.IsNotFound(err) {
			return nil, apperrors.WrapUserFacing(err, apperrors.CodeSecretMissing,
				fmt.Sprintf("secret %q does not exist", secretName),
				"Create the secret or fix the configured secret name.")
		}
		return nil, awserrors.Classify(ctx, err, "Secret", secretName)
	}
	if aws.ToString(out.SecretString) == "" {
		return nil, apperrors.NewUserFacing(apperrors.CodeSecretMissing,
			fmt.Sprintf("secret %q carries no string payload", secretName),
			"Store the secret as a JSON key/value document.")
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &fields); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSecretMissing,
			fmt.Sprintf("secret %q payload is not a flat JSON document", secretName))
	}
	return fields, nil
}

// FetchCredentials extracts the two named fields. The returned value is
// held in memory only for the provisioning call that consumes it and is
// never logged.
func (a *Accessor) FetchCredentials(ctx context.Context, secretName, usernameKey, passwordKey string) (domain.Credentials, error) {
	fields, err := a.payload(ctx, secretName)
	if err != nil {
		return domain.Credentials{}, err
	}

	username, ok := fields[usernameKey]
	if !ok {
		return domain.Credentials{}, apperrors.NewUserFacing(apperrors.CodeSecretMissing,
			fmt.Sprintf("secret %q is missing field %q", secretName, usernameKey),
			"Add the field to the secret payload.")
	}
	password, ok := fields[passwordKey]
	if !ok {
		return domain.Credentials{}, apperrors.NewUserFacing(apperrors.CodeSecretMissing,
			fmt.Sprintf("secret %q is missing field %q", secretName, passwordKey),
			"Add the field to the secret payload.")
	}

	a.logger.Debugf(ctx, "Fetched credentials from secret %q", secretName)
	return domain.Credentials{Username: username, Password: password}, nil
}

// FetchField returns a single named field, used for flat API-key style
// secrets.
func (a *Accessor) FetchField(ctx context.Context, secretName, key string) (string, error) {
	fields, err := a.payload(ctx, secretName)
	if err != nil {
		return "", err
	}
	value, ok := fields[key]
	if !ok {
		return "", apperrors.NewUserFacing(apperrors.CodeSecretMissing,
			fmt.Sprintf("secret %q is missing field %q", secretName, key),
			"Add the field to the secret payload.")
	}
	return value, nil
}
