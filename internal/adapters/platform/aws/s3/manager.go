// Package s3 owns bucket provisioning and object writes. Bucket
// existence is probed with a head call; only a not-found classification
// triggers creation, everything else propagates unmodified.
package s3

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/awserrors"
	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

// Buckets in the provider's default region must be created without a
// location constraint.
const defaultRegion = "us-east-1"

type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
	PutBucketEncryption(ctx context.Context, params *s3.PutBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.PutBucketEncryptionOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Encryption is the bucket default-encryption setting from config.
type Encryption struct {
	Type      string `mapstructure:"type" validate:"required,oneof=AES256 aws:kms"`
	KMSKeyARN string `mapstructure:"kms_key_arn"`
}

type Manager struct {
	client S3API
	logger ports.Logger
}

func NewManager(client S3API, logger ports.Logger) *Manager {
	return &Manager{client: client, logger: logger}
}

func (m *Manager) EnsureBucket(ctx context.Context, name, region string) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err == nil {
		m.logger.Infof(ctx, "Reusing bucket %q", name)
		return nil
	}
	if !awserrors.IsNotFound(err) {
		return awserrors.Classify(ctx, err, domain.KindStorageBucket.String(), name)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if region != defaultRegion {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	if _, err := m.client.CreateBucket(ctx, input); err != nil {
		if awserrors.IsAlreadyExists(err) {
			return nil
		}
		return awserrors.Classify(ctx, err, domain.KindStorageBucket.String(), name)
	}
	m.logger.Infof(ctx, "Created bucket %q in %s", name, region)
	return nil
}

// EnableVersioning is an unconditional idempotent upsert.
func (m *Manager) EnableVersioning(ctx context.Context, name string) error {
	if _, err := m.client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(name),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	}); err != nil {
		return awserrors.Classify(ctx, err, domain.KindStorageBucket.String(), name)
	}
	return nil
}

// ApplyEncryption is an unconditional idempotent upsert of the bucket
// default encryption rule.
func (m *Manager) ApplyEncryption(ctx context.Context, name string, enc Encryption) error {
	byDefault := &s3types.ServerSideEncryptionByDefault{
		SSEAlgorithm: s3types.ServerSideEncryption(enc.Type),
	}
	if enc.KMSKeyARN != "" {
		byDefault.KMSMasterKeyID = aws.String(enc.KMSKeyARN)
	}

	if _, err := m.client.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
		Bucket: aws.String(name),
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{
				{ApplyServerSideEncryptionByDefault: byDefault},
			},
		},
	}); err != nil {
		return awserrors.Classify(ctx, err, domain.KindStorageBucket.String(), name)
	}
	return nil
}

// WriteObject stores one document; the ingest pipeline uses it for raw
// and curated payloads.
func (m *Manager) WriteObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}); err != nil {
		return awserrors.Classify(ctx, err, domain.KindStorageBucket.String(), bucket+"/"+key)
	}
	return nil
}
