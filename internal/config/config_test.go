package config_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/infra-deployer/internal/config"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
)

const validDocument = `
settings:
  log_level: debug
  log_format: json
  api_rps: 10
project:
  name: app
  environment: staging
  region: eu-west-1
retry:
  default:
    max_attempts: 4
    backoff: 3s
  slow:
    max_attempts: 2
    backoff: 45s
network:
  vpc:
    cidr: 10.0.0.0/16
    az_count: 2
  subnets:
    public:
      cidr_blocks: [10.0.1.0/24]
    private:
      cidr_blocks: [10.0.101.0/24]
security_group:
  name_suffix: app-sg
  ingress:
    - protocol: tcp
      from_port: 443
      to_port: 443
      cidr: 0.0.0.0/0
compute:
  iam:
    instance_profile: app-profile
    role_name: app-role
  launch_template:
    name_suffix: lt
    image_id: ami-1
    instance_type: t3.micro
  auto_scaling:
    name_suffix: asg
    desired: 1
    min: 1
    max: 2
    target_cpu_percent: 55
database:
  identifier: app-staging-pg
  engine: postgres
  engine_version: "16.3"
  instance_class: db.t4g.micro
  allocated_storage: 20
  db_name: app
  subnet_group: dbsubnets
  secret_name: app/staging/db
  username_key: username
  password_key: password
storage:
  raw_bucket: app-staging-raw
  curated_bucket: app-staging-curated
  encryption:
    type: AES256
`

func loadFromYAML(t *testing.T, document string) (*config.Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(document)))
	return config.Load(context.Background(), v)
}

func TestLoadDecodesFullDocument(t *testing.T) {
	cfg, err := loadFromYAML(t, validDocument)
	require.NoError(t, err)

	assert.Equal(t, "app", cfg.Project.Name)
	assert.Equal(t, 10, cfg.Settings.APIRPS)
	assert.Equal(t, 4, cfg.Retry.Default.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Retry.Default.BaseBackoff)
	assert.Equal(t, 45*time.Second, cfg.Retry.Slow.BaseBackoff)
	assert.Equal(t, []string{"10.0.101.0/24"}, cfg.Network.Subnets.Private.CIDRBlocks)
	assert.Equal(t, int32(443), cfg.SecurityGroup.Ingress[0].ToPort)
	assert.Equal(t, "app-staging-pg", cfg.Database.Identifier)
	assert.Nil(t, cfg.Ingest)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	broken := strings.Replace(validDocument, "region: eu-west-1", "", 1)

	_, err := loadFromYAML(t, broken)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigValidation))
	assert.Contains(t, err.Error(), "Region")
}

func TestLoadRejectsMalformedCIDR(t *testing.T) {
	broken := strings.Replace(validDocument, "cidr: 10.0.0.0/16", "cidr: not-a-cidr", 1)

	_, err := loadFromYAML(t, broken)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigValidation))
}

func TestResourceNameUsesProjectAndEnvironment(t *testing.T) {
	cfg, err := loadFromYAML(t, validDocument)
	require.NoError(t, err)

	assert.Equal(t, "app-staging-vpc", cfg.ResourceName("vpc"))
}

func TestIngestSectionIsOptionalUntilRequested(t *testing.T) {
	cfg, err := loadFromYAML(t, validDocument)
	require.NoError(t, err)

	_, err = cfg.IngestOrError()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeConfigValidation))
}
