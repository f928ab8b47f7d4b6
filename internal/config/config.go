// Package config defines the typed configuration document and its
// loading path: viper source -> mapstructure decode -> validator pass.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/rds"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/securitygroup"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/log"
	"github.com/olusolaa/infra-deployer/internal/retry"
)

type Config struct {
	Settings      SettingsConfig      `mapstructure:"settings"`
	Project       ProjectConfig       `mapstructure:"project" validate:"required"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Network       NetworkConfig       `mapstructure:"network" validate:"required"`
	SecurityGroup SecurityGroupConfig `mapstructure:"security_group" validate:"required"`
	Compute       ComputeConfig       `mapstructure:"compute" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database" validate:"required"`
	Storage       StorageConfig       `mapstructure:"storage" validate:"required"`
	Ingest        *IngestConfig       `mapstructure:"ingest"`
}

type SettingsConfig struct {
	LogLevel  log.Level  `mapstructure:"log_level"`
	LogFormat log.Format `mapstructure:"log_format"`
	APIRPS    int        `mapstructure:"api_rps"`
}

type ProjectConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Region      string `mapstructure:"region" validate:"required"`
}

// RetryConfig carries two policies: Default for plain API calls and
// Slow for operations that converge over minutes, like the NAT gateway.
type RetryConfig struct {
	Default retry.Policy `mapstructure:"default"`
	Slow    retry.Policy `mapstructure:"slow"`
}

type NetworkConfig struct {
	VPC     VPCConfig     `mapstructure:"vpc" validate:"required"`
	Subnets SubnetsConfig `mapstructure:"subnets" validate:"required"`
}

type VPCConfig struct {
	CIDR    string `mapstructure:"cidr" validate:"required,cidrv4"`
	AZCount int    `mapstructure:"az_count" validate:"min=1,max=6"`
}

type SubnetsConfig struct {
	Public  SubnetTierConfig `mapstructure:"public" validate:"required"`
	Private SubnetTierConfig `mapstructure:"private" validate:"required"`
}

type SubnetTierConfig struct {
	CIDRBlocks []string `mapstructure:"cidr_blocks" validate:"required,min=1,dive,cidrv4"`
}

type SecurityGroupConfig struct {
	NameSuffix  string               `mapstructure:"name_suffix" validate:"required"`
	Description string               `mapstructure:"description"`
	Ingress     []securitygroup.Rule `mapstructure:"ingress" validate:"dive"`
	Egress      []securitygroup.Rule `mapstructure:"egress" validate:"dive"`
}

type ComputeConfig struct {
	IAM            IAMConfig            `mapstructure:"iam" validate:"required"`
	LaunchTemplate LaunchTemplateConfig `mapstructure:"launch_template" validate:"required"`
	AutoScaling    AutoScalingConfig    `mapstructure:"auto_scaling" validate:"required"`
}

type IAMConfig struct {
	InstanceProfile string `mapstructure:"instance_profile" validate:"required"`
	RoleName        string `mapstructure:"role_name" validate:"required"`
}

type LaunchTemplateConfig struct {
	NameSuffix   string `mapstructure:"name_suffix" validate:"required"`
	ImageID      string `mapstructure:"image_id" validate:"required"`
	InstanceType string `mapstructure:"instance_type" validate:"required"`
	UserData     string `mapstructure:"user_data"`
}

type AutoScalingConfig struct {
	NameSuffix       string  `mapstructure:"name_suffix" validate:"required"`
	Desired          int32   `mapstructure:"desired" validate:"min=0"`
	Min              int32   `mapstructure:"min" validate:"min=0"`
	Max              int32   `mapstructure:"max" validate:"min=1,gtefield=Min"`
	TargetCPUPercent float64 `mapstructure:"target_cpu_percent" validate:"gt=0,lte=100"`
}

// DatabaseConfig embeds the instance spec and adds the pieces the
// driver resolves around it: the subnet group it lives in and where its
// master credentials come from.
type DatabaseConfig struct {
	rds.InstanceSpec `mapstructure:",squash"`

	SubnetGroup string `mapstructure:"subnet_group" validate:"required"`
	SecretName  string `mapstructure:"secret_name" validate:"required"`
	UsernameKey string `mapstructure:"username_key" validate:"required"`
	PasswordKey string `mapstructure:"password_key" validate:"required"`
}

type StorageConfig struct {
	RawBucket     string        `mapstructure:"raw_bucket" validate:"required"`
	CuratedBucket string        `mapstructure:"curated_bucket" validate:"required"`
	Encryption    s3.Encryption `mapstructure:"encryption" validate:"required"`
}

// IngestConfig is optional: the provision command never reads it, and
// the ingest command rejects a document without it.
type IngestConfig struct {
	Endpoint         string   `mapstructure:"endpoint" validate:"required,url"`
	SecretName       string   `mapstructure:"secret_name" validate:"required"`
	APIKeyField      string   `mapstructure:"api_key_field" validate:"required"`
	DefaultState     string   `mapstructure:"default_state"`
	Plates           []string `mapstructure:"plates" validate:"required,min=1"`
	RawPrefix        string   `mapstructure:"raw_prefix"`
	CuratedPrefix    string   `mapstructure:"curated_prefix"`
	FetchConcurrency int      `mapstructure:"fetch_concurrency" validate:"min=1,max=32"`
}

func Default() *Config {
	return &Config{
		Settings: SettingsConfig{
			LogLevel:  log.LevelInfo,
			LogFormat: log.FormatText,
			APIRPS:    20,
		},
		Retry: RetryConfig{
			Default: retry.DefaultPolicy(),
			Slow:    retry.Policy{MaxAttempts: 3, BaseBackoff: 30 * time.Second},
		},
		Network: NetworkConfig{
			VPC: VPCConfig{AZCount: 2},
		},
	}
}

// Load decodes the viper source over the defaults and validates the
// result. Validation failures surface field-by-field as one user-facing
// configuration error.
func Load(ctx context.Context, v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigParseError, "failed to unmarshal configuration")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.StructCtx(ctx, cfg); err != nil {
		var details strings.Builder
		details.WriteString("Configuration validation failed:")
		var fieldErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrs); ok {
			for _, fe := range fieldErrs {
				details.WriteString(fmt.Sprintf("\n - Field '%s': failed '%s' validation (value: '%v')", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			details.WriteString(" " + err.Error())
		}
		return nil, apperrors.NewUserFacing(apperrors.CodeConfigValidation, details.String(),
			"Check the configuration file against the documented schema.")
	}
	return cfg, nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}

// Naming helpers keep the <project>-<environment>-<suffix> convention in
// one place.

func (c *Config) ResourceName(suffix string) string {
	return fmt.Sprintf("%s-%s-%s", c.Project.Name, c.Project.Environment, suffix)
}

func (c *Config) IngestOrError() (*IngestConfig, error) {
	if c.Ingest == nil {
		return nil, apperrors.NewUserFacing(apperrors.CodeConfigValidation,
			"configuration has no ingest section",
			"Add an ingest block with endpoint, secret_name, api_key_field and plates.")
	}
	return c.Ingest, nil
}
