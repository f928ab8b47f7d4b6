package app

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/spf13/viper"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/iamprofile"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/launchtemplate"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/limiter"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/natgateway"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/network"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/rds"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/routing"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/scaling"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/secrets"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/securitygroup"
	"github.com/olusolaa/infra-deployer/internal/config"
	"github.com/olusolaa/infra-deployer/internal/core/service"
	apperrors "github.com/olusolaa/infra-deployer/internal/errors"
	"github.com/olusolaa/infra-deployer/internal/log"
	"github.com/olusolaa/infra-deployer/internal/reporting/text"
)

// Bootstrap decodes configuration, builds the platform clients and wires
// every manager into the driver. The caller-identity lookup doubles as a
// credential-chain check before any resource call is made.
func Bootstrap(ctx context.Context, v *viper.Viper) (*Application, error) {
	cfg, err := config.Load(ctx, v)
	if err != nil {
		return nil, err
	}

	logger, err := log.NewLogger(log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize logger: %v\n", err)
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "logger initialization failed")
	}
	logger.Infof(ctx, "Logger initialized (Level: %s, Format: %s)", cfg.Settings.LogLevel, cfg.Settings.LogFormat)
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using configuration file: %s", v.ConfigFileUsed())
	}

	clients, err := aws.NewClients(ctx, cfg.Project.Region)
	if err != nil {
		return nil, err
	}
	account, err := clients.CallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "Operating as account %s in %s", account, clients.Region)

	gate := limiter.New(cfg.Settings.APIRPS, logger)
	secretsAccessor := secrets.NewAccessor(clients.SecretsManager, logger)
	storageManager := s3.NewManager(clients.S3, logger)

	managers := service.Managers{
		Network:       network.NewManager(clients.EC2, logger),
		Routing:       routing.NewManager(clients.EC2, logger),
		NAT:           natgateway.NewManager(clients.EC2, ec2.NewNatGatewayAvailableWaiter(clients.EC2), logger),
		SecurityGroup: securitygroup.NewManager(clients.EC2, logger),
		Profile:       iamprofile.NewManager(clients.IAM, logger),
		Template:      launchtemplate.NewManager(clients.EC2, logger),
		Scaling:       scaling.NewManager(clients.AutoScaling, logger),
		Secrets:       secretsAccessor,
		Database:      rds.NewManager(clients.RDS, logger),
		Buckets:       storageManager,
	}

	application := &Application{
		Config:      cfg,
		Logger:      logger,
		provisioner: service.NewProvisioner(cfg, managers, gate, logger),
		reporter:    text.NewReporter(text.Config{}, logger),
		secrets:     secretsAccessor,
		storage:     storageManager,
	}
	logger.Debugf(ctx, "Application bootstrap complete")
	return application, nil
}
