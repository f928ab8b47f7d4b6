package app

import (
	"context"

	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/infra-deployer/internal/adapters/platform/aws/secrets"
	"github.com/olusolaa/infra-deployer/internal/config"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
	"github.com/olusolaa/infra-deployer/internal/core/service"
	"github.com/olusolaa/infra-deployer/internal/ingest"
	"github.com/olusolaa/infra-deployer/internal/reporting/text"
)

// Application holds everything both commands need after bootstrap.
type Application struct {
	Config *config.Config
	Logger ports.Logger

	provisioner *service.Provisioner
	reporter    *text.Reporter
	secrets     *secrets.Accessor
	storage     *s3.Manager
}

// RunProvision executes one reconciliation pass and prints the artefact
// summary. The summary covers whatever converged even when the run
// fails partway.
func (a *Application) RunProvision(ctx context.Context) error {
	a.Logger.Infof(ctx, "Starting reconciliation for %s/%s in %s",
		a.Config.Project.Name, a.Config.Project.Environment, a.Config.Project.Region)

	depCtx, err := a.provisioner.Run(ctx)
	if depCtx != nil {
		a.reporter.Report(depCtx.Descriptors())
	}
	if err != nil {
		a.Logger.Errorf(ctx, err, "Reconciliation failed")
		return err
	}

	a.Logger.Infof(ctx, "Reconciliation completed successfully")
	return nil
}

// RunIngest executes one pipeline pass against the buckets the
// provision command maintains.
func (a *Application) RunIngest(ctx context.Context) error {
	ingestCfg, err := a.Config.IngestOrError()
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(ingestCfg, &a.Config.Storage, a.secrets, a.storage,
		a.Config.Retry.Default, a.Logger)
	if err := pipeline.Run(ctx); err != nil {
		a.Logger.Errorf(ctx, err, "Ingest pipeline failed")
		return err
	}

	a.Logger.Infof(ctx, "Ingest pipeline completed successfully")
	return nil
}
