// Package text renders the end-of-run artefact summary to stdout.
package text

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/olusolaa/infra-deployer/internal/core/domain"
	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

type Config struct {
	NoColor bool `mapstructure:"no_color"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) *Reporter {
	if cfg.NoColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}

	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}
}

func isTerminal(f *os.File) bool {
	stat, _ := f.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// Report prints one row per converged resource in the order the run
// produced them. Partial runs print whatever converged before the
// failure, which is exactly what an operator needs to resume from.
func (r *Reporter) Report(descriptors []domain.ResourceDescriptor) {
	if len(descriptors) == 0 {
		fmt.Fprintln(r.writer, "No resources converged.")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "Provisioned Artefacts")
	fmt.Fprintln(tw, "=====================")
	fmt.Fprintln(tw, "Status\tKind\tName\tProvider ID")
	fmt.Fprintln(tw, "------\t----\t----\t-----------")
	for _, d := range descriptors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", green("[OK]"), cyan(d.Kind.String()), d.IdentifyingName, d.ProviderID)
	}
	fmt.Fprintf(tw, "\nTotal: %d resources\n", len(descriptors))
}
