// Package cli implements datasetctl, the operator command line for schema
// migrations, manual job runs and read-path inspection.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kirillkom/dataset-analytics/internal/config"
	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

// Backend is what the commands operate on.
type Backend struct {
	Migrate   func(ctx context.Context) (version int64, err error)
	Processor ports.DatasetProcessor
	Reader    ports.DatasetReader
	Analytics ports.AnalyticsService
	Close     func()
}

type BackendFactory func(ctx context.Context, cfg config.Config) (*Backend, error)

func NewRootCmd(factory BackendFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "datasetctl",
		Short:         "Operate the dataset analytics service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCommand(factory),
		newProcessCommand(factory),
		newStatusCommand(factory),
		newFiltersCommand(factory),
		newAnalyticsCommand(factory),
	)
	return root
}

// withBackend loads configuration, builds a backend and closes it after run.
func withBackend(cmd *cobra.Command, factory BackendFactory, run func(*Backend) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	backend, err := factory(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if backend.Close != nil {
		defer backend.Close()
	}
	return run(backend)
}

func parseDatasetID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse dataset id", fmt.Errorf("%q is not a positive integer", arg))
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
