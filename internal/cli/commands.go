package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

func newMigrateCommand(factory BackendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending metadata migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, factory, func(b *Backend) error {
				version, err := b.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return err
			})
		},
	}
}

func newProcessCommand(factory BackendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "process <dataset-id>",
		Short: "Run the ingestion job for a dataset in the foreground",
		Long: `Run the ingestion job synchronously, bypassing the queue.

Useful when a publish failed after upload or a worker died mid-job and left
the dataset in processing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDatasetID(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, factory, func(b *Backend) error {
				if err := b.Processor.ProcessByID(cmd.Context(), id); err != nil {
					return fmt.Errorf("process dataset %d: %w", id, err)
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "dataset %d processed\n", id)
				return err
			})
		},
	}
}

func newStatusCommand(factory BackendFactory) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "status <dataset-id>",
		Short: "Show dataset metadata and processing state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDatasetID(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, factory, func(b *Backend) error {
				ds, err := b.Reader.GetForOwner(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ds)
			})
		},
	}
	ownerFlag(cmd, &owner)
	return cmd
}

func newFiltersCommand(factory BackendFactory) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "filters <dataset-id>",
		Short: "List distinct filter values of a completed dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDatasetID(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, factory, func(b *Backend) error {
				opts, err := b.Analytics.Filters(cmd.Context(), owner, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), opts)
			})
		},
	}
	ownerFlag(cmd, &owner)
	return cmd
}

func newAnalyticsCommand(factory BackendFactory) *cobra.Command {
	var (
		owner   string
		filters domain.Filters
	)
	cmd := &cobra.Command{
		Use:   "analytics <dataset-id>",
		Short: "Run the analytics views for a completed dataset",
		Example: `  datasetctl analytics 42 --owner u-1
  datasetctl analytics 42 --owner u-1 --brand Alpha --year 2024`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseDatasetID(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, factory, func(b *Backend) error {
				report, err := b.Analytics.Analytics(cmd.Context(), owner, id, filters)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	ownerFlag(cmd, &owner)
	cmd.Flags().StringVar(&filters.Brand, "brand", "", "brand filter")
	cmd.Flags().StringVar(&filters.PackType, "pack-type", "", "pack type filter")
	cmd.Flags().StringVar(&filters.PPG, "ppg", "", "price-pack group filter")
	cmd.Flags().StringVar(&filters.Channel, "channel", "", "channel filter")
	cmd.Flags().StringVar(&filters.Year, "year", "", "year filter")
	return cmd
}

func ownerFlag(cmd *cobra.Command, owner *string) {
	cmd.Flags().StringVar(owner, "owner", "", "owner id the dataset belongs to")
	_ = cmd.MarkFlagRequired("owner")
}
