package commands

import (
	"context"
	"fmt"

	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	"github.com/spf13/cobra"
)

// Snapshotter stores a learner's strength/weakness classification
type Snapshotter interface {
	Snapshot(ctx context.Context, learnerID int) (int, error)
}

// AnalyticsCommands returns commands that persist analytics
func AnalyticsCommands(snapshots Snapshotter, logger *observability.Logger) *cobra.Command {
	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Analytics maintenance commands",
	}

	var learners []int
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Store the strength/weakness classification for one or more learners",
		Long: `Store the strength/weakness classification for one or more learners.

Existing rows for each learner are replaced. Learners are processed in order and
the command stops at the first failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(learners) == 0 {
				return contextutils.WrapErrorf(contextutils.ErrMissingRequired, "at least one --learner is required")
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			for _, learnerID := range learners {
				if err := requirePositive("learner", learnerID); err != nil {
					return err
				}
				n, err := snapshots.Snapshot(ctx, learnerID)
				if err != nil {
					logger.Error(ctx, "Snapshot failed", err, map[string]interface{}{"user_id": learnerID})
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "learner %d: %d records\n", learnerID, n); err != nil {
					return err
				}
			}
			return nil
		},
	}
	snapshotCmd.Flags().IntSliceVar(&learners, "learner", nil, "learner id (repeatable or comma separated)")

	analyticsCmd.AddCommand(snapshotCmd)
	return analyticsCmd
}
