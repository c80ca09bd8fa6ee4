package commands

import (
	"fmt"
	"text/tabwriter"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/services"
	contextutils "learnanalytics/internal/utils"

	"github.com/spf13/cobra"
)

// MistakeCommands returns the instructor-side mistake reports
func MistakeCommands(mistakes services.MistakeServiceInterface, cfg config.AnalyticsConfig) *cobra.Command {
	mistakesCmd := &cobra.Command{
		Use:   "mistakes",
		Short: "Mistake analysis reports",
		Long: `Mistake analysis reports.

Available commands:
  common  - Most frequent mistakes in a course, grouped by topic and error type
  stats   - One learner's incorrect-answer breakdown`,
	}

	mistakesCmd.AddCommand(commonMistakesCmd(mistakes, cfg))
	mistakesCmd.AddCommand(mistakeStatsCmd(mistakes))

	return mistakesCmd
}

func commonMistakesCmd(mistakes services.MistakeServiceInterface, cfg config.AnalyticsConfig) *cobra.Command {
	var (
		courseID int
		topicID  int
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "common",
		Short: "Show the most frequent mistakes in a course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("course", courseID); err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.CommonMistakesDefault
			}
			if limit > cfg.CommonMistakesMaxLimit {
				limit = cfg.CommonMistakesMaxLimit
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			list := mistakes.CommonMistakesByTopic(ctx, courseID, optionalID(topicID), limit)
			if list == nil {
				list = []models.CommonMistake{}
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}
			return printCommonMistakes(cmd, list)
		},
	}

	cmd.Flags().IntVar(&courseID, "course", 0, "course id")
	cmd.Flags().IntVar(&topicID, "topic", 0, "restrict to one topic")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of groups")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("course")

	return cmd
}

func printCommonMistakes(cmd *cobra.Command, list []models.CommonMistake) error {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "No mistakes recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tERROR TYPE\tMISTAKES\tSTUDENTS\tSEVERITY")
	for _, m := range list {
		fmt.Fprintf(w, "%d %s\t%s\t%d\t%d\t%s\n", m.TopicID, m.TopicName, m.ErrorType, m.TotalMistakes, m.AffectedStudents, m.Severity)
	}
	return w.Flush()
}

func mistakeStatsCmd(mistakes services.MistakeServiceInterface) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a learner's incorrect-answer breakdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("learner", flags.learnerID); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			stats, err := mistakes.Stats(ctx, flags.learnerID, optionalID(flags.courseID))
			if err != nil {
				return contextutils.WrapError(err, "failed to load mistake stats")
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	flags.bind(cmd, true)
	return cmd
}
