package commands

import (
	"fmt"
	"text/tabwriter"

	"learnanalytics/internal/models"
	"learnanalytics/internal/services"

	"github.com/spf13/cobra"
)

// LearnerServices groups the read-side services the learner commands report on
type LearnerServices struct {
	Recommendations services.RecommendationServiceInterface
	Performance     services.PerformanceServiceInterface
	Completion      services.CompletionServiceInterface
	Analytics       services.AnalyticsServiceInterface
}

type learnerFlags struct {
	learnerID int
	courseID  int
	asJSON    bool
}

func (f *learnerFlags) bind(cmd *cobra.Command, withCourse bool) {
	cmd.Flags().IntVar(&f.learnerID, "learner", 0, "learner (user) id")
	if withCourse {
		cmd.Flags().IntVar(&f.courseID, "course", 0, "restrict to one course")
	}
	_ = cmd.MarkFlagRequired("learner")
}

// LearnerCommands returns commands that print one learner's analytics
func LearnerCommands(svc LearnerServices) *cobra.Command {
	learnerCmd := &cobra.Command{
		Use:   "learner",
		Short: "Inspect a learner's recommendations and analytics",
		Long: `Inspect a learner's recommendations and analytics.

Available commands:
  recommendations - Prioritized lesson recommendations
  weak-topics     - Topics averaging below the weak threshold
  patterns        - Score statistics and improvement trend
  strengths       - Strong and weak topics
  progress        - Per-course completion`,
	}

	learnerCmd.AddCommand(recommendationsCmd(svc.Recommendations))
	learnerCmd.AddCommand(weakTopicsCmd(svc.Performance))
	learnerCmd.AddCommand(patternsCmd(svc.Analytics))
	learnerCmd.AddCommand(strengthsCmd(svc.Analytics))
	learnerCmd.AddCommand(progressCmd(svc.Completion))

	return learnerCmd
}

func recommendationsCmd(recs services.RecommendationServiceInterface) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "recommendations",
		Short: "Show prioritized lesson recommendations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("learner", flags.learnerID); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			list := recs.GenerateRecommendations(ctx, flags.learnerID, optionalID(flags.courseID))
			if flags.asJSON {
				return printJSON(cmd.OutOrStdout(), list)
			}
			return printRecommendations(cmd, list)
		},
	}
	flags.bind(cmd, true)
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printRecommendations(cmd *cobra.Command, list []models.Recommendation) error {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		_, err := fmt.Fprintln(out, "No recommendations")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tTYPE\tLESSON\tCOURSE\tREASON")
	for _, r := range list {
		fmt.Fprintf(w, "%d\t%s\t%d %s\t%d\t%s\n", r.Priority, r.Kind, r.LessonID, r.LessonTitle, r.CourseID, r.Reason)
	}
	return w.Flush()
}

func weakTopicsCmd(performance services.PerformanceServiceInterface) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "weak-topics",
		Short: "Show topics averaging below the weak threshold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("learner", flags.learnerID); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			topics := performance.WeakTopics(ctx, flags.learnerID, optionalID(flags.courseID))
			if topics == nil {
				topics = []models.TopicPerformance{}
			}
			return printJSON(cmd.OutOrStdout(), topics)
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func patternsCmd(analytics services.AnalyticsServiceInterface) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Show score statistics and the improvement trend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("learner", flags.learnerID); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return printJSON(cmd.OutOrStdout(), analytics.AnalyzeLearningPatterns(ctx, flags.learnerID, optionalID(flags.courseID)))
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func strengthsCmd(analytics services.AnalyticsServiceInterface) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "strengths",
		Short: "Show strong and weak topics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("learner", flags.learnerID); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return printJSON(cmd.OutOrStdout(), analytics.StrengthsAndWeaknesses(ctx, flags.learnerID))
		},
	}
	flags.bind(cmd, false)
	return cmd
}

func progressCmd(completion services.CompletionServiceInterface) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show completion per enrolled course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePositive("learner", flags.learnerID); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return printJSON(cmd.OutOrStdout(), completion.OverallProgress(ctx, flags.learnerID))
		},
	}
	flags.bind(cmd, false)
	return cmd
}
