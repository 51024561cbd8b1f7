package main

import (
	"github.com/spf13/cobra"

	"github.com/alem-hub/adaptive-engine/internal/application/query"
	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/scheduler/jobs"
)

var (
	statsSubject string
	statsUser    string
	statsType    string
	statsVersion string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run one lifecycle cleanup sweep",
	Long: `Expire due recommendations and insights, then delete stale insights.
Runs the same job the worker schedules.`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
		job := jobs.NewLifecycleCleanupJob(e.eng.Cleanup, e.log, jobs.DefaultLifecycleCleanupConfig())
		err := job.Run(cmd.Context())
		if res := job.LastResult(); res != nil {
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
		}
		return err
	}),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Feedback statistics",
	Long: `Feedback statistics.

Examples:
  adaptivectl stats acceptance --subject insights
  adaptivectl stats acceptance --subject recommendations --user s-7 --type accessibility_match
  adaptivectl stats effectiveness
  adaptivectl stats effectiveness --version rules-v1`,
}

var statsAcceptanceCmd = &cobra.Command{
	Use:   "acceptance",
	Short: "Share of accepted responses",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
		subject, err := feedback.ParseSubject(statsSubject)
		if err != nil {
			return err
		}
		rate, err := e.eng.Feedback.AcceptanceRate(cmd.Context(), query.AcceptanceRateQuery{
			Subject: subject,
			UserID:  statsUser,
			Type:    statsType,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rate)
	}),
}

var statsEffectivenessCmd = &cobra.Command{
	Use:   "effectiveness",
	Short: "Mean rating and acceptance per algorithm version",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
		if statsVersion != "" {
			eff, err := e.eng.Feedback.Effectiveness(cmd.Context(), statsVersion)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), eff)
		}
		all, err := e.eng.Feedback.EffectivenessAll(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), all)
	}),
}

func init() {
	af := statsAcceptanceCmd.Flags()
	af.StringVar(&statsSubject, "subject", string(feedback.SubjectRecommendations), "insights or recommendations")
	af.StringVar(&statsUser, "user", "", "Restrict to one user")
	af.StringVar(&statsType, "type", "", "Restrict to one insight type or reason code")

	statsEffectivenessCmd.Flags().StringVar(&statsVersion, "version", "", "Algorithm version (default: all, best first)")

	statsCmd.AddCommand(statsAcceptanceCmd, statsEffectivenessCmd)
	rootCmd.AddCommand(cleanupCmd, statsCmd)
}
