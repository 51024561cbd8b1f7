package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/shared"
)

var (
	insightLimit int

	signalType       string
	signalTitle      string
	signalEvidence   string
	signalConfidence float64
	signalPriority   string
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Generate, list and transition insights",
	Long: `Generate, list and transition insights.

Examples:
  adaptivectl insights generate u-42
  adaptivectl insights add u-42 --type focus_pattern --title "Short sessions work" --confidence 0.8
  adaptivectl insights list u-42
  adaptivectl insights respond 6f1c... accepted`,
}

var insightsGenerateCmd = &cobra.Command{
	Use:   "generate <user-id>",
	Short: "Generate insights from behavioral aggregates",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		res, err := e.eng.GenerateFromBehavior.Handle(cmd.Context(), args[0])
		if err != nil {
			if res != nil && len(res.Created) > 0 {
				_ = printJSON(cmd.OutOrStdout(), res)
			}
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}),
}

var insightsAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Submit one externally produced insight signal",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		res, err := e.eng.Generate.Handle(cmd.Context(), command.GenerateInsightsCommand{
			UserID: args[0],
			Signals: []insight.Signal{{
				Type:       insight.Type(signalType),
				Title:      signalTitle,
				Evidence:   signalEvidence,
				Confidence: signalConfidence,
				Priority:   shared.Priority(signalPriority),
			}},
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}),
}

var insightsListCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's insights, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		items, err := e.st.Insights.ListByUser(cmd.Context(), args[0], insightLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	}),
}

var insightsPresentCmd = &cobra.Command{
	Use:   "present <insight-id>",
	Short: "Mark an insight as presented",
	Args:  cobra.ExactArgs(1),
	RunE: transition(func(cmd *cobra.Command, e *env, id uuid.UUID, _ []string) (lifecycle.Outcome, error) {
		return e.eng.Lifecycle.PresentInsight(cmd.Context(), id)
	}),
}

var insightsRespondCmd = &cobra.Command{
	Use:   "respond <insight-id> <accepted|rejected|ignored>",
	Short: "Record the user's response to an insight",
	Args:  cobra.ExactArgs(2),
	RunE: transition(func(cmd *cobra.Command, e *env, id uuid.UUID, args []string) (lifecycle.Outcome, error) {
		return e.eng.Lifecycle.RespondInsight(cmd.Context(), id, args[1])
	}),
}

var insightsExpireCmd = &cobra.Command{
	Use:   "expire <insight-id>",
	Short: "Expire an open insight",
	Args:  cobra.ExactArgs(1),
	RunE: transition(func(cmd *cobra.Command, e *env, id uuid.UUID, _ []string) (lifecycle.Outcome, error) {
		return e.eng.Lifecycle.ExpireInsight(cmd.Context(), id)
	}),
}

// transitionFunc применяет один переход к элементу с разобранным id.
type transitionFunc func(cmd *cobra.Command, e *env, id uuid.UUID, args []string) (lifecycle.Outcome, error)

func transition(fn transitionFunc) func(*cobra.Command, []string) error {
	return withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		out, err := fn(cmd, e, id, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	})
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func init() {
	insightsListCmd.Flags().IntVar(&insightLimit, "limit", 20, "Maximum number of insights")

	f := insightsAddCmd.Flags()
	f.StringVar(&signalType, "type", "", "Insight type")
	f.StringVar(&signalTitle, "title", "", "Insight title")
	f.StringVar(&signalEvidence, "evidence", "", "Supporting evidence")
	f.Float64Var(&signalConfidence, "confidence", 0, "Confidence in [0,1]")
	f.StringVar(&signalPriority, "priority", "", "Priority: low, medium, high, urgent")
	_ = insightsAddCmd.MarkFlagRequired("type")
	_ = insightsAddCmd.MarkFlagRequired("title")

	insightsCmd.AddCommand(
		insightsGenerateCmd,
		insightsAddCmd,
		insightsListCmd,
		insightsPresentCmd,
		insightsRespondCmd,
		insightsExpireCmd,
	)
	rootCmd.AddCommand(insightsCmd)
}
