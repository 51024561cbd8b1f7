package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
)

var (
	recLimit  int
	recRating int
)

var recommendationsCmd = &cobra.Command{
	Use:     "recommendations",
	Aliases: []string{"recs"},
	Short:   "Score, list and transition recommendations",
	Long: `Score, list and transition recommendations.

Examples:
  adaptivectl recs score s-7 c-101 c-102 c-103
  adaptivectl recs list s-7
  adaptivectl recs respond 9a2e... accepted --rating 5`,
}

var recsScoreCmd = &cobra.Command{
	Use:   "score <student-id> <content-id>...",
	Short: "Score candidate content and store recommendations",
	Args:  cobra.MinimumNArgs(2),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		res, err := e.eng.Score.Handle(cmd.Context(), command.ScoreRecommendationsCommand{
			StudentID:  args[0],
			ContentIDs: args[1:],
		})
		if err != nil {
			if res != nil && len(res.Created) > 0 {
				// часть рекомендаций уже сохранена
				_ = printJSON(cmd.OutOrStdout(), res)
			}
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}),
}

var recsListCmd = &cobra.Command{
	Use:   "list <student-id>",
	Short: "List active recommendations by priority and confidence",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		items, err := e.st.Recommendations.ListActive(cmd.Context(), args[0], time.Now().UTC(), recLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	}),
}

var recsPresentCmd = &cobra.Command{
	Use:   "present <recommendation-id>",
	Short: "Mark a recommendation as presented",
	Args:  cobra.ExactArgs(1),
	RunE: transition(func(cmd *cobra.Command, e *env, id uuid.UUID, _ []string) (lifecycle.Outcome, error) {
		return e.eng.Lifecycle.PresentRecommendation(cmd.Context(), id)
	}),
}

var recsRespondCmd = &cobra.Command{
	Use:   "respond <recommendation-id> <accepted|rejected|ignored>",
	Short: "Record the student's response, optionally with a 1-5 rating",
	Args:  cobra.ExactArgs(2),
	RunE: transition(func(cmd *cobra.Command, e *env, id uuid.UUID, args []string) (lifecycle.Outcome, error) {
		var rating *int
		if cmd.Flags().Changed("rating") {
			rating = &recRating
		}
		return e.eng.Lifecycle.RespondRecommendation(cmd.Context(), id, args[1], rating)
	}),
}

var recsExpireCmd = &cobra.Command{
	Use:   "expire <recommendation-id>",
	Short: "Expire an open recommendation",
	Args:  cobra.ExactArgs(1),
	RunE: transition(func(cmd *cobra.Command, e *env, id uuid.UUID, _ []string) (lifecycle.Outcome, error) {
		return e.eng.Lifecycle.ExpireRecommendation(cmd.Context(), id)
	}),
}

func init() {
	recsListCmd.Flags().IntVar(&recLimit, "limit", 20, "Maximum number of recommendations")
	recsRespondCmd.Flags().IntVar(&recRating, "rating", 0, "Rating from 1 to 5")

	recommendationsCmd.AddCommand(recsScoreCmd, recsListCmd, recsPresentCmd, recsRespondCmd, recsExpireCmd)
	rootCmd.AddCommand(recommendationsCmd)
}
