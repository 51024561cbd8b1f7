package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/application/query"
	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
)

var (
	profileTraits     string
	profileRhythm     string
	profileStyle      string
	profileSessionMin int
	profileSessionMax int

	similarMaxDistance int
	similarDimensions  []string
	similarLimit       int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Read and write trait profiles",
	Long: `Read and write trait profiles.

Examples:
  adaptivectl profile get u-42
  adaptivectl profile set u-42 --traits hyperfocus_intensity=70,attention_flexibility=40,...`,
}

var profileGetCmd = &cobra.Command{
	Use:   "get <user-id>",
	Short: "Show a user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		p, err := e.st.Profiles.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	}),
}

var profileSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Create or replace a user's profile",
	Long: `Create or replace a user's profile. Every trait must be given, each in [0,100].

Traits: hyperfocus_intensity, attention_flexibility, sensory_processing,
executive_function, emotional_regulation, structure_preference.`,
	Args: cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		traits, err := parseTraitScores(profileTraits)
		if err != nil {
			return err
		}
		res, err := e.eng.UpsertProfile.Handle(cmd.Context(), command.UpsertProfileCommand{
			UserID: args[0],
			Traits: traits,
			Preferences: profile.Preferences{
				NaturalRhythm:     profile.Rhythm(profileRhythm),
				LearningStyle:     profile.LearningStyle(profileStyle),
				SessionMinMinutes: profileSessionMin,
				SessionMaxMinutes: profileSessionMax,
			},
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res.Profile)
	}),
}

var similarCmd = &cobra.Command{
	Use:   "similar <user-id>",
	Short: "Find peers with similar trait profiles",
	Long: `Find peers whose traits differ from the user's by at most --max-distance
on every selected dimension (Chebyshev distance), nearest first.

Examples:
  adaptivectl similar u-42
  adaptivectl similar u-42 --max-distance 5 --dimensions sensory_processing,executive_function`,
	Args: cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		q := query.FindSimilarQuery{
			UserID:     args[0],
			Dimensions: similarDimensions,
			Limit:      similarLimit,
		}
		if cmd.Flags().Changed("max-distance") {
			q.MaxDistance = &similarMaxDistance
		}
		res, err := e.eng.Similar.Handle(cmd.Context(), q)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}),
}

func init() {
	f := profileSetCmd.Flags()
	f.StringVar(&profileTraits, "traits", "", "Trait scores as name=value, comma separated")
	f.StringVar(&profileRhythm, "rhythm", "", "Natural rhythm: morning, afternoon, evening, night, variable")
	f.StringVar(&profileStyle, "style", "", "Learning style: visual, auditory, kinesthetic, reading_writing, multimodal")
	f.IntVar(&profileSessionMin, "session-min", 0, "Preferred minimum session length in minutes")
	f.IntVar(&profileSessionMax, "session-max", 0, "Preferred maximum session length in minutes")
	_ = profileSetCmd.MarkFlagRequired("traits")

	sf := similarCmd.Flags()
	sf.IntVar(&similarMaxDistance, "max-distance", 0, "Maximum per-trait difference (default from config)")
	sf.StringSliceVar(&similarDimensions, "dimensions", nil, "Traits to compare (default from config)")
	sf.IntVar(&similarLimit, "limit", 0, "Maximum number of peers (default from config)")

	profileCmd.AddCommand(profileGetCmd, profileSetCmd)
	rootCmd.AddCommand(profileCmd, similarCmd)
}

// parseTraitScores разбирает "name=value,name=value"; полноту проверяет домен.
func parseTraitScores(s string) (profile.TraitVector, error) {
	out := make(profile.TraitVector)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("trait %q must be formatted as name=value", pair)
		}
		score, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("trait %q: %w", name, err)
		}
		out[profile.Trait(strings.TrimSpace(name))] = score
	}
	return out, nil
}
