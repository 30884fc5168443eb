package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var featureCmd = &cobra.Command{
	Use:   "feature",
	Short: "Create, list, and abandon features",
}

var featureNewCmd = &cobra.Command{
	Use:   "new <id>",
	Short: "Create a feature in the specify phase",
	Long: `Create a feature and seed its empty spec artifact slot.

Feature IDs are lowercase slugs: letters, digits, and hyphens, not starting
with a hyphen.

Example:
  sdw feature new user-auth`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, store := openEngine()
		defer store.Close()

		feature, err := eng.NewFeature(context.Background(), args[0], cfg.Actor)
		if err != nil {
			fatal(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s Created feature %s in phase %s\n\n", green("✓"), feature.ID, phaseLabel(feature.CurrentPhase))
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray(fmt.Sprintf("sdw artifact draft %s spec -f spec.md", feature.ID)))
		fmt.Printf("  %s\n", gray(fmt.Sprintf("sdw artifact approve %s spec", feature.ID)))
		fmt.Println()
	},
}

var featureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List features and their current phases",
	Run: func(cmd *cobra.Command, args []string) {
		_, store := openEngine()
		defer store.Close()

		features, err := store.ListFeatures(context.Background())
		if err != nil {
			fatal(err)
		}

		if len(features) == 0 {
			fmt.Println("No features. Create one with 'sdw feature new <id>'.")
			return
		}

		fmt.Println()
		for _, f := range features {
			fmt.Printf("  %-30s %s\n", f.ID, phaseLabel(f.CurrentPhase))
		}
		fmt.Println()
	},
}

var featureAbandonCmd = &cobra.Command{
	Use:   "abandon <id>",
	Short: "Abandon a feature (terminal, from any phase)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, store := openEngine()
		defer store.Close()

		feature, err := eng.Abandon(context.Background(), args[0], cfg.Actor)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Feature %s is now %s\n", feature.ID, phaseLabel(feature.CurrentPhase))
	},
}

func init() {
	rootCmd.AddCommand(featureCmd)
	featureCmd.AddCommand(featureNewCmd)
	featureCmd.AddCommand(featureListCmd)
	featureCmd.AddCommand(featureAbandonCmd)
}

// registerFeatureAliases adds advance, analyze, and status under 'feature'
// as well. Called from main after every command has registered its flags.
func registerFeatureAliases() {
	featureCmd.AddCommand(aliasOf(advanceCmd))
	featureCmd.AddCommand(aliasOf(analyzeCmd))
	featureCmd.AddCommand(aliasOf(statusCmd))
}

// aliasOf clones a command so it can be registered under a second parent,
// sharing the original's Run and flag variables.
func aliasOf(cmd *cobra.Command) *cobra.Command {
	alias := &cobra.Command{
		Use:   cmd.Use,
		Short: cmd.Short,
		Long:  cmd.Long,
		Args:  cmd.Args,
		Run:   cmd.Run,
	}
	alias.Flags().AddFlagSet(cmd.Flags())
	return alias
}
