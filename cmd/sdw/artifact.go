package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdwkit/sdw/internal/types"
)

var (
	draftFile       string
	approveRevision int
	showRevision    int
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Draft, approve, and show artifact revisions",
}

var artifactDraftCmd = &cobra.Command{
	Use:   "draft <feature> <kind>",
	Short: "Create the next revision of an artifact",
	Long: `Create a new revision of an artifact from a file or stdin.

Approved revisions are immutable; drafting always appends revision N+1 and
resets the approval gate. Unresolved [NEEDS CLARIFICATION: ...] markers in
the body are extracted as open questions.

Kinds: constitution, spec, clarifications, plan, tasks

The constitution is project-scoped; draft it against the reserved
'constitution' feature:
  sdw artifact draft constitution constitution -f constitution.md

Examples:
  sdw artifact draft user-auth spec -f spec.md
  cat plan.md | sdw artifact draft user-auth plan`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		featureID := args[0]
		kind := types.ArtifactKind(args[1])
		if !kind.IsValid() || kind == types.KindAnalysis {
			fmt.Fprintf(os.Stderr, "Error: %q is not a draftable artifact kind\n", args[1])
			os.Exit(1)
		}

		var body []byte
		var err error
		if draftFile != "" {
			body, err = os.ReadFile(draftFile)
		} else {
			body, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading draft body: %v\n", err)
			os.Exit(1)
		}

		eng, store := openEngine()
		defer store.Close()

		artifact, err := eng.Draft(context.Background(), featureID, kind, string(body), cfg.Actor)
		if err != nil {
			fatal(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Drafted %s r%d for %s", green("✓"), artifact.Kind, artifact.Revision, featureID)
		if n := len(artifact.OpenQuestions); n > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf(" %s", yellow(fmt.Sprintf("(%d open questions)", n)))
		}
		fmt.Println()
	},
}

var artifactApproveCmd = &cobra.Command{
	Use:   "approve <feature> <kind>",
	Short: "Approve an artifact revision",
	Long: `Record approval of an artifact revision, freezing it.

Without --revision the latest revision is approved. Passing an explicit
--revision guards against approving content you have not seen: if a newer
revision exists the command fails with StaleRevision.

Examples:
  sdw artifact approve user-auth spec
  sdw artifact approve user-auth tasks --revision 3`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		kind := types.ArtifactKind(args[1])
		if !kind.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: %q is not an artifact kind\n", args[1])
			os.Exit(1)
		}

		eng, store := openEngine()
		defer store.Close()

		artifact, err := eng.Approve(context.Background(), args[0], kind, approveRevision, cfg.Actor)
		if err != nil {
			fatal(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Approved %s r%d for %s\n", green("✓"), artifact.Kind, artifact.Revision, args[0])
	},
}

var artifactShowCmd = &cobra.Command{
	Use:   "show <feature> <kind>",
	Short: "Print an artifact revision's body",
	Long: `Print an artifact body to stdout. Without --revision the latest
revision is shown.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		kind := types.ArtifactKind(args[1])
		if !kind.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: %q is not an artifact kind\n", args[1])
			os.Exit(1)
		}

		_, store := openEngine()
		defer store.Close()

		ctx := context.Background()
		var artifact *types.Artifact
		var err error
		if showRevision > 0 {
			artifact, err = store.GetRevision(ctx, args[0], kind, showRevision)
		} else {
			artifact, err = store.GetLatest(ctx, args[0], kind)
		}
		if err != nil {
			fatal(err)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s\n", gray(fmt.Sprintf("%s %s %s (hash %.12s)",
			args[0], artifact.Kind, approvalLabel(artifact.Approved, artifact.Revision), artifact.ContentHash)))
		fmt.Print(artifact.Body)
	},
}

func init() {
	rootCmd.AddCommand(artifactCmd)
	artifactCmd.AddCommand(artifactDraftCmd)
	artifactCmd.AddCommand(artifactApproveCmd)
	artifactCmd.AddCommand(artifactShowCmd)

	artifactDraftCmd.Flags().StringVarP(&draftFile, "file", "f", "", "Read the body from a file instead of stdin")
	artifactApproveCmd.Flags().IntVar(&approveRevision, "revision", 0, "Revision to approve (default: latest)")
	artifactShowCmd.Flags().IntVar(&showRevision, "revision", 0, "Revision to show (default: latest)")
}
