package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acssjr/examscan/internal/incidence"
)

var (
	taxonomyFile string
	topN         int
)

var incidenceCmd = &cobra.Command{
	Use:   "incidence",
	Short: "Show how often each subject appears in the question set",
	Long: `Aggregate the classified questions of the current scope into a
subject-incidence tree: per-subject counts and their share of the whole
corpus.

With a taxonomy (from the backend, or a local YAML file via --taxonomy)
the tree follows the authored syllabus structure. Without one, questions
are grouped by their top-level subject in the order they were first
encountered.

Examples:
  examscan incidence
  examscan incidence --taxonomy syllabus.yaml
  examscan incidence --top 5`,
	Args: cobra.NoArgs,
	RunE: runIncidence,
}

func init() {
	incidenceCmd.Flags().StringVar(&taxonomyFile, "taxonomy", "", "taxonomy skeleton YAML file")
	incidenceCmd.Flags().IntVar(&topN, "top", 0, "show only the N most frequent subjects")
	rootCmd.AddCommand(incidenceCmd)
}

func runIncidence(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	questions, err := api.FetchQuestions(ctx, cfg.Scope)
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}
	if len(questions) == 0 {
		fmt.Println("No classified questions yet")
		return nil
	}

	var skeleton []*incidence.Skeleton
	if taxonomyFile != "" {
		skeleton, err = incidence.LoadSkeletonFile(taxonomyFile)
		if err != nil {
			return err
		}
	} else {
		// A backend without an authored taxonomy returns none; the
		// aggregator then derives buckets ad hoc.
		skeleton, err = api.FetchTaxonomy(ctx, cfg.Scope)
		if err != nil {
			logger.Debug("no taxonomy from backend, grouping ad hoc", "error", err)
			skeleton = nil
		}
		if len(skeleton) == 0 {
			skeleton = nil
		}
	}

	nodes := incidence.Aggregate(questions, skeleton)
	if topN > 0 {
		nodes = incidence.TopN(nodes, topN)
	}

	fmt.Printf("%d questions\n\n", len(questions))
	for _, node := range nodes {
		printNode(node, 0)
	}
	return nil
}

// printNode renders one tree node and its children with indentation.
func printNode(node *incidence.Node, depth int) {
	theme := defaultTheme
	indent := strings.Repeat("  ", depth)

	name := node.Name
	if depth == 0 {
		name = theme.statusStyle().Render(name)
	}
	count := theme.hintStyle().Render(fmt.Sprintf("(%d)", node.Count))

	fmt.Printf("%s%s %s %.1f%%\n", indent, name, count, node.Percentage)
	for _, child := range node.Children {
		printNode(child, depth+1)
	}
}
