package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Search the knowledge base by semantic similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0,
		"maximum results to return (default from config)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	application, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	topK := searchTopK
	if topK <= 0 {
		topK = cfg.RetrievalTopK
	}

	question := strings.Join(args, " ")
	results, err := application.retriever.Retrieve(ctx, question, topK, cfg.SimilarityThreshold)
	if err != nil {
		return fmt.Errorf("searching knowledge: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No matching knowledge found.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.Score, r.Chunk.Text)
	}
	return nil
}
