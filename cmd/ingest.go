package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var ingestTitle string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document into the knowledge base",
	Long: `Ingest reads a document, splits it into sentence chunks, embeds each
chunk, and stores the batch atomically under a fresh resource ID. With no
argument or with "-", content is read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "optional title for the resource")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var content []byte
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	if len(content) == 0 {
		return fmt.Errorf("nothing to ingest: content is empty")
	}

	ctx := cmd.Context()
	application, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	resourceID := uuid.New()
	chunks, err := application.pipeline.Ingest(ctx, resourceID, string(content))
	if err != nil {
		return fmt.Errorf("ingesting content: %w", err)
	}

	fmt.Printf("Ingested resource %s", resourceID)
	if ingestTitle != "" {
		fmt.Printf(" (%s)", ingestTitle)
	}
	fmt.Printf(": %d chunks\n", len(chunks))
	return nil
}
