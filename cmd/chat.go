package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matthewloh/pragmadic/internal/chat"
	"github.com/matthewloh/pragmadic/internal/conversation"
)

var (
	chatConversationID string
	chatUserID         string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation. Replies stream as they are
generated; tool activity is shown inline. Type "exit" or "quit" to leave,
press Ctrl-C to cancel the turn in progress.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "",
		"resume an existing conversation by UUID")
	chatCmd.Flags().StringVar(&chatUserID, "user", "",
		"identity to stamp on submitted messages")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// SIGTERM ends the session; Ctrl-C is handled per turn in runTurn so
	// it cancels the active turn without killing the session.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	application, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	conversationID := uuid.New()
	if chatConversationID != "" {
		conversationID, err = uuid.Parse(chatConversationID)
		if err != nil {
			return fmt.Errorf("invalid conversation ID %q: %w", chatConversationID, err)
		}
	}
	if chatUserID != "" {
		ctx = chat.ContextWithUserID(ctx, chatUserID)
	}

	fmt.Printf("Conversation %s. Type \"exit\" to leave.\n\n", conversationID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := runTurn(ctx, application.orchestrator, conversationID, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}
	}
	return scanner.Err()
}

// runTurn submits one turn and renders its events. An interrupt cancels
// the active turn without killing the session.
func runTurn(ctx context.Context, orch *chat.Orchestrator, conversationID uuid.UUID, input string) error {
	turnCtx, stopInterrupt := signal.NotifyContext(ctx, os.Interrupt)
	defer stopInterrupt()

	_, err := orch.Submit(turnCtx, conversationID, input, renderEvent)
	fmt.Println()
	if errors.Is(err, chat.ErrTurnCanceled) {
		fmt.Println("(turn canceled)")
		return nil
	}
	return err
}

func renderEvent(ev chat.Event) {
	switch ev.Kind {
	case chat.EventDelta:
		fmt.Print(ev.Delta)
	case chat.EventToolPending:
		fmt.Printf("\n[running %s...]\n", ev.ToolCall.Name)
	case chat.EventToolResult:
		if ev.ToolCall.Phase == conversation.PhaseFailed {
			fmt.Printf("[%s failed: %s]\n", ev.ToolCall.Name, ev.ToolCall.Error)
		} else {
			fmt.Printf("[%s done]\n", ev.ToolCall.Name)
		}
	case chat.EventTurnComplete, chat.EventTurnError:
		// The final newline and error reporting happen in runTurn.
	}
}
