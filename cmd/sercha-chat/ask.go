package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

var askSystemPrompt string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSystemPrompt, "system", "", "override the system prompt")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.chat.Reply(ctx, domain.ChatRequest{
		Prompt:       strings.Join(args, " "),
		SystemPrompt: askSystemPrompt,
	})
	if err != nil {
		var chatErr *domain.ChatError
		if errors.As(err, &chatErr) && chatErr.Detail != "" {
			return fmt.Errorf("chat request failed: %s", chatErr.Detail)
		}
		return err
	}

	logger.Debug("answered", "context_chunks", reply.ContextChunks, "model", reply.Model)
	fmt.Fprintln(cmd.OutOrStdout(), reply.Reply)
	return nil
}
