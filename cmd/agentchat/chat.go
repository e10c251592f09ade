package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/watercrawl/WaterCrawl-sub003/internal/client"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/chat"
	"github.com/watercrawl/WaterCrawl-sub003/internal/tui"
)

func newChatCommand(a *app) *cobra.Command {
	var (
		files        []string
		schemaPath   string
		conversation string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat screen",
		Long: `Open a full-screen chat with the agent.

Keys: enter sends, tab switches between streaming and blocking replies,
esc cancels the reply in progress, ctrl+n starts a new conversation and
ctrl+c quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			attachments, err := loadAttachments(files)
			if err != nil {
				return err
			}
			schema, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}

			session := a.newSession(conversation)
			return tui.Run(cmd.Context(), session, tui.Options{
				Attachments: attachments,
				JSONSchema:  schema,
			}, a.logger)
		},
	}

	cmd.Flags().StringArrayVar(&files, "file", nil, "attach a file path or URL to the first message (repeatable)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema file requesting structured output")
	cmd.Flags().StringVar(&conversation, "conversation", "", "continue an existing conversation")

	return cmd
}

func (a *app) newSession(conversationID string) *chat.Session {
	c := client.NewClient(a.cfg, http.DefaultClient, a.logger)
	return chat.NewSession(c, a.cfg.UserID, agentModels.ResponseMode(a.cfg.ResponseMode), a.logger,
		chat.WithConversationID(conversationID),
	)
}
