package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
	"github.com/watercrawl/WaterCrawl-sub003/internal/render"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/chat"
)

func newAskCommand(a *app) *cobra.Command {
	var (
		mode         string
		files        []string
		schemaPath   string
		conversation string
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Send one query and print the reply transcript",
		Example: `  agentchat ask "crawl https://example.com and list its headings"
  agentchat ask --mode blocking --schema headings.json "extract the headings"
  agentchat ask --file ./report.pdf --file https://example.com/logo.png "summarize"`,
		Args: cobra.ExactArgs(1),
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
			in := chat.SubmitInput{
				Query:       args[0],
				Attachments: attachments,
				Mode:        agentModels.ResponseMode(mode),
				JSONSchema:  schema,
			}

			progress := newProgress(os.Stderr)
			block, submitErr := session.Submit(cmd.Context(), in, progress.update)
			progress.clear()

			var streamErr *agentModels.StreamError
			if submitErr != nil && !errors.As(submitErr, &streamErr) {
				return submitErr
			}

			snap := session.Snapshot()
			if jsonOut {
				if block == nil {
					return submitErr
				}
				if err := writeJSON(cmd.OutOrStdout(), block); err != nil {
					return err
				}
				return submitErr
			}

			renderer := render.New(stylesFor(cmd.OutOrStdout()), 0)
			fmt.Fprintln(cmd.OutOrStdout(), renderer.Transcript(snap.History, nil, snap.Err))
			if snap.ConversationID != "" {
				fmt.Fprintf(os.Stderr, "conversation: %s\n", snap.ConversationID)
			}
			return submitErr
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "response mode: streaming or blocking (default from config)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "attach a file path or URL (repeatable)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON schema file requesting structured output")
	cmd.Flags().StringVar(&conversation, "conversation", "", "continue an existing conversation")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the reply block as JSON")

	return cmd
}

// progress shows a one-line status on a terminal while a reply streams in
type progress struct {
	w       io.Writer
	enabled bool
	shown   bool
}

func newProgress(f *os.File) *progress {
	return &progress{w: f, enabled: isatty.IsTerminal(f.Fd())}
}

func (p *progress) update(snap chat.Snapshot) {
	if !p.enabled || !snap.InFlight {
		return
	}
	entries, tools := 0, 0
	if snap.Live != nil {
		entries = len(snap.Live.Entries)
		for _, e := range snap.Live.Entries {
			tools += len(e.ToolCalls)
		}
	}
	fmt.Fprintf(p.w, "\r\033[Kwaiting for %s reply… %d entries, %d tool calls", snap.Mode, entries, tools)
	p.shown = true
}

func (p *progress) clear() {
	if p.shown {
		fmt.Fprint(p.w, "\r\033[K")
	}
}

func stylesFor(w io.Writer) render.Styles {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return render.DefaultStyles()
	}
	return render.PlainStyles()
}
