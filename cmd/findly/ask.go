package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/findly/internal/conversation"
	"github.com/mohammad-safakhou/findly/internal/retriever"
	"github.com/mohammad-safakhou/findly/internal/runtime"
)

func askCMD(cfgPath *string) *cobra.Command {
	var sessionID string
	var asOf string
	ask := &cobra.Command{
		Use:   "ask <url> <question>",
		Short: "Ask a question about an indexed page",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			at := time.Now().UTC()
			if asOf != "" {
				t, err := time.Parse(time.RFC3339, asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				at = t.UTC()
			}
			cfg, logger, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			c, err := runtime.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			url, question := args[0], strings.Join(args[1:], " ")
			out := cmd.OutOrStdout()
			if sessionID == "" {
				ans, err := c.Retriever.Answer(ctx, retriever.Request{URL: url, Query: question, AsOf: at})
				if errors.Is(err, retriever.ErrNotIndexed) {
					fmt.Fprintln(out, err.Error())
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n\n(version %s, retrieved %s)\n", ans.Text, ans.ContentHash, ans.LastRetrieved.Format(time.RFC3339))
				return nil
			}

			reply, err := c.Conversations.Ask(ctx, conversation.Request{SessionID: sessionID, URL: url, Query: question, AsOf: at})
			if errors.Is(err, retriever.ErrNotIndexed) {
				fmt.Fprintln(out, err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n\n(session %s, version %s, retrieved %s)\n",
				reply.Answer.Text, reply.SessionID, reply.Answer.ContentHash, reply.Answer.LastRetrieved.Format(time.RFC3339))
			return nil
		},
	}
	ask.Flags().StringVar(&sessionID, "session", "", "continue a conversation in this session")
	ask.Flags().StringVar(&asOf, "as-of", "", "answer from the version current at this RFC 3339 time")
	return ask
}
