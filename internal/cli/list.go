package cli

import (
	"fmt"

	"github.com/soyeahso/matchchat/internal/api"
	"github.com/soyeahso/matchchat/internal/chatlist"
	"github.com/spf13/cobra"
)

func newAggregator() (*chatlist.Aggregator, error) {
	id, err := resolveIdentity()
	if err != nil {
		return nil, err
	}
	return chatlist.New(api.NewFromConfig(cfg, id.Token, log), log), nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agg, err := newAggregator()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			entries := agg.List(cmd.Context())
			if msg := agg.LastError(); msg != "" {
				fmt.Fprintln(out, renderError("Could not load conversations: "+msg))
				return nil
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No conversations yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(out, renderEntry(e))
			}
			return nil
		},
	}
}

func newUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the total number of unread messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agg, err := newAggregator()
			if err != nil {
				return err
			}
			n := agg.UnreadTotal(cmd.Context())
			if msg := agg.LastError(); msg != "" {
				log.Warn().Str("error", msg).Msg("showing 0 unread")
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}
