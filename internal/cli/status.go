package cli

import (
	"errors"
	"fmt"

	"github.com/soyeahso/matchchat/internal/config"
	"github.com/soyeahso/matchchat/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show matchchat status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "matchchat %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintln(out)

			c, err := loadedConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "API:     %s (timeout %s, retries %d)\n", c.API.BaseURL, c.APITimeout(), c.APIRetries())
			fmt.Fprintf(out, "Socket:  %s (heartbeat %s, reconnects %d)\n", c.Socket.URL, c.Heartbeat(), c.Socket.ReconnectAttempts)
			fmt.Fprintf(out, "Chat:    page=%d typing-idle=%s pending-timeout=%s\n",
				c.Chat.HistoryPageSize, c.TypingIdle(), c.PendingTimeout())
			fmt.Fprintf(out, "Session: store=%s profile=%s\n", c.Session.Store, c.Session.Profile)

			id, err := resolveIdentity()
			switch {
			case errors.Is(err, errNotLoggedIn):
				fmt.Fprintln(out, "Login:   (not logged in)")
			case err != nil:
				fmt.Fprintf(out, "Login:   error: %v\n", err)
			default:
				fmt.Fprintf(out, "Login:   user=%s\n", id.UserID)
			}

			issues := config.Validate(&c)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
