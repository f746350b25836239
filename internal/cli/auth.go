package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/matchchat/internal/api"
	"github.com/soyeahso/matchchat/internal/store"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in; run `matchchat login --user <id> --token <token>`")

// identity is who the client acts as for this run.
type identity struct {
	UserID string
	Token  string
}

// resolveIdentity merges the saved credentials with config overrides.
// session.token and session.userId in the config win over the store.
func resolveIdentity() (identity, error) {
	c, err := loadedConfig()
	if err != nil {
		return identity{}, err
	}
	id := identity{UserID: c.Session.UserID, Token: c.Session.Token}
	if id.UserID != "" && id.Token != "" && !strings.HasPrefix(id.Token, "${") {
		return id, nil
	}

	st, err := store.OpenCredentials(c, paths.Session, log)
	if err != nil {
		return identity{}, err
	}
	defer st.Close()

	saved, err := st.Load(c.Session.Profile)
	if errors.Is(err, store.ErrNoCredentials) {
		return identity{}, errNotLoggedIn
	}
	if err != nil {
		return identity{}, err
	}
	if saved.BaseURL != "" && saved.BaseURL != c.API.BaseURL {
		log.Warn().Str("savedFor", saved.BaseURL).Str("using", c.API.BaseURL).Msg("credentials were saved for a different server")
	}
	if id.UserID == "" {
		id.UserID = saved.UserID
	}
	if id.Token == "" || strings.HasPrefix(id.Token, "${") {
		id.Token = saved.Token
	}
	return id, nil
}

func newLoginCmd() *cobra.Command {
	var (
		userID string
		token  string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save the user id and access token for a profile",
		Long:  "Save the user id and access token for a profile. Pass --token - to read the token from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadedConfig()
			if err != nil {
				return err
			}
			if token == "-" {
				token, err = readToken(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if userID == "" || token == "" {
				return errors.New("both --user and --token are required")
			}

			if verify {
				client := api.NewFromConfig(c, token, log)
				if _, err := client.UnreadCount(cmd.Context()); err != nil {
					return fmt.Errorf("verifying token: %w", err)
				}
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			st, err := store.OpenCredentials(c, paths.Session, log)
			if err != nil {
				return err
			}
			defer st.Close()

			err = st.Save(store.Credentials{
				Profile: c.Session.Profile,
				UserID:  userID,
				Token:   token,
				BaseURL: c.API.BaseURL,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (profile %s)\n", userID, c.Session.Profile)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "your user id")
	cmd.Flags().StringVar(&token, "token", "", "access token, or - to read it from stdin")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the token against the API before saving")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved credentials for a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadedConfig()
			if err != nil {
				return err
			}
			st, err := store.OpenCredentials(c, paths.Session, log)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(c.Session.Profile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out (profile %s)\n", c.Session.Profile)
			return nil
		},
	}
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
