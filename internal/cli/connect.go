package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/httpx/player"
)

func newConnectCmd(opts *Options) *cobra.Command {
	var (
		f            signFlags
		sessionToken string
		gameToken    string
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect as a player with a session token, a game JWT or signed fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req auth.ConnectRequest
			switch {
			case sessionToken != "":
				req.SessionToken = sessionToken
			case gameToken != "":
				req.Token = gameToken
			default:
				var err error
				if req, err = f.request(time.Now()); err != nil {
					return err
				}
			}
			var out player.ConnectResponse
			if err := NewClient(opts.ServerURL).Do(cmd.Context(), http.MethodPost, "/api/v1/player/connect", req, &out); err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.Output).Print(out)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&sessionToken, "session", "", "Reconnect with a session token")
	cmd.Flags().StringVar(&gameToken, "jwt", "", "Connect with a game-issued JWT")
	return cmd
}
