package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"player-ticket-gateway/internal/esx"
	"player-ticket-gateway/internal/ticket"
)

func newAdminCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (require --admin-token)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.AdminToken == "" {
				return fmt.Errorf("--admin-token or ADMIN_TOKEN is required")
			}
			return nil
		},
	}
	cmd.AddCommand(newAdminConnectsCmd(opts))
	cmd.AddCommand(newAdminStatusCmd(opts))
	return cmd
}

func adminClient(opts *Options) *Client {
	return NewClient(opts.ServerURL).WithHeader("Authorization", "Bearer "+opts.AdminToken)
}

func newAdminConnectsCmd(opts *Options) *cobra.Command {
	var (
		gameID, uid, event, sort string
		limit, offset            int
	)
	cmd := &cobra.Command{
		Use:   "connects",
		Short: "Search the connect audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gameID == "" {
				return fmt.Errorf("--game is required")
			}
			q := url.Values{}
			q.Set("gameid", gameID)
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			for k, v := range map[string]string{"uid": uid, "event": event, "sort": sort} {
				if v != "" {
					q.Set(k, v)
				}
			}
			var docs []esx.ConnectDoc
			if err := adminClient(opts).Do(cmd.Context(), http.MethodGet, "/api/v1/admin/connects?"+q.Encode(), nil, &docs); err != nil {
				return err
			}
			out := NewOutput(cmd.OutOrStdout(), opts.Output)
			for _, d := range docs {
				if err := out.Print(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "Game id (required)")
	cmd.Flags().StringVar(&uid, "uid", "", "Player uid")
	cmd.Flags().StringVar(&event, "event", "", "player.connected or auth.rejected")
	cmd.Flags().StringVar(&sort, "sort", "", "at:asc or at:desc")
	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func newAdminStatusCmd(opts *Options) *cobra.Command {
	var closedBy string
	cmd := &cobra.Command{
		Use:   "status <ticket-id> <WAITING|IN_PROGRESS|RESOLVED>",
		Short: "Move a ticket to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			next := ticket.Status(args[1])
			if !next.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			body := map[string]string{"status": string(next), "closedBy": closedBy}
			var t ticket.Ticket
			path := "/api/v1/admin/tickets/" + url.PathEscape(args[0]) + "/status"
			if err := adminClient(opts).Do(cmd.Context(), http.MethodPatch, path, body, &t); err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.Output).Print(t)
		},
	}
	cmd.Flags().StringVar(&closedBy, "by", "", "Agent closing the ticket")
	return cmd
}
