package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"player-ticket-gateway/internal/auth"
)

// signFlags are the inputs of a signed connect request.
type signFlags struct {
	gameID, uid, areaID, playerName string
	secret, algo, nonce             string
	ts                              int64
}

func (f *signFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.gameID, "game", "", "Game id")
	cmd.Flags().StringVar(&f.uid, "uid", "", "Player uid")
	cmd.Flags().StringVar(&f.areaID, "area", "", "Area id")
	cmd.Flags().StringVar(&f.playerName, "name", "", "Player display name")
	cmd.Flags().StringVar(&f.secret, "secret", "", "Game secret (env: GAME_SECRET)")
	cmd.Flags().StringVar(&f.algo, "algo", "sha256", "Digest: sha256, md5, blake3")
	cmd.Flags().StringVar(&f.nonce, "nonce", "", "Nonce (default: random uuid)")
	cmd.Flags().Int64Var(&f.ts, "ts", 0, "Unix milliseconds (default: now)")
}

// request builds the signed connect request.
func (f *signFlags) request(now time.Time) (auth.ConnectRequest, error) {
	if f.gameID == "" || f.uid == "" {
		return auth.ConnectRequest{}, fmt.Errorf("--game and --uid are required")
	}
	secret := f.secret
	if secret == "" {
		secret = envOr("GAME_SECRET", "")
	}
	if secret == "" {
		return auth.ConnectRequest{}, fmt.Errorf("--secret or GAME_SECRET is required")
	}
	digest, err := auth.ParseDigest(f.algo)
	if err != nil {
		return auth.ConnectRequest{}, err
	}
	ts := f.ts
	if ts == 0 {
		ts = now.UnixMilli()
	}
	nonce := f.nonce
	if nonce == "" {
		nonce = uuid.NewString()
	}
	return auth.ConnectRequest{
		GameID:     f.gameID,
		UID:        f.uid,
		AreaID:     f.areaID,
		Timestamp:  strconv.FormatInt(ts, 10),
		Nonce:      nonce,
		Sign:       auth.Sign(digest, f.gameID, f.uid, f.areaID, ts, nonce, secret),
		PlayerName: f.playerName,
	}, nil
}

func newSignCmd(opts *Options) *cobra.Command {
	var f signFlags
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the fields of a signed connect request",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(time.Now())
			if err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.Output).Print(req)
		},
	}
	f.register(cmd)
	return cmd
}
