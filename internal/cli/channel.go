package cli

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/pkg"
)

func newChannelCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Channel token commands",
	}
	cmd.AddCommand(newChannelInspectCmd(opts))
	return cmd
}

// ChannelInfo is the decoded, unverified content of a channel token.
type ChannelInfo struct {
	Algorithm   string    `json:"alg"`
	GameID      string    `json:"gameid"`
	AreaID      string    `json:"areaid"`
	AreaDefault bool      `json:"areaDefault,omitempty"`
	UID         string    `json:"uid"`
	Type        string    `json:"type"`
	Method      string    `json:"amr,omitempty"`
	ID          string    `json:"jti"`
	IssuedAt    time.Time `json:"iat"`
	ExpiresAt   time.Time `json:"exp"`
	Expired     bool      `json:"expired"`
	ExpiresIn   string    `json:"expiresIn,omitempty"`
}

// InspectChannelToken decodes raw without verifying its signature.
func InspectChannelToken(raw string, now time.Time) (ChannelInfo, error) {
	claims := &auth.ChannelClaims{}
	tok, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("decode channel token: %w", err)
	}
	info := ChannelInfo{
		Algorithm:   tok.Method.Alg(),
		GameID:      claims.GameID,
		AreaID:      claims.AreaID,
		AreaDefault: claims.AreaDefault,
		UID:         claims.UID,
		Method:      claims.Method,
		ID:          claims.ID,
	}
	if claims.Type != nil {
		info.Type = *claims.Type
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = !now.Before(claims.ExpiresAt.Time)
		if !info.Expired {
			info.ExpiresIn = pkg.CompactDuration(claims.ExpiresAt.Sub(now).Truncate(time.Second))
		}
	}
	return info, nil
}

func newChannelInspectCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a channel token without verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := InspectChannelToken(args[0], time.Now())
			if err != nil {
				return err
			}
			return NewOutput(cmd.OutOrStdout(), opts.Output).Print(info)
		},
	}
}
