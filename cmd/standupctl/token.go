package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/standup/backend/internal/service/token"
)

func newTokenCmd(a *app) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "token <name>",
		Short: "Mint a room access token for a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if room == "" {
				room = a.cfg.Meeting.RoomName
			}

			issuer := token.NewIssuer(a.cfg.Realtime.APIKey, a.cfg.Realtime.APISecret, a.cfg.Realtime.TokenTTL)
			raw, err := issuer.Issue(token.Grant{Identity: args[0], Name: args[0], Room: room})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), raw)
			return err
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room name (defaults to ROOM_NAME)")
	return cmd
}
