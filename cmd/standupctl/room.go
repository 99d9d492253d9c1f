package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/standup/backend/internal/realtime/livekit"
)

func newRoomCmd(a *app) *cobra.Command {
	var room string

	cmd := &cobra.Command{
		Use:   "room",
		Short: "List who is currently in the stand-up room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Realtime.Enabled() {
				return errors.New("SERVICE_URL, SERVICE_KEY and SERVICE_SECRET are required")
			}
			if room == "" {
				room = a.cfg.Meeting.RoomName
			}

			people, err := livekit.ListParticipants(cmd.Context(), a.cfg.Realtime.URL, a.cfg.Realtime.APIKey, a.cfg.Realtime.APISecret, room)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IDENTITY\tNAME\tJOINED")
			for _, p := range people {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Identity, p.Name, time.Unix(p.JoinedAt, 0).Format(time.TimeOnly))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room name (defaults to ROOM_NAME)")
	return cmd
}
