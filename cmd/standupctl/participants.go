package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
	"github.com/zhouzirui/standup/backend/internal/store"
)

func newParticipantsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "participants",
		Aliases: []string{"p"},
		Short:   "Inspect stored participant history",
	}
	cmd.AddCommand(newParticipantsListCmd(a), newParticipantsShowCmd(a))
	return cmd
}

func openStore(cmd *cobra.Command, a *app) (participant.Store, error) {
	s := store.Open(cmd.Context(), a.cfg.Store, a.logger)
	if !s.Connected() {
		if disabled, ok := s.(participant.DisabledStore); ok && disabled.Reason != nil {
			return nil, fmt.Errorf("%w: %v", participant.ErrUnavailable, disabled.Reason)
		}
		return nil, participant.ErrUnavailable
	}
	return s, nil
}

func newParticipantsListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List participants and their projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore(cmd, a)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			list, err := s.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list participants: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPROJECT")
			for _, p := range list {
				fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Project)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newParticipantsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one participant's record and session logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd, a)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			rec, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get %s: %w", args[0], err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}
