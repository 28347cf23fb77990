// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"

	"github.com/spf13/cobra"
)

// NewSimulateCommand creates the simulate command, which runs events through the engine locally.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:     "simulate <event>...",
		Short:   "Run answer events through the state machine without a server",
		Example: "  hyperstreakctl simulate c c c c c w",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, cmd.OutOrStdout(), from, args)
		},
	}

	cmd.Flags().StringVar(&from, "from", "{}", "starting state (JSON)")

	return cmd
}

func runSimulate(opts *RootOptions, w io.Writer, from string, args []string) error {
	rules, err := opts.rules()
	if err != nil {
		return err
	}
	events, err := parseEvents(args)
	if err != nil {
		return err
	}

	var state progression.State
	if err := json.Unmarshal([]byte(from), &state); err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	if err := rules.CheckInvariants(state); err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}

	transitions := make([]progression.Transition, 0, len(events))
	for _, event := range events {
		t := rules.Apply(state, event)
		transitions = append(transitions, t)
		state = t.After
	}

	return opts.write(w, transitions, func(w io.Writer) {
		for i, t := range transitions {
			fmt.Fprintf(w, "%2d %-7s %s -> %s%s\n", i+1, t.Event, t.Before, t.After, marker(t))
		}
	})
}

func marker(t progression.Transition) string {
	switch {
	case t.Activated:
		return "  [activated]"
	case t.Crashed:
		return "  [crashed]"
	case t.Ended:
		return "  [ended]"
	}
	return ""
}
