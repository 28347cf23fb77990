// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/optimistic"

	"github.com/spf13/cobra"
)

// PlayStep is the cached view after one event was applied and synced.
type PlayStep struct {
	Event    string              `json:"event"`
	Snapshot optimistic.Snapshot `json:"snapshot"`
	Signals  []optimistic.Signal `json:"signals,omitempty"`
	SyncErr  string              `json:"syncError,omitempty"`
}

// PlayResult is the outcome of a play session.
type PlayResult struct {
	UserID  string              `json:"userId"`
	Steps   []PlayStep          `json:"steps"`
	Final   optimistic.Snapshot `json:"final"`
	Flagged bool                `json:"flagged"`
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "play <user-id> <event>...",
		Short:   "Drive an optimistic session against the service",
		Example: "  hyperstreakctl play player-1 c c c c c",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), rootOpts, cmd.OutOrStdout(), args[0], args[1:])
		},
	}
}

func runPlay(ctx context.Context, opts *RootOptions, w io.Writer, userID string, args []string) error {
	rules, err := opts.rules()
	if err != nil {
		return err
	}
	events, err := parseEvents(args)
	if err != nil {
		return err
	}

	client, err := opts.Dial(opts.Addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		signals []optimistic.Signal
	)
	observer := optimistic.ObserverFuncs{
		OnSignal: func(s optimistic.Signal) {
			mu.Lock()
			signals = append(signals, s)
			mu.Unlock()
		},
	}

	session := optimistic.NewSession(userID, client,
		optimistic.WithRules(rules),
		optimistic.WithObserver(observer),
	)
	defer session.Close()

	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("failed to load progression of %s: %w", userID, err)
	}

	result := PlayResult{UserID: userID}
	for _, event := range events {
		pending, err := session.ApplyEvent(ctx, event)
		if err != nil {
			return err
		}

		step := PlayStep{Event: string(event)}
		if err := pending.Wait(ctx); err != nil {
			step.SyncErr = err.Error()
		}

		mu.Lock()
		step.Signals, signals = signals, nil
		mu.Unlock()
		step.Snapshot = session.Snapshot()
		result.Steps = append(result.Steps, step)
	}

	resp, err := client.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read back progression of %s: %w", userID, err)
	}
	result.Final = session.Snapshot()
	result.Flagged = resp.Flagged

	return opts.write(w, result, func(w io.Writer) {
		for i, step := range result.Steps {
			fmt.Fprintf(w, "%2d %-7s bar=%d/%d active=%t remaining=%d activations=%d",
				i+1, step.Event, step.Snapshot.Bar, step.Snapshot.BarMax, step.Snapshot.Active,
				step.Snapshot.QuestionsRemaining, step.Snapshot.ActivationCount)
			for _, s := range step.Signals {
				fmt.Fprintf(w, " [%s]", s)
			}
			if step.SyncErr != "" {
				fmt.Fprintf(w, " sync failed: %s", step.SyncErr)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "flagged: %t\n", result.Flagged)
	})
}
