// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/validator"

	"github.com/spf13/cobra"
)

// CheckResult is the verdict for one before/after pair.
type CheckResult struct {
	Before    progression.State         `json:"before"`
	After     progression.State         `json:"after"`
	NoOp      bool                      `json:"noop"`
	Legal     bool                      `json:"legal"`
	Event     progression.Event         `json:"event,omitempty"`
	Activated bool                      `json:"activated,omitempty"`
	Kind      progression.InvariantKind `json:"kind,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var before, after string

	cmd := &cobra.Command{
		Use:     "check",
		Short:   "Decide whether a before/after pair is a legal single step",
		Example: `  hyperstreakctl check --before '{"bar":4}' --after '{"active":true,"activationCount":1}'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd.OutOrStdout(), before, after)
		},
	}

	cmd.Flags().StringVar(&before, "before", "{}", "state before the write (JSON)")
	cmd.Flags().StringVar(&after, "after", "{}", "state after the write (JSON)")

	return cmd
}

func runCheck(opts *RootOptions, w io.Writer, rawBefore, rawAfter string) error {
	rules, err := opts.rules()
	if err != nil {
		return err
	}

	var before, after progression.State
	if err := json.Unmarshal([]byte(rawBefore), &before); err != nil {
		return fmt.Errorf("invalid --before: %w", err)
	}
	if err := json.Unmarshal([]byte(rawAfter), &after); err != nil {
		return fmt.Errorf("invalid --after: %w", err)
	}

	verdict := validator.Check(rules, before, after)
	result := CheckResult{
		Before:    before,
		After:     after,
		NoOp:      verdict.NoOp,
		Legal:     verdict.Legal,
		Event:     verdict.Event,
		Activated: verdict.Activated,
		Kind:      verdict.Kind,
	}

	return opts.write(w, result, func(w io.Writer) {
		switch {
		case result.NoOp:
			fmt.Fprintf(w, "no-op: %s\n", before)
		case result.Legal:
			fmt.Fprintf(w, "legal (%s): %s -> %s\n", result.Event, before, after)
		default:
			fmt.Fprintf(w, "illegal (%s): %s -> %s\n", result.Kind, before, after)
		}
	})
}
