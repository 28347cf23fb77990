// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <user-id>",
		Short: "Show the persisted progression of a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), rootOpts, cmd.OutOrStdout(), args[0])
		},
	}
}

func runInspect(ctx context.Context, opts *RootOptions, w io.Writer, userID string) error {
	client, err := opts.Dial(opts.Addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	resp, err := client.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get progression of %s: %w", userID, err)
	}

	return opts.write(w, resp, func(w io.Writer) {
		fmt.Fprintf(w, "user:     %s\n", resp.UserID)
		fmt.Fprintf(w, "state:    %s\n", resp.Progression)
		fmt.Fprintf(w, "flagged:  %t\n", resp.Flagged)
	})
}
