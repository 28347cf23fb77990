// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/AccelByte/extend-hyperstreak-guard/internal/bootstrap"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/common"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/progression"
	"github.com/AccelByte/extend-hyperstreak-guard/pkg/transport"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Dialer opens a client connection to the progression service.
type Dialer func(addr string) (*transport.Client, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Addr      string
	Format    string
	RulesPath string
	// Timeout bounds every request made against the service.
	Timeout time.Duration

	// Dial overrides how commands reach the service.
	Dial Dialer
}

// NewRootCommand creates the root command of hyperstreakctl.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts.Dial == nil {
		opts.Dial = dialInsecure
	}

	cmd := &cobra.Command{
		Use:   "hyperstreakctl",
		Short: "Inspect and exercise hyperstreak progression",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Timeout <= 0 {
				return fmt.Errorf("invalid timeout %s: must be positive", opts.Timeout)
			}
			return nil
		},
		SilenceUsage: true,
	}

	defaultAddr := fmt.Sprintf("localhost:%d", common.GetEnvInt("GRPC_PORT", 6565))
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", common.GetEnv("HYPERSTREAK_ADDR", defaultAddr), "progression service address")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", common.GetEnvDuration("HYPERSTREAKCTL_TIMEOUT", 10*time.Second), "request timeout")
	cmd.PersistentFlags().StringVar(&opts.RulesPath, "rules", common.GetEnv("RULES_PATH", "config/hyperstreak.yaml"), "hyperstreak rules file")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))

	return cmd
}

func dialInsecure(addr string) (*transport.Client, error) {
	return transport.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func (o *RootOptions) rules() (progression.Rules, error) {
	return bootstrap.LoadRules(o.RulesPath)
}

// write renders v as JSON, or calls text for the text format.
func (o *RootOptions) write(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func parseEvents(args []string) ([]progression.Event, error) {
	events := make([]progression.Event, 0, len(args))
	for _, arg := range args {
		for _, raw := range strings.Split(arg, ",") {
			switch strings.ToLower(strings.TrimSpace(raw)) {
			case "c", "correct":
				events = append(events, progression.EventCorrect)
			case "w", "wrong":
				events = append(events, progression.EventWrong)
			case "":
			default:
				return nil, fmt.Errorf("unknown event %q: use correct|c or wrong|w", raw)
			}
		}
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("at least one event is required")
	}
	return events, nil
}
