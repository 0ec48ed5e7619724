// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package main

import (
	"fmt"
	"io"

	"github.com/mbeema/perfhook/pkg/engine/gohook"
	"github.com/mbeema/perfhook/pkg/hook"
	"github.com/spf13/cobra"
)

func newEnginesCmd(flags *globalFlags) *cobra.Command {
	var discover bool

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List registered hook engines and platform support",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			printEngines(out)
			if !discover {
				return nil
			}

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger, _, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()
			b := hook.Discover(cfg, logger)
			s := b.Stats()
			fmt.Fprintf(out, "\nselected: %s (kind %s)\n", s.Engine, s.Kind)
			return nil
		},
	}

	cmd.Flags().BoolVar(&discover, "discover", false, "run discovery with the loaded config and print the selected engine")
	return cmd
}

func printEngines(out io.Writer) {
	fmt.Fprintln(out, "registered engines (discovery order):")
	for i, name := range hook.Providers() {
		fmt.Fprintf(out, "  %d. %s\n", i+1, name)
	}

	s := gohook.Detect()
	fmt.Fprintf(out, "\nplatform: %s/%s kernel %s\n", s.OS, s.Arch, s.Kernel)
	if s.Available {
		fmt.Fprintln(out, "gohook: available")
	} else {
		fmt.Fprintf(out, "gohook: unavailable (%s)\n", s.Reason)
	}
}
