// ABOUTME: CLI entrypoint for mdtview with run, watch, fetch, diagram and version commands.
// ABOUTME: Resolves configuration, builds the client and session controller, and picks TUI, inline or plain output.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// options holds the flags shared by every command.
type options struct {
	configPath    string
	baseURL       string
	format        string
	diagramFormat string
	markdownOut   string
	htmlOut       string
	jsonOut       string
	diagramOut    string
	logFile       string
	metricsAddr   string
	style         string
	verbose       bool
	plain         bool
	inline        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:           "mdtview",
		Short:         "Watch multidisciplinary tumor board simulations from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/mdtview/config.yaml)")
	pf.StringVar(&o.baseURL, "base-url", "", "Backend base URL")
	pf.StringVar(&o.format, "format", "", "Report output: json, markdown or both")
	pf.StringVar(&o.diagramFormat, "diagram-format", "", "Diagram output: dot, svg or png")
	pf.StringVar(&o.markdownOut, "markdown-out", "", "Write the report as Markdown to this file")
	pf.StringVar(&o.htmlOut, "html-out", "", "Write the report as HTML to this file")
	pf.StringVar(&o.jsonOut, "json-out", "", "Write the report as JSON to this file")
	pf.StringVar(&o.diagramOut, "diagram-out", "", "Keep the workflow diagram written to this file")
	pf.StringVar(&o.logFile, "log-file", "", "Log file (TUI mode default: $XDG_STATE_HOME/mdtview/mdtview.log)")
	pf.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while watching")
	pf.StringVar(&o.style, "style", "", "Report style for the terminal: dark, light, notty")
	pf.BoolVar(&o.verbose, "verbose", false, "Verbose output")
	pf.BoolVar(&o.plain, "plain", false, "Print progress as plain lines instead of the TUI")
	pf.BoolVar(&o.inline, "inline", false, "Show compact inline progress instead of the full-screen TUI")

	cmd.SetHelpFunc(helpWithEnvironment(cmd.HelpFunc()))

	cmd.AddCommand(runCmd(o), watchCmd(o), fetchCmd(o), diagramCmd(o), versionCmd())
	return cmd
}

func runCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <case.json>",
		Short: "Upload a patient case and watch the simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			cf, err := readCaseFile(args[0])
			if err != nil {
				return err
			}
			return watch(cmd.Context(), o, cfg, start{caseFile: &cf})
		},
	}
}

func watchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <run_id>",
		Short: "Attach to an existing run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			return watch(cmd.Context(), o, cfg, start{runID: args[0]})
		},
	}
}

func fetchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <run_id>",
		Short: "Fetch a finished run's report directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			return fetch(cmd.Context(), cmd.OutOrStdout(), o, cfg, args[0])
		},
	}
}

func diagramCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "diagram",
		Short: "Print the workflow diagram with every agent idle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			return printDiagram(cmd.Context(), cmd.OutOrStdout(), o, cfg)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mdtview %s\n", version)
		},
	}
}
