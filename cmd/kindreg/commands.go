package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/internal/app"
	"github.com/itsneelabh/kindreg/internal/versions"
	"github.com/itsneelabh/kindreg/telemetry"
)

// NewRootCmd creates the kindreg command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kindreg",
		Short:         "Tag-indexed component registry",
		Long:          "kindreg constructs its components, indexes them by tag and serves the registry and health monitor over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a JSON or YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json, text)")
	rootCmd.PersistentFlags().String("monitor-tag", "", "Tag aggregated by the health monitor")
	rootCmd.PersistentFlags().String("redis-url", "", "Mirror the registry to this Redis URL")
	rootCmd.PersistentFlags().Bool("dev", false, "Enable development mode")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the registry HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", -1, "Port to listen on (0 picks a free port)")
	cmd.Flags().String("address", "", "Address to bind")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [tag]",
		Short: "Populate the registry and list components by tag",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runList,
	}
	cmd.Flags().String("format", "text", "Output format (text, json)")
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Populate the registry and run the health monitor once",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
	cmd.Flags().String("format", "text", "Output format (text, json)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, _ := cmd.Flags().GetString("format")
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "kindreg %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

// loadConfig builds the config from defaults, environment and flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command) (*core.Config, error) {
	var opts []core.Option
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		opts = append(opts, core.WithConfigFile(path))
	}
	if dev, _ := flags.GetBool("dev"); dev {
		opts = append(opts, core.WithDevelopmentMode(true))
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		opts = append(opts, core.WithLogLevel(v))
	}
	if flags.Changed("log-format") {
		v, _ := flags.GetString("log-format")
		opts = append(opts, core.WithLogFormat(v))
	}
	if flags.Changed("monitor-tag") {
		v, _ := flags.GetString("monitor-tag")
		opts = append(opts, core.WithMonitorTag(v))
	}
	if flags.Changed("redis-url") {
		v, _ := flags.GetString("redis-url")
		opts = append(opts, core.WithRedisMirror(v))
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		v, _ := flags.GetInt("port")
		opts = append(opts, core.WithPort(v))
	}
	if flags.Lookup("address") != nil && flags.Changed("address") {
		v, _ := flags.GetString("address")
		opts = append(opts, core.WithAddress(v))
	}

	return core.NewConfig(opts...)
}

func bootstrap(cmd *cobra.Command, cfg *core.Config, opts ...app.Option) (*app.App, error) {
	opts = append(opts, app.WithTelemetryOptions(telemetry.WithServiceVersion(versions.Version)))
	return app.Bootstrap(cmd.Context(), cfg, opts...)
}

// stderrLogger keeps stdout clean for command output.
func stderrLogger(cmd *cobra.Command, cfg *core.Config) core.Logger {
	return core.NewLoggerWithOutput(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format, cfg.Name)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	a, err := bootstrap(cmd, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// ComponentListing is the JSON form of `kindreg list`.
type ComponentListing struct {
	Tags  []TagListing `json:"tags"`
	Total int          `json:"total"`
}

// TagListing groups component names under one tag.
type TagListing struct {
	Tag   string   `json:"tag"`
	Names []string `json:"names"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd, cfg, app.WithLogger(stderrLogger(cmd, cfg)))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	snap := a.Registry.Snapshot()
	listing := ComponentListing{Tags: []TagListing{}}
	for _, tag := range snap.Tags {
		if len(args) == 1 && tag.String() != args[0] {
			continue
		}
		names := snap.Names[tag]
		listing.Tags = append(listing.Tags, TagListing{Tag: tag.String(), Names: names})
		listing.Total += len(names)
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), listing)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tCOUNT\tCOMPONENTS")
	for _, t := range listing.Tags {
		fmt.Fprintf(w, "%s\t%d\t%s\n", t.Tag, len(t.Names), strings.Join(t.Names, ", "))
	}
	return w.Flush()
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd, cfg, app.WithLogger(stderrLogger(cmd, cfg)))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	checks := a.Monitor.Check()

	format, _ := cmd.Flags().GetString("format")
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), checks)
	}
	for _, c := range checks {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), c); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
