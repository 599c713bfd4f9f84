// Package main is the CLI entry point for replaymon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/alias"
	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/config"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/filename"
	"github.com/eliteGoblin/focusd/replay_mon/internal/infra"
	"github.com/eliteGoblin/focusd/replay_mon/internal/naming"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "replaymon",
	Short: "Replay monitor - names and files replay clips",
	Long: `replaymon follows a screen capture host's replay buffer. Every clip the
host writes is renamed after the game you were playing and moved into a
folder of its own. The buffer is restarted periodically while you are idle
so it never grows stale.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Watches the host's replay folder and renames each new clip.

Signals:
  SIGUSR1  save the buffer now, named after the current program
  SIGUSR2  save the buffer now, named after the most recorded program
  SIGINT/SIGTERM  stop`,
	RunE: runRun,
}

var renderCmd = &cobra.Command{
	Use:   "render <name> [template]",
	Short: "Render a file name template",
	Long:  `Renders the template (or the configured one) for the given name at the current time.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRender,
}

var validateCmd = &cobra.Command{
	Use:   "validate [template]",
	Short: "Check the configuration or a single template",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the base name a clip saved now would get",
	RunE:  runResolve,
}

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Manage program aliases",
}

var aliasesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report malformed aliases in the configuration",
	RunE:  runAliasesCheck,
}

var aliasesExportCmd = &cobra.Command{
	Use:   "export <folder>",
	Short: "Write the configured aliases to " + alias.ExportFileName,
	Args:  cobra.ExactArgs(1),
	RunE:  runAliasesExport,
}

var aliasesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Print aliases from an exported file, dropping bad entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runAliasesImport,
}

var clipsCmd = &cobra.Command{
	Use:   "clips",
	Short: "List recently saved clips",
	RunE:  runClips,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runStatus,
}

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update",
	Short: "Check GitHub for a newer release",
	RunE:  runCheckUpdate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath  string
	metricsAddr string
	namingMode  string
	clipsLimit  int
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (yaml, toml or json)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	resolveCmd.Flags().StringVar(&namingMode, "mode", "", "Naming mode (current_process, most_recorded_process, current_scene)")
	clipsCmd.Flags().IntVarP(&clipsLimit, "limit", "n", 20, "Number of clips to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	aliasesCmd.AddCommand(aliasesCheckCmd, aliasesExportCmd, aliasesImportCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(aliasesCmd)
	rootCmd.AddCommand(clipsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkUpdateCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	template := ""
	if len(args) == 2 {
		template = args[1]
	} else {
		settings, err := config.Load(configPath)
		if err != nil {
			return err
		}
		template = settings.Template
	}

	name, err := filename.Render(args[0], template, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(name)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if err := filename.Validate(args[0]); err != nil {
			return err
		}
		fmt.Println("template OK")
		return nil
	}

	if _, err := config.Load(configPath); err != nil {
		return err
	}
	fmt.Println("configuration OK")
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	mode := settings.Mode()
	if namingMode != "" {
		if mode, err = domain.ParseNamingMode(namingMode); err != nil {
			return err
		}
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	store := alias.NewStore()
	if err := store.Rebuild(settings.Aliases); err != nil {
		return err
	}
	host := infra.NewCommandHost(settings.HostConfig(), clock.NewRealClock(), logger)
	resolver := naming.NewResolver(infra.NewForegroundProbe(infra.NewProcessInspector()), host, store, logger)

	// No history outside the daemon; most_recorded_process samples once.
	base, err := resolver.BaseName(mode, nil, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", base, mode)
	return nil
}

func runAliasesCheck(cmd *cobra.Command, args []string) error {
	settings, err := loadUnchecked()
	if err != nil {
		return err
	}

	errs := alias.Check(settings.Aliases)
	if len(errs) == 0 {
		fmt.Printf("%d aliases OK\n", len(settings.Aliases))
		return nil
	}
	for _, e := range errs {
		fmt.Printf("  [%d] %s\n", e.Index, e.Error())
	}
	return fmt.Errorf("%d of %d aliases are invalid", len(errs), len(settings.Aliases))
}

func runAliasesExport(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	path, err := alias.Export(args[0], settings.Aliases)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d aliases to %s\n", len(settings.Aliases), path)
	return nil
}

func runAliasesImport(cmd *cobra.Command, args []string) error {
	entries, err := alias.Import(args[0])
	if err != nil {
		return err
	}
	kept, dropped := alias.Sanitize(entries)
	for _, e := range dropped {
		fmt.Fprintf(os.Stderr, "dropped [%d]: %s\n", e.Index, e.Error())
	}
	fmt.Println("aliases:")
	for _, entry := range kept {
		fmt.Printf("  - %q\n", entry)
	}
	return nil
}

func runClips(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ledger, err := infra.OpenExistingLedger(settings.DataDir)
	if errors.Is(err, infra.ErrNoLedger) {
		fmt.Println("No clips recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	defer ledger.Close()

	clips, err := ledger.Recent(clipsLimit)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		fmt.Println("No clips recorded yet.")
		return nil
	}

	display := settings.DisplayMode()
	for _, c := range clips {
		forced := ""
		if c.Forced {
			forced = " (forced)"
		}
		fmt.Printf("%s  %-20s %s%s\n", c.SavedAt.Local().Format("2006-01-02 15:04:05"), c.BaseName, display.Format(c.TargetPath), forced)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := loadUnchecked()
	if err != nil {
		return err
	}

	fmt.Println("\n=== replaymon Status ===")

	status, err := infra.NewStatusFile(settings.DataDir).Read()
	if err != nil {
		return err
	}
	if status == nil || !infra.NewProcessInspector().IsRunning(status.PID) {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'replaymon run' to start the daemon.")
		return nil
	}

	fmt.Printf("Status: RUNNING (pid %d, version %s)\n", status.PID, status.AppVersion)
	fmt.Printf("Started: %s\n", status.StartedAt.Local().Format(time.RFC1123))
	if status.SessionActive {
		fmt.Printf("Session: active (%s, %d samples)\n", status.CaptureKind, status.HistorySamples)
	} else {
		fmt.Println("Session: waiting for the host")
	}
	fmt.Printf("Restart schedule: %s", status.SchedulePhase)
	if !status.NextCheckAt.IsZero() {
		fmt.Printf(" (next check in %s)", time.Until(status.NextCheckAt).Round(time.Second))
	}
	fmt.Println()
	fmt.Printf("Clips saved: %d\n", status.ClipsSaved)
	if status.LastClipPath != "" {
		fmt.Printf("Last clip: %s\n", status.LastClipPath)
	}
	if status.LastHeartbeat > 0 {
		lastBeat := time.Unix(status.LastHeartbeat, 0)
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
	}
	fmt.Println("========================")
	return nil
}

func runCheckUpdate(cmd *cobra.Command, args []string) error {
	info, err := infra.NewReleaseChecker().Check(context.Background(), Version)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	if info.Available {
		fmt.Printf("replaymon %s is available (running %s)\n%s\n", info.Latest, info.Current, info.URL)
	} else {
		fmt.Printf("replaymon %s is up to date\n", info.Current)
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("replaymon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// loadUnchecked loads settings without failing on invalid aliases so they
// can be reported.
func loadUnchecked() (*config.Settings, error) {
	settings, err := config.Load(configPath)
	var afe *domain.AliasFormatError
	if errors.As(err, &afe) {
		return config.LoadUnvalidated(configPath)
	}
	return settings, err
}

func dataPath(settings *config.Settings, name string) string {
	return filepath.Join(settings.DataDir, name)
}
