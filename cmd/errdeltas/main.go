package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"errdeltas/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "errdeltas <repo_count> <old_version> <new_version> <file_issue>",
	Short: "Find new TypeScript errors between two compiler releases",
	Long: `errdeltas builds popular TypeScript repositories with an old and a new compiler
release and reports the errors only the new release produces.

file_issue is "false" for a dry run; any other value files the summary issue.`,
	Args: cobra.ExactArgs(4),
	RunE: runRoot,
}

// main registers subcommands and flags and executes the root command.
// If command execution returns an error, the process exits with status code 1.
func main() {
	// Версия для автоматического флага --version
	rootCmd.Version = version.Version

	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to errdeltas.toml")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text|json)")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stdout")
	rootCmd.PersistentFlags().String("ui", "off", "progress UI (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "print per-repository step timings")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (.json chrome, .ndjson, .msgpack, text otherwise; - for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|repo|step|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage (stream|ring|both)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "events kept by the ring tracer")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit a heartbeat event at this interval (0 disables)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile of errdeltas to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile of errdeltas to this file on exit")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to this file")

	rootCmd.Flags().Int("max-diagnostics", -1, "maximum diagnostics kept per project (0 is unlimited; -1 keeps the config value)")
	rootCmd.Flags().String("archive", "", "write every repository outcome to this msgpack file")
	rootCmd.Flags().Bool("allow-partial-graph", false, "build the healthy part of a project graph with errors")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
