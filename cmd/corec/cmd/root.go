package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "corec",
	Short: "Contract-language core compiler",
	Long: `corec drives the core compilation pipeline for the contract
language: semantic analysis over parsed units, typed-AST to IR lowering
with optimization passes, and register-machine bytecode emission with a
JSON ABI descriptor.

Input units are described by YAML fixtures standing in for the external
parser and dependency resolver, which live outside this module.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().Bool("color", true, "accepted but not read by any subcommand; diagnostics print as plain text")
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(2)
}
