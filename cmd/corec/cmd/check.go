package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmlang/corec/pkg/compiler"
)

var checkCmd = &cobra.Command{
	Use:   "check [fixture]",
	Short: "Type-check a fixture without emitting bytecode",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		result, err := compileFixture(args[0])
		if err != nil {
			return err
		}
		if result.Kind == compiler.ResultFailure {
			for _, d := range result.Errors {
				fmt.Fprintln(os.Stderr, d.Error())
			}
			os.Exit(1)
		}
		for _, w := range result.Warnings {
			fmt.Fprintln(os.Stderr, w.Error())
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
