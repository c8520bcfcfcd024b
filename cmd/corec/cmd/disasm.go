package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmlang/corec/internal/asm"
	"github.com/vmlang/corec/pkg/compiler"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [fixture]",
	Short: "Compile a fixture and print the decoded instruction listing",
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
		if result.Kind != compiler.ResultBytecode {
			fmt.Println("nothing to disassemble")
			return nil
		}
		ops, err := asm.DecodeProgram(result.Words)
		if err != nil {
			return err
		}
		for i, op := range ops {
			fmt.Printf("%08x  %s\n", i, op.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}
