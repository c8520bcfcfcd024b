package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/testutil"
	"github.com/vmlang/corec/pkg/compiler"
)

var (
	showAbi        bool
	compileVerbose bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [fixture]",
	Short: "Compile a fixture through the full pipeline",
	Long: `Compile a YAML fixture (units plus root module) to bytecode and
print the encoded words. Use --abi to print the JSON ABI descriptor too.

Examples:
  corec compile examples/identity.yaml
  corec compile examples/identity.yaml --abi`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().BoolVar(&showAbi, "abi", false, "print the JSON ABI descriptor")
	compileCmd.Flags().BoolVarP(&compileVerbose, "verbose", "v", false, "verbose output")
}

func runCompile(_ *cobra.Command, args []string) error {
	result, err := compileFixture(args[0])
	if err != nil {
		return err
	}
	switch result.Kind {
	case compiler.ResultFailure:
		for _, d := range result.Errors {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		os.Exit(1)
	case compiler.ResultLibrary:
		fmt.Println("library compiled; no bytecode to emit")
	case compiler.ResultBytecode:
		for _, w := range result.Words {
			fmt.Printf("%016x\n", w)
		}
		if showAbi {
			data, merr := result.Abi.Marshal()
			if merr != nil {
				return merr
			}
			fmt.Println(string(data))
		}
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, w.Error())
	}
	return nil
}

func compileFixture(path string) (compiler.CompileResult, error) {
	fx, err := testutil.Load(path)
	if err != nil {
		return compiler.CompileResult{}, err
	}
	spans := span.NewInterner(path)

	var deps []compiler.Unit
	for _, u := range fx.Units {
		mod, merr := u.Module(spans)
		if merr != nil {
			return compiler.CompileResult{}, merr
		}
		deps = append(deps, compiler.Unit{Name: u.Name, Module: mod})
	}
	root, err := fx.Root.Module(spans)
	if err != nil {
		return compiler.CompileResult{}, err
	}
	if compileVerbose {
		fmt.Fprintf(os.Stderr, "compiling %s: %d dependency unit(s), root %q\n", path, len(deps), root.Name)
	}
	return compiler.Compile(root, deps, spans), nil
}
