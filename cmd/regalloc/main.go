// Command regalloc is a debugging front end for the allocator: it runs the
// full pipeline over functions in the text or YAML form, canonicalizes
// fixtures, renders interval charts and generates random test inputs.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/celer-lang/regalloc"
	"github.com/celer-lang/regalloc/gen"
	"github.com/celer-lang/regalloc/ir"
	"github.com/celer-lang/regalloc/regtext"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "regalloc:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "regalloc",
		Short:         "register allocation debugging tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newFmtCmd(), newSvgCmd(), newGenCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "allocate a function and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ri, err := loadFile(args[0])
			if err != nil {
				return err
			}
			ctx := regalloc.NewContext()
			if debug {
				logger := logrus.New()
				logger.SetLevel(logrus.DebugLevel)
				logger.SetOutput(cmd.ErrOrStderr())
				ctx.Logger = logger
			}
			res, err := allocate(f, ri, ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "trace every allocation decision")
	return cmd
}

func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <file>",
		Short: "canonicalize a function in the text form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ri, err := loadFile(args[0])
			if err != nil {
				return err
			}
			return regtext.Print(cmd.OutOrStdout(), f, ri)
		},
	}
}

func newSvgCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "svg <file>",
		Short: "allocate a function and render its intervals as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ri, err := loadFile(args[0])
			if err != nil {
				return err
			}
			ctx := regalloc.NewContext()
			if _, err := allocate(f, ri, ctx); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" {
				of, err := os.Create(out)
				if err != nil {
					return errors.Wrap(err, "creating output")
				}
				defer of.Close()
				w = of
			}
			ctx.WriteIntervalChart(w)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the chart to a file instead of stdout")
	return cmd
}

func newGenCmd() *cobra.Command {
	var seed int64
	cfg := gen.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "generate a random function in the text form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, ri := gen.New(seed).Function(cfg)
			return regtext.Print(cmd.OutOrStdout(), f, ri)
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 1, "generator seed")
	cmd.Flags().IntVar(&cfg.Blocks, "blocks", cfg.Blocks, "chain length")
	cmd.Flags().IntVar(&cfg.VRegs, "vregs", cfg.VRegs, "virtual register count")
	cmd.Flags().IntVar(&cfg.Classes, "classes", cfg.Classes, "register class count")
	cmd.Flags().IntVar(&cfg.RegsPerClass, "regs", cfg.RegsPerClass, "registers per class")
	return cmd
}

// loadFile reads a function in the text form, or the YAML form for .yaml
// and .yml files.
func loadFile(path string) (*ir.Function, *ir.RegInfo, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		r, err := os.Open(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening input")
		}
		defer r.Close()
		file, err := ir.DecodeYAML(r)
		if err != nil {
			return nil, nil, err
		}
		return file.Function, file.RegInfo, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading input")
	}
	return regtext.Parse(src)
}

// allocate validates and runs the full pipeline.
func allocate(f *ir.Function, ri *ir.RegInfo, ctx *regalloc.Context) (*regalloc.AllocationResult, error) {
	if err := regalloc.ValidateRegInfo(ri); err != nil {
		return nil, err
	}
	if err := regalloc.ValidateFunction(f, ri); err != nil {
		return nil, err
	}
	return regalloc.Allocate(f, ri, ctx)
}
