package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/fixture"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
	"github.com/raymyers/ralph-translate-c/pkg/lirgen"
	"github.com/raymyers/ralph-translate-c/pkg/lirinterp"
	"github.com/raymyers/ralph-translate-c/pkg/preproc"
)

// ErrWarnings is returned under --werror when lowering reported diagnostics
var ErrWarnings = errors.New("warnings treated as errors")

// unit is the outcome of translating one file
type unit struct {
	file  *lir.File
	diags diag.List
	err   error
}

// translateFile preprocesses, parses and lowers one C file.
func translateFile(path string, tgt *ctarget.Target, logger logrus.FieldLogger) unit {
	log := logger.WithField("file", path)
	prog, err := preproc.File(path, tgt, buildPreprocessorOptions(log))
	if err != nil {
		return unit{err: err}
	}
	f, diags, err := lirgen.TranslateUnit(prog, lirgen.Options{Target: tgt, Logger: log})
	return unit{file: f, diags: diags, err: err}
}

// report prints the diagnostics of u to errOut and returns the error the
// command should fail with.
func report(errOut io.Writer, path string, u unit) error {
	for _, line := range u.diags.Strings() {
		fmt.Fprintf(errOut, "ralph-translate-c: %s\n", line)
	}
	if u.err != nil {
		fmt.Fprintf(errOut, "ralph-translate-c: %s: error: %v\n", path, u.err)
		return u.err
	}
	if werror && len(u.diags) > 0 {
		return fmt.Errorf("%s: %w", path, ErrWarnings)
	}
	return nil
}

func newTranslateCmd(out, errOut io.Writer, logger *logrus.Logger) *cobra.Command {
	var outputPath string
	var dumpIR bool
	cmd := &cobra.Command{
		Use:   "translate file.c...",
		Short: "Translate C files to Zig",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath != "" && len(args) > 1 {
				return fmt.Errorf("-o cannot be used with %d input files", len(args))
			}
			tgt, err := resolveTarget(errOut)
			if err != nil {
				return err
			}

			units := make([]unit, len(args))
			var g errgroup.Group
			g.SetLimit(jobLimit())
			for i, path := range args {
				g.Go(func() error {
					units[i] = translateFile(path, tgt, logger)
					return nil
				})
			}
			_ = g.Wait()

			var buf bytes.Buffer
			var errs []error
			for i, path := range args {
				if err := report(errOut, path, units[i]); err != nil {
					errs = append(errs, err)
					continue
				}
				if dumpIR {
					if err := writeIR(&buf, units[i].file); err != nil {
						return err
					}
					continue
				}
				lir.NewPrinter(&buf).PrintFile(units[i].file)
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}
			if outputPath == "" {
				_, err := out.Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
				fmt.Fprintf(errOut, "ralph-translate-c: error writing %s: %v\n", outputPath, err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the translation to this file")
	cmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "Print the lowered IR as JSON instead of Zig")
	return cmd
}

// irDecl tags a top-level declaration with its node kind
type irDecl struct {
	Kind string   `json:"kind"`
	Decl lir.Stmt `json:"decl"`
}

// writeIR dumps f as indented JSON.
func writeIR(w io.Writer, f *lir.File) error {
	decls := make([]irDecl, len(f.Decls))
	for i, d := range f.Decls {
		decls[i] = irDecl{Kind: fmt.Sprintf("%T", d), Decl: d}
	}
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	data, err := json.MarshalIndent(decls, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding IR: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func newRunCmd(out, errOut io.Writer, logger *logrus.Logger) *cobra.Command {
	var maxSteps int64
	cmd := &cobra.Command{
		Use:   "run file.c [args...]",
		Short: "Translate a C file and execute its main function",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tgt, err := resolveTarget(errOut)
			if err != nil {
				return err
			}
			u := translateFile(args[0], tgt, logger)
			if err := report(errOut, args[0], u); err != nil {
				return err
			}
			m, err := lirinterp.New(u.file, lirinterp.Options{
				Target:   tgt,
				Stdout:   out,
				Logger:   logger.WithField("file", args[0]),
				MaxSteps: maxSteps,
			})
			if err != nil {
				return err
			}
			code, err := m.Run(contextOf(cmd), "main", args[1:])
			if err != nil {
				fmt.Fprintf(errOut, "ralph-translate-c: %s: %v\n", args[0], err)
				return err
			}
			if code != 0 {
				return exitStatus(code)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxSteps, "max-steps", 0, "Stop after this many steps (0 = unlimited)")
	return cmd
}

func newFixturesCmd(out, errOut io.Writer, logger *logrus.Logger) *cobra.Command {
	var match string
	var unsupported []string
	cmd := &cobra.Command{
		Use:   "fixtures [dir]",
		Short: "Check translate and run fixtures",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "testdata/cases"
			if len(args) == 1 {
				dir = args[0]
			}
			opts := fixture.Options{Unsupported: unsupported, Jobs: jobLimit(), Logger: logger}
			if cmd.Flags().Changed("target") || targetTriple != "native" {
				tgt, err := resolveTarget(errOut)
				if err != nil {
					return err
				}
				opts.Target = tgt
			}
			fixtures, err := fixture.Load(dir, match)
			if err != nil {
				fmt.Fprintf(errOut, "ralph-translate-c: %v\n", err)
				return err
			}
			results, err := fixture.CheckAll(contextOf(cmd), fixtures, opts)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Status == fixture.Pass || r.Status == fixture.XFail && !verbose {
					continue
				}
				fmt.Fprintf(out, "%-5s %s/%s\n", r.Status, r.Fixture.Kind, r.Fixture.Name)
				if !r.Failed() {
					continue
				}
				failed++
				if r.Err != nil {
					fmt.Fprintf(out, "      %v\n", r.Err)
				}
				if r.Diff != "" {
					fmt.Fprint(out, r.Diff)
				}
				if r.Fixture.Kind == fixture.Run && r.Err == nil {
					fmt.Fprintf(out, "      exit status %d\n", r.Code)
				}
			}
			fmt.Fprintln(out, fixture.Summarize(results))
			if failed > 0 {
				return fmt.Errorf("%d fixtures failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "Only check fixtures whose kind/name matches this glob")
	cmd.Flags().StringSliceVar(&unsupported, "unsupported", []string{"vector_index"}, "Features whose skip_<feature> fixtures are skipped")
	return cmd
}

func jobLimit() int {
	if jobs > 0 {
		return jobs
	}
	return runtime.GOMAXPROCS(0)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
