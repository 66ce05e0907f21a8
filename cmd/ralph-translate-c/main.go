package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/preproc"
)

var version = "0.1.0"

// Global flags
var (
	targetTriple string
	configPath   string
	verbose      bool
	werror       bool
	jobs         int
)

// Preprocessor flags
var (
	includePaths  []string
	systemPaths   []string
	defineFlags   []string
	undefineFlags []string
)

// exitStatus is returned by the run command when the program exits with a
// non-zero status
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// config is the optional YAML file named by --config. Flags given on the
// command line win.
type config struct {
	Target  string            `yaml:"target"`
	Werror  bool              `yaml:"werror"`
	Jobs    int               `yaml:"jobs"`
	Include []string          `yaml:"include"`
	Define  map[string]string `yaml:"define"`
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	err := rootCmd.Execute()
	var status exitStatus
	switch {
	case errors.As(err, &status):
		return int(status)
	case err != nil:
		return 1
	}
	return 0
}

// singleDashFlags accept the gcc spelling with one dash
var singleDashFlags = []string{"isystem", "werror"}

// normalizeFlags converts gcc-style single-dash flags like -isystem to
// --isystem.
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = arg
		for _, name := range singleDashFlags {
			if arg == "-"+name {
				result[i] = "--" + name
				break
			}
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	logger := logrus.New()
	logger.SetOutput(errOut)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)

	rootCmd := &cobra.Command{
		Use:   "ralph-translate-c",
		Short: "ralph-translate-c translates C translation units to Zig",
		Long: `ralph-translate-c lowers preprocessed, type-checked C into Zig
declarations, reproducing C's conversion rules, storage durations and
control flow. It can also run the lowered program and check fixtures.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			if configPath == "" {
				return nil
			}
			if err := applyConfig(cmd, configPath); err != nil {
				fmt.Fprintf(errOut, "ralph-translate-c: %v\n", err)
				return err
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&targetTriple, "target", "native", "Target triple (arch-os[-abi])")
	pf.StringVar(&configPath, "config", "", "YAML file with default settings")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log pass progress")
	pf.BoolVar(&werror, "werror", false, "Treat warnings as errors")
	pf.IntVarP(&jobs, "jobs", "j", 0, "Units translated at once (0 = one per CPU)")
	pf.StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	pf.StringArrayVar(&systemPaths, "isystem", nil, "Add directory to system include search path")
	pf.StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	pf.StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")

	rootCmd.AddCommand(
		newTranslateCmd(out, errOut, logger),
		newRunCmd(out, errOut, logger),
		newFixturesCmd(out, errOut, logger),
	)
	return rootCmd
}

// applyConfig reads path and fills in every setting not given as a flag.
func applyConfig(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	flags := cmd.Flags()
	if cfg.Target != "" && !flags.Changed("target") {
		targetTriple = cfg.Target
	}
	if !flags.Changed("werror") {
		werror = cfg.Werror
	}
	if cfg.Jobs != 0 && !flags.Changed("jobs") {
		jobs = cfg.Jobs
	}
	includePaths = append(includePaths, cfg.Include...)
	for name, value := range cfg.Define {
		if value == "" {
			defineFlags = append(defineFlags, name)
		} else {
			defineFlags = append(defineFlags, name+"="+value)
		}
	}
	return nil
}

// buildPreprocessorOptions creates preproc.Options from CLI flags
func buildPreprocessorOptions(logger logrus.FieldLogger) *preproc.Options {
	opts := &preproc.Options{
		IncludePaths: includePaths,
		SystemPaths:  systemPaths,
		Defines:      make(map[string]string),
		Undefines:    undefineFlags,
		Logger:       logger,
	}
	for _, d := range defineFlags {
		name, value, _ := strings.Cut(d, "=")
		opts.Defines[name] = value
	}
	return opts
}

func resolveTarget(errOut io.Writer) (*ctarget.Target, error) {
	tgt, err := ctarget.Parse(targetTriple)
	if err != nil {
		fmt.Fprintf(errOut, "ralph-translate-c: %v\n", err)
		return nil, err
	}
	return tgt, nil
}
