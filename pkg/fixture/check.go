package fixture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
	"github.com/raymyers/ralph-translate-c/pkg/lirgen"
	"github.com/raymyers/ralph-translate-c/pkg/lirinterp"
	"github.com/raymyers/ralph-translate-c/pkg/preproc"
)

// Status is the outcome of checking one fixture
type Status int

const (
	Pass  Status = iota
	Fail         // a failure that counts
	XFail        // failed as expected
	XPass        // marked expect=fail but passed
	Skip
)

func (s Status) String() string {
	return [...]string{"PASS", "FAIL", "XFAIL", "XPASS", "SKIP"}[s]
}

// Options configures a fixture run
type Options struct {
	// Target is used for fixtures without a target setting. Nil means the
	// host.
	Target *ctarget.Target
	// Unsupported lists the features whose skip_<feature>=true fixtures are
	// skipped. skip_windows is decided by the target instead.
	Unsupported []string
	// MaxSteps bounds each run fixture. Zero means 10 million.
	MaxSteps int64
	// Jobs is the number of fixtures checked at once. Zero means one per CPU.
	Jobs   int
	Logger logrus.FieldLogger
}

// Result is the outcome of one fixture
type Result struct {
	Fixture *Fixture
	Status  Status
	Output  string   // translated Zig
	Missing []string // expected chunks absent from Output
	Diff    string   // diff of the first missing chunk against the output
	Code    int      // exit status of a run fixture
	Err     error
}

// Failed reports whether the result should fail the run.
func (r Result) Failed() bool {
	return r.Status == Fail
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Check translates f and, for run fixtures, executes the result.
func Check(ctx context.Context, f *Fixture, opts Options) (r Result) {
	r = Result{Fixture: f}
	log := opts.logger().WithFields(logrus.Fields{"fixture": f.Name, "kind": f.Kind})
	defer func() {
		if p := recover(); p != nil {
			r.Err = fmt.Errorf("internal error: %v", p)
			r.Status = Fail
		}
		if f.ExpectFail {
			r.Status = lo.Ternary(r.Status == Pass, XPass, lo.Ternary(r.Status == Fail, XFail, r.Status))
		}
		log.WithField("status", r.Status).Debug("fixture checked")
	}()

	tgt := opts.Target
	if f.Target != "" {
		var err error
		if tgt, err = ctarget.Parse(f.Target); err != nil {
			r.Status, r.Err = Fail, err
			return r
		}
	}
	if tgt == nil {
		tgt = ctarget.Native()
	}
	for _, feature := range f.Skips() {
		if feature == "windows" && tgt.OS == ctarget.Windows || lo.Contains(opts.Unsupported, feature) {
			r.Status = Skip
			return r
		}
	}

	file, err := translate(f, tgt, opts.Logger)
	if err != nil {
		r.Status, r.Err = Fail, err
		return r
	}
	var out strings.Builder
	lir.NewPrinter(&out).PrintFile(file)
	r.Output = out.String()

	switch f.Kind {
	case Translate:
		r.Missing = f.Missing(r.Output)
		if len(r.Missing) > 0 {
			r.Status = Fail
			r.Diff = Diff(r.Missing[0], closest(r.Missing[0], r.Output))
			return r
		}
	case Run:
		steps := opts.MaxSteps
		if steps == 0 {
			steps = 10_000_000
		}
		var stdout bytes.Buffer
		m, err := lirinterp.New(file, lirinterp.Options{Target: tgt, Stdout: &stdout, Logger: opts.Logger, MaxSteps: steps})
		if err != nil {
			r.Status, r.Err = Fail, err
			return r
		}
		r.Code, r.Err = m.Run(ctx, "main", nil)
		if r.Err != nil || r.Code != 0 {
			r.Status = Fail
			return r
		}
	}
	r.Status = Pass
	return r
}

func translate(f *Fixture, tgt *ctarget.Target, logger logrus.FieldLogger) (*lir.File, error) {
	prog, err := preproc.Unit(f.Name+".c", f.Source, tgt, &preproc.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	file, _, err := lirgen.TranslateUnit(prog, lirgen.Options{Target: tgt, Logger: logger})
	return file, err
}

// CheckAll checks fixtures concurrently and returns the results in input
// order.
func CheckAll(ctx context.Context, fixtures []*Fixture, opts Options) ([]Result, error) {
	results := make([]Result, len(fixtures))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lo.Ternary(opts.Jobs > 0, opts.Jobs, runtime.GOMAXPROCS(0)))
	for i, f := range fixtures {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Check(ctx, f, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summary counts results by status
type Summary map[Status]int

// Summarize tallies results.
func Summarize(results []Result) Summary {
	s := Summary{}
	for _, r := range results {
		s[r.Status]++
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d expected failures, %d unexpected passes, %d skipped",
		s[Pass], s[Fail], s[XFail], s[XPass], s[Skip])
}

// closest returns the part of output that most likely corresponds to
// chunk: the lines starting where the chunk's first line appears, or the
// whole output.
func closest(chunk, output string) string {
	want := strings.Split(chunk, "\n")
	lines := strings.Split(output, "\n")
	first := Normalize(want[0])
	for i, l := range lines {
		if Normalize(l) == first {
			end := min(i+len(want)+2, len(lines))
			return strings.Join(lines[i:end], "\n")
		}
	}
	return output
}

// Diff renders a line diff of want against got.
func Diff(want, got string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(want, got)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	var out strings.Builder
	out.WriteString("--- expected\n+++ actual\n")
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(strings.TrimSuffix(l, "\n"))
			out.WriteByte('\n')
		}
	}
	return out.String()
}
