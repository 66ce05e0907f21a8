package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
)

// writeFile creates name in a temporary directory with content.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// execute runs the root command with args.
func execute(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags(args))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestSubcommandsExist(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	for _, name := range []string{"translate", "run", "fixtures"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("expected subcommand %s", name)
		}
	}
	for _, flag := range []string{"target", "config", "verbose", "werror", "jobs", "include", "isystem", "define", "undefine"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected flag --%s to exist", flag)
		}
	}
}

func TestNormalizeFlags(t *testing.T) {
	got := normalizeFlags([]string{"-isystem", "/usr/include", "-werror", "-I", "inc", "--target", "x"})
	want := []string{"--isystem", "/usr/include", "--werror", "-I", "inc", "--target", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeFlags = %q, want %q", got, want)
	}
}

func TestTranslate(t *testing.T) {
	path := writeFile(t, "add.c", "int add(int a, int b) { return a + b; }\n")
	out, errOut, err := execute("translate", "--target", "x86_64-linux-gnu", path)
	if err != nil {
		t.Fatalf("translate failed: %v\n%s", err, errOut)
	}
	if !strings.Contains(out, "pub export fn add(") {
		t.Errorf("expected output to contain the function, got %q", out)
	}
}

func TestTranslateDefines(t *testing.T) {
	path := writeFile(t, "def.c", "int v = VALUE;\n")
	out, errOut, err := execute("translate", "--target", "x86_64-linux-gnu", "-D", "VALUE=42", path)
	if err != nil {
		t.Fatalf("translate failed: %v\n%s", err, errOut)
	}
	if !strings.Contains(out, "42") {
		t.Errorf("expected the define to be expanded, got %q", out)
	}
}

func TestTranslateOutputFile(t *testing.T) {
	path := writeFile(t, "x.c", "int x;\n")
	dest := filepath.Join(t.TempDir(), "x.zig")
	out, errOut, err := execute("translate", "--target", "x86_64-linux-gnu", "-o", dest, path)
	if err != nil {
		t.Fatalf("translate failed: %v\n%s", err, errOut)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout, got %q", out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if !strings.Contains(string(data), "x: c_int") {
		t.Errorf("expected the variable in the output file, got %q", data)
	}
}

func TestTranslateOutputFileWithManyInputs(t *testing.T) {
	a := writeFile(t, "a.c", "int a;\n")
	b := writeFile(t, "b.c", "int b;\n")
	if _, _, err := execute("translate", "-o", "out.zig", a, b); err == nil {
		t.Error("expected an error for -o with two inputs")
	}
}

func TestTranslateManyFiles(t *testing.T) {
	a := writeFile(t, "a.c", "int first_unit;\n")
	b := writeFile(t, "b.c", "int second_unit;\n")
	out, errOut, err := execute("translate", "-j", "2", "--target", "x86_64-linux-gnu", a, b)
	if err != nil {
		t.Fatalf("translate failed: %v\n%s", err, errOut)
	}
	i, j := strings.Index(out, "first_unit"), strings.Index(out, "second_unit")
	if i < 0 || j < 0 || i > j {
		t.Errorf("expected both units in argument order, got %q", out)
	}
}

func TestTranslateDumpIR(t *testing.T) {
	path := writeFile(t, "f.c", "int f(void) { return 1; }\n")
	out, errOut, err := execute("translate", "--dump-ir", "--target", "x86_64-linux-gnu", path)
	if err != nil {
		t.Fatalf("translate failed: %v\n%s", err, errOut)
	}
	if !strings.HasPrefix(out, "[") || !strings.Contains(out, `"kind": "lir.FnDecl"`) {
		t.Errorf("expected a JSON dump with the function, got %q", out)
	}
}

func TestTranslateMissingFile(t *testing.T) {
	_, errOut, err := execute("translate", filepath.Join(t.TempDir(), "nope.c"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !strings.Contains(errOut, "ralph-translate-c:") {
		t.Errorf("expected a prefixed error message, got %q", errOut)
	}
}

func TestUnknownTarget(t *testing.T) {
	path := writeFile(t, "x.c", "int x;\n")
	_, _, err := execute("translate", "--target", "sparc-linux", path)
	if !errors.Is(err, ctarget.ErrUnknownTriple) {
		t.Errorf("expected ErrUnknownTriple, got %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	path := writeFile(t, "x.c", "int x;\n")
	cfg := writeFile(t, "cfg.yaml", "target: sparc-linux\njobs: 3\n")
	_, _, err := execute("translate", "--config", cfg, path)
	if !errors.Is(err, ctarget.ErrUnknownTriple) {
		t.Errorf("expected the config target to be used, got %v", err)
	}

	// flags win over the file
	out, errOut, err := execute("translate", "--config", cfg, "--target", "x86_64-linux-gnu", path)
	if err != nil {
		t.Fatalf("translate failed: %v\n%s", err, errOut)
	}
	if !strings.Contains(out, "x: c_int") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestConfigFileInvalid(t *testing.T) {
	path := writeFile(t, "x.c", "int x;\n")
	cfg := writeFile(t, "cfg.yaml", "target: [\n")
	if _, _, err := execute("translate", "--config", cfg, path); err == nil {
		t.Error("expected an error for a malformed config")
	}
}

func TestRun(t *testing.T) {
	path := writeFile(t, "hello.c", `#include <stdio.h>
int main(void) {
	printf("hello %d\n", 7);
	return 0;
}
`)
	out, errOut, err := execute("run", "--target", "x86_64-linux-gnu", path)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, errOut)
	}
	if out != "hello 7\n" {
		t.Errorf("unexpected program output %q", out)
	}
}

func TestRunExitStatus(t *testing.T) {
	path := writeFile(t, "exit.c", "int main(void) { return 3; }\n")
	_, _, err := execute("run", "--target", "x86_64-linux-gnu", path)
	var status exitStatus
	if !errors.As(err, &status) || status != 3 {
		t.Errorf("expected exit status 3, got %v", err)
	}
}

func TestFixtures(t *testing.T) {
	dir := t.TempDir()
	pass := "int main(void) { return 0; }\n\n// run\n"
	fail := "int main(void) { return 2; }\n\n// run\n"
	if err := os.WriteFile(filepath.Join(dir, "pass.c"), []byte(pass), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fail.c"), []byte(fail), 0644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute("fixtures", "--target", "x86_64-linux-gnu", "--match", "run/pass", dir)
	if err != nil {
		t.Fatalf("fixtures failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 passed, 0 failed") {
		t.Errorf("unexpected summary %q", out)
	}

	out, _, err = execute("fixtures", "--target", "x86_64-linux-gnu", dir)
	if err == nil {
		t.Fatal("expected the failing fixture to fail the run")
	}
	if !strings.Contains(out, "FAIL  run/fail") || !strings.Contains(out, "exit status 2") {
		t.Errorf("expected the failure to be reported, got %q", out)
	}
}
