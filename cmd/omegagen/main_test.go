package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"omegagen/internal/config"
	"omegagen/internal/engine"
	"omegagen/internal/logging"
	"omegagen/internal/store"
)

const spmvRequest = `relations:
  spmv: "{[i,n,j]: 0<=i<N && rp(i)<=n<rp(i+1) && j=col(n)}"
`

// echoEngine returns the script framed by prompt lines.
func echoEngine(_ context.Context, s string) (string, error) {
	return engine.PromptMarker + "\n" + s + engine.PromptMarker, nil
}

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Store.DatabasePath = filepath.Join(dir, "sessions.db")
	sessionID, noStore, explain, statements = "", false, false, 1

	orig := newEngine
	newEngine = func(*config.Config) engine.Engine { return engine.Func(echoEngine) }
	t.Cleanup(func() { newEngine = orig })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, fn func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	err := fn(cmd, args)
	return buf.String(), err
}

func TestCodegenPersistsSession(t *testing.T) {
	dir := setup(t)
	req := writeFile(t, dir, "spmv.yaml", spmvRequest)

	out, err := run(t, runCodegen, req)
	require.NoError(t, err)
	assert.Equal(t, "symbolic N,col(2),rp(1),rp1(1);\n"+
		"spmv := {[i,n,j]:0<=i<N&&rp(i)<=n<rp1(i)&&j=col(i,n)};\n"+
		"codegen(spmv) given {[i,n,j] : N>3};\n", out)

	out, err = run(t, printMacros)
	require.NoError(t, err)
	assert.Equal(t, "#define col(i,n) col[(n)]\n#define rp(i) rp[(i)]\n#define rp1(i) rp[(i+1)]\n", out)

	out, err = run(t, printIterators)
	require.NoError(t, err)
	assert.Equal(t, "in:  [i,n,j]\nout: [t1,t2,t3]\n", out)

	out, err = run(t, listSessions)
	require.NoError(t, err)
	assert.Contains(t, out, req)
}

func TestCodegenContinueSession(t *testing.T) {
	dir := setup(t)
	wide := writeFile(t, dir, "wide.yaml", spmvRequest)
	narrow := writeFile(t, dir, "narrow.yaml", "relations:\n  r: \"{[k]: 0<=k<M && x(k)>0}\"\n")

	_, err := run(t, runCodegen, wide)
	require.NoError(t, err)

	st, err := store.Open(cfg.Store.DatabasePath)
	require.NoError(t, err)
	latest, err := st.LatestSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	sessionID = latest.ID
	_, err = run(t, runCodegen, narrow)
	require.NoError(t, err)

	out, err := run(t, printIterators)
	require.NoError(t, err)
	assert.Equal(t, "in:  [i,n,j]\nout: [t1,t2,t3]\n", out, "narrower request does not shrink the tuple")

	out, err = run(t, printMacros)
	require.NoError(t, err)
	assert.Contains(t, out, "#define x(k) x[(k)]")
	assert.Contains(t, out, "#define rp1(i) rp[(i+1)]")
}

func TestCodegenPlaceholders(t *testing.T) {
	dir := setup(t)
	newEngine = func(*config.Config) engine.Engine {
		return engine.Func(func(context.Context, string) (string, error) {
			t.Fatal("engine called for empty script")
			return "", nil
		})
	}
	req := writeFile(t, dir, "empty.yaml", `relations:
  r: "not a relation"
schedules:
  r: ["s1 {[i]->[0,i]}", "s2 {[i]->[1,i]}"]
`)

	out, err := run(t, runCodegen, req)
	require.NoError(t, err)
	assert.Equal(t, "s0();\ns1();\n", out)
}

func TestCodegenEngineFailure(t *testing.T) {
	dir := setup(t)
	newEngine = func(*config.Config) engine.Engine {
		return engine.Func(func(context.Context, string) (string, error) {
			return "", errors.New("omegacalc: not found")
		})
	}
	req := writeFile(t, dir, "r.yaml", "relations:\n  r: \"{[i]: 0<=i<n}\"\n")

	_, err := run(t, runCodegen, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)

	st, err := store.Open(cfg.Store.DatabasePath)
	require.NoError(t, err)
	defer st.Close()
	latest, err := st.LatestSession(context.Background())
	require.NoError(t, err)
	runs, err := st.ListRuns(context.Background(), latest.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "engine unavailable")
}

func TestCodegenNoStore(t *testing.T) {
	dir := setup(t)
	noStore = true
	req := writeFile(t, dir, "r.yaml", "relations:\n  r: \"{[i]: 0<=i<n}\"\n")

	_, err := run(t, runCodegen, req)
	require.NoError(t, err)
	_, err = os.Stat(cfg.Store.DatabasePath)
	assert.True(t, os.IsNotExist(err))
}

func TestStoreDisabled(t *testing.T) {
	setup(t)
	cfg.Store.Enabled = false

	_, err := run(t, printMacros)
	assert.ErrorIs(t, err, errNoSession)
	_, err = run(t, listSessions)
	assert.ErrorIs(t, err, errNoSession)
}

func TestScriptCommand(t *testing.T) {
	dir := setup(t)
	req := writeFile(t, dir, "r.yaml", "relations:\n  r: \"{i,j : f(j)=0}\"\n")

	out, err := run(t, printScript, req)
	require.NoError(t, err)
	assert.Equal(t, "symbolic f(2);\nr := {i,j:};\ncodegen(r) given {[i,j] : f(i,j)=0};\n", out)

	explain = true
	out, err = run(t, printScript, req)
	require.NoError(t, err)
	assert.Contains(t, out, "#   knowns:    f(j)=0\n")
	assert.Contains(t, out, "#   rewrite:   f(j) -> f(i,j)\n")
	assert.Contains(t, out, "#   function:  f(2) -> (i,j)\n")
}

func TestRunCommand(t *testing.T) {
	dir := setup(t)
	path := writeFile(t, dir, "prog.in", "symbolic n;\nr := {[i]:0<=i<n};\ncodegen(r);\n")

	out, err := run(t, runScript, path)
	require.NoError(t, err)
	assert.Equal(t, "symbolic n;\nr := {[i]:0<=i<n};\ncodegen(r);\n", out)

	empty := writeFile(t, dir, "empty.in", " \n\t\n")
	statements = 2
	out, err = run(t, runScript, empty)
	require.NoError(t, err)
	assert.Equal(t, "s0();\ns1();\n", out)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("codegen(r);\n"))
	cmd.SetOut(&buf)
	require.NoError(t, runScript(cmd, []string{"-"}))
	assert.Equal(t, "codegen(r);\n", buf.String())
}

func TestRunCommandPassesScriptUnchanged(t *testing.T) {
	dir := setup(t)
	var got string
	newEngine = func(*config.Config) engine.Engine {
		return engine.Func(func(_ context.Context, s string) (string, error) {
			got = s
			return "ok", nil
		})
	}
	path := writeFile(t, dir, "prog.in", "symbolic n;\ncodegen(r);\n\n")

	_, err := run(t, runScript, path)
	require.NoError(t, err)
	assert.Equal(t, "symbolic n;\ncodegen(r);\n\n", got)
}

func TestInspectCommand(t *testing.T) {
	dir := setup(t)
	req := writeFile(t, dir, "spmv.yaml", spmvRequest)
	_, err := run(t, runCodegen, req)
	require.NoError(t, err)

	out, err := run(t, inspectFacts)
	require.NoError(t, err)
	assert.Contains(t, out, "augmented\n")

	out, err = run(t, inspectFacts, "augmented")
	require.NoError(t, err)
	assert.Equal(t, "augmented(\"col\").\n", out)

	out, err = run(t, inspectFacts, "variant_of", "_", "rp")
	require.NoError(t, err)
	assert.Equal(t, "variant_of(\"rp1\", \"rp\", 1).\n", out)

	out, err = run(t, inspectFacts, "variant_of", "col")
	require.NoError(t, err)
	assert.Contains(t, out, "No facts found")

	_, err = run(t, inspectFacts, "bogus")
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreAnyFunction("os/signal.signal_recv"), goleak.IgnoreAnyFunction("os/signal.loop"))
	dir := setup(t)
	a := writeFile(t, dir, "a.yaml", "relations:\n  a: \"{[i,j]: 0<=j<f(j)}\"\n")
	b := writeFile(t, dir, "b.yaml", "relations:\n  b: \"{[i]: 0<=i<f(i)}\"\n")
	c := writeFile(t, dir, "c.yaml", spmvRequest)

	out, err := run(t, runBatch, a, b, c)
	require.NoError(t, err)

	ia, ib, ic := strings.Index(out, "== "+a), strings.Index(out, "== "+b), strings.Index(out, "== "+c)
	require.True(t, ia >= 0 && ib > ia && ic > ib, "outputs in argument order:\n%s", out)
	assert.Contains(t, out[ia:ib], "symbolic f(2);")
	assert.Contains(t, out[ib:ic], "symbolic f(1);", "pipelines are isolated")

	_, err = run(t, runBatch, a, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := setup(t)
	path := writeFile(t, dir, "w.yaml", "relations:\n  first: \"{[i]: 0<=i<n}\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchRequest(ctx, path, 10*time.Millisecond, func(out string, err error) {
			if err != nil {
				out = "error: " + err.Error()
			}
			results <- out
		})
	}()

	next := func() string {
		select {
		case out := <-results:
			return out
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watch output")
			return ""
		}
	}

	assert.Contains(t, next(), "codegen(first)")

	require.NoError(t, os.WriteFile(path, []byte("relations:\n  second: \"{[i]: 0<=i<n}\"\n"), 0644))
	assert.Contains(t, next(), "codegen(second)")

	cancel()
	require.NoError(t, <-done)
}

func TestRootCommand(t *testing.T) {
	dir := setup(t)
	cfgPath := filepath.Join(dir, "omegagen.yaml")
	c := config.DefaultConfig()
	c.Store.DatabasePath = filepath.Join(dir, "root.db")
	c.Logging.File = filepath.Join(dir, "omegagen.log")
	require.NoError(t, c.Save(cfgPath))
	req := writeFile(t, dir, "r.yaml", "relations:\n  r: \"{[i]: 0<=i<n}\"\n")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--config", cfgPath, "--timeout", "3s", "script", req})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		timeout = 0
		logging.Reset()
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "symbolic n;\nr := {[i]:0<=i<n};\ncodegen(r);\n", buf.String())
	assert.Equal(t, "3s", cfg.Engine.Timeout)
	assert.Equal(t, filepath.Join(dir, "root.db"), cfg.Store.DatabasePath)
	assert.Same(t, logging.Root(), logger, "CLI logger is the one logging.Initialize built")
	assert.FileExists(t, c.Logging.File)
}
