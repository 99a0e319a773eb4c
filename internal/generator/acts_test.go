//go:build !windows

package generator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lvcagen/internal/core"
)

// fakeActs writes a shell script standing in for java plus an empty jar, and
// returns a config pointing at them. The script body sees the output path
// as $out and the full argument list in args.txt.
func fakeActs(t *testing.T, body string) ActsConfig {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\n" +
		"echo \"$@\" > \"" + filepath.Join(dir, "args.txt") + "\"\n" +
		"for out; do :; done\n" +
		body + "\n"
	java := filepath.Join(dir, "java")
	require.NoError(t, os.WriteFile(java, []byte(script), 0o755))
	jar := filepath.Join(dir, "acts.jar")
	require.NoError(t, os.WriteFile(jar, nil, 0o644))
	return ActsConfig{Java: java, JarPath: jar, WorkDir: filepath.Join(dir, "work")}
}

func TestActsGenerate(t *testing.T) {
	cfg := fakeActs(t, `cat > "$out" <<'EOF'
# ACTS Test Suite Generation
# Degree of interaction coverage: 1
p1,p2,p3
1,0,0
0,1,0
0,0,1
EOF`)
	p := core.Params{N: 3, Tau: 1, K: 1}

	res, err := NewActs(cfg, nil).Generate(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.True(t, res.Complete)
	assert.Equal(t, 1.0, res.Coverage)
	assert.Equal(t, "010", res.Rows[1].String())

	args, err := os.ReadFile(filepath.Join(filepath.Dir(cfg.Java), "args.txt"))
	require.NoError(t, err)
	for _, want := range []string{"-Ddoi=1", "-Dalgo=ipog", "-Dchandler=solver", "-Doutput=csv", "-Dprogress=off", "-jar"} {
		assert.Contains(t, string(args), want)
	}

	input, err := os.ReadFile(filepath.Join(cfg.WorkDir, "acts_n3_tau1_k1_input.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(input), "p1 + p2 + p3 = 1")
}

func TestActsNonZeroExit(t *testing.T) {
	cfg := fakeActs(t, "echo 'constraint solver crashed' >&2\nexit 3")
	_, err := NewActs(cfg, nil).Generate(context.Background(), core.Params{N: 3, Tau: 1, K: 1})
	require.ErrorIs(t, err, core.ErrExternalToolFailed)
	assert.Contains(t, err.Error(), "constraint solver crashed")
}

func TestActsMalformedOutput(t *testing.T) {
	bodies := map[string]string{
		"non binary":  `printf 'p1,p2,p3\n1,2,0\n' > "$out"`,
		"wrong width": `printf 'p1,p2,p3\n1,0\n' > "$out"`,
		"no rows":     `printf '# nothing\np1,p2,p3\n' > "$out"`,
		"no file":     `exit 0`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			cfg := fakeActs(t, body)
			_, err := NewActs(cfg, nil).Generate(context.Background(), core.Params{N: 3, Tau: 1, K: 1})
			require.ErrorIs(t, err, core.ErrExternalToolOutputMalformed)
		})
	}
}

func TestActsUnavailable(t *testing.T) {
	cfg := fakeActs(t, "exit 0")
	p := core.Params{N: 3, Tau: 1, K: 1}

	noJava := cfg
	noJava.Java = filepath.Join(t.TempDir(), "missing-java")
	_, err := NewActs(noJava, nil).Generate(context.Background(), p)
	assert.ErrorIs(t, err, core.ErrExternalToolUnavailable)

	noJar := cfg
	noJar.JarPath = filepath.Join(t.TempDir(), "missing.jar")
	_, err = NewActs(noJar, nil).Generate(context.Background(), p)
	assert.ErrorIs(t, err, core.ErrExternalToolUnavailable)
}

func TestActsCancelKillsProcessGroup(t *testing.T) {
	cfg := fakeActs(t, "sleep 30 &\nwait")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewActs(cfg, nil).Generate(ctx, core.Params{N: 3, Tau: 1, K: 1})
	require.ErrorIs(t, err, core.ErrGenerationTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWriteInput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInput(&buf, core.Params{N: 3, Tau: 2, K: 2}))
	want := strings.Join([]string{
		"[System]",
		"Name: LVCA",
		"",
		"[Parameter]",
		"p1(int): 0,1",
		"p2(int): 0,1",
		"p3(int): 0,1",
		"",
		"[Constraint]",
		"p1 + p2 + p3 = 2",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}
