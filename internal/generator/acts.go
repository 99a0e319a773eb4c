package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/serial"
)

// Defaults for the ACTS adapter.
const (
	DefaultActsJar       = "acts_3.2.jar"
	DefaultJava          = "java"
	DefaultActsAlgorithm = "ipog"

	actsStderrLimit = 4096
	actsWaitDelay   = 2 * time.Second
)

// ActsConfig locates the ACTS jar and the Java runtime.
type ActsConfig struct {
	JarPath   string `yaml:"jar"`
	Java      string `yaml:"java"`
	WorkDir   string `yaml:"work_dir"`  // Keeps input/output files when set
	Algorithm string `yaml:"algorithm"` // ACTS -Dalgo value
}

// DefaultActsConfig returns the settings used when none are given.
func DefaultActsConfig() ActsConfig {
	return ActsConfig{
		JarPath:   DefaultActsJar,
		Java:      DefaultJava,
		Algorithm: DefaultActsAlgorithm,
	}
}

// Acts runs the ACTS combinatorial test generator as a subprocess.
type Acts struct {
	cfg    ActsConfig
	logger *zap.Logger
}

// NewActs creates an ACTS adapter. Empty fields take their defaults.
func NewActs(cfg ActsConfig, logger *zap.Logger) *Acts {
	def := DefaultActsConfig()
	if cfg.JarPath == "" {
		cfg.JarPath = def.JarPath
	}
	if cfg.Java == "" {
		cfg.Java = def.Java
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	return &Acts{cfg: cfg, logger: logger}
}

// Name returns AlgorithmActs.
func (a *Acts) Name() string {
	return AlgorithmActs
}

// Generate writes an ACTS system file for p, runs ACTS on it and parses the
// CSV it produces. Cancelling ctx kills the whole ACTS process group.
func (a *Acts) Generate(ctx context.Context, p core.Params) (*Result, error) {
	target, err := core.Build(p)
	if err != nil {
		return nil, err
	}
	logger := loggerFor(a.logger, a.Name(), p)

	java, err := exec.LookPath(a.cfg.Java)
	if err != nil {
		return nil, fmt.Errorf("%w: java runtime %q: %v", core.ErrExternalToolUnavailable, a.cfg.Java, err)
	}
	jar, err := filepath.Abs(a.cfg.JarPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExternalToolUnavailable, err)
	}
	if _, err := os.Stat(jar); err != nil {
		return nil, fmt.Errorf("%w: acts jar: %v", core.ErrExternalToolUnavailable, err)
	}

	dir, cleanup, err := a.workDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	base := fmt.Sprintf("acts_n%d_tau%d_k%d", p.N, p.Tau, p.K)
	inPath := filepath.Join(dir, base+"_input.txt")
	outPath := filepath.Join(dir, base+"_output.csv")
	if err := writeInputFile(inPath, p); err != nil {
		return nil, err
	}
	_ = os.Remove(outPath)

	args := actsArgs(a.cfg, p, jar, inPath, outPath)
	cmd := exec.CommandContext(ctx, java, args...)
	configureProcess(cmd)
	cmd.Cancel = func() error {
		terminateProcess(cmd)
		return nil
	}
	cmd.WaitDelay = actsWaitDelay
	stderr := &limitedBuffer{limit: actsStderrLimit}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	logger.Debug("running acts", zap.String("java", java), zap.Strings("args", args))
	start := time.Now()
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return &Result{LowerBound: core.LowerBound(p)}, interrupted(ctx)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("%w: exit code %d: %s", core.ErrExternalToolFailed, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%w: %v", core.ErrExternalToolFailed, runErr)
	}
	logger.Debug("acts finished", zap.Duration("elapsed", time.Since(start)))

	rows, err := readOutputFile(outPath, p.N)
	if err != nil {
		return nil, err
	}
	cov := target.NewCoverage()
	for _, r := range rows {
		if target.IsValidRow(r) {
			cov.MarkCovered(r)
		}
	}
	return &Result{
		Rows:       rows,
		Coverage:   cov.Fraction(),
		Complete:   cov.Complete(),
		LowerBound: core.LowerBound(p),
	}, nil
}

func (a *Acts) workDir() (string, func(), error) {
	if a.cfg.WorkDir != "" {
		if err := os.MkdirAll(a.cfg.WorkDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("failed to create acts work dir: %w", err)
		}
		return a.cfg.WorkDir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "lvca-acts-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create acts temp dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func actsArgs(cfg ActsConfig, p core.Params, jar, in, out string) []string {
	return []string{
		"-Ddoi=" + strconv.Itoa(p.Tau),
		"-Dalgo=" + cfg.Algorithm,
		"-Dchandler=solver",
		"-Doutput=csv",
		"-Dprogress=off",
		"-jar", jar,
		in, out,
	}
}

// WriteInput writes the ACTS system definition for p: n binary parameters
// constrained to sum to k.
func WriteInput(w io.Writer, p core.Params) error {
	var b strings.Builder
	b.WriteString("[System]\nName: LVCA\n\n[Parameter]\n")
	names := serial.Header(p.N)
	for _, name := range names {
		fmt.Fprintf(&b, "%s(int): 0,1\n", name)
	}
	b.WriteString("\n[Constraint]\n")
	fmt.Fprintf(&b, "%s = %d\n", strings.Join(names, " + "), p.K)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeInputFile(path string, p core.Params) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create acts input: %w", err)
	}
	if err := WriteInput(f, p); err != nil {
		f.Close()
		return fmt.Errorf("failed to write acts input: %w", err)
	}
	return f.Close()
}

func readOutputFile(path string, n int) ([]core.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExternalToolOutputMalformed, err)
	}
	defer f.Close()
	rows, err := serial.ReadRows(f, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExternalToolOutputMalformed, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows in %s", core.ErrExternalToolOutputMalformed, path)
	}
	return rows, nil
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
