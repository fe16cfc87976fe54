// Package convert runs the external engine in headless batch mode. A
// hang or crash inside a job is contained to that job's process group
// and can never corrupt gateway state.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docmcp/internal/domain"
	"docmcp/internal/infra/format"
	"docmcp/internal/infra/telemetry"
)

type processCleanup func()

const stderrExcerptLimit = 2 * 1024

type Manager struct {
	formats    *format.Registry
	executable string
	timeout    time.Duration
	sem        chan struct{}
	logger     *zap.Logger
	metrics    domain.Metrics
}

type ManagerOptions struct {
	// Executable overrides engine binary discovery.
	Executable  string
	Timeout     time.Duration
	Concurrency int
	Logger      *zap.Logger
	Metrics     domain.Metrics
}

func NewManager(formats *format.Registry, opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultConvertTimeoutSeconds) * time.Second
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = domain.DefaultConvertConcurrency
	}
	return &Manager{
		formats:    formats,
		executable: opts.Executable,
		timeout:    timeout,
		sem:        make(chan struct{}, concurrency),
		logger:     logger.Named("convert"),
		metrics:    opts.Metrics,
	}
}

// Convert runs one isolated conversion job. Format and path validation
// fail fast with an error before any process is spawned; process-level
// failures are reported through the result state.
func (m *Manager) Convert(ctx context.Context, sourcePath, targetPath, targetFormat string, timeout time.Duration) (domain.ConversionResult, error) {
	spec, err := m.formats.Resolve(targetFormat, domain.DirectionExport)
	if err != nil {
		return domain.ConversionResult{}, err
	}

	if _, err := os.Stat(sourcePath); err != nil {
		return domain.ConversionResult{}, domain.E(domain.CodeValidation, "convert.Convert",
			fmt.Sprintf("source file not found: %s", sourcePath), err)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return domain.ConversionResult{}, domain.E(domain.CodeValidation, "convert.Convert",
			fmt.Sprintf("target directory not writable: %s", filepath.Dir(targetPath)), err)
	}

	if timeout <= 0 {
		timeout = m.timeout
	}
	job := domain.ConversionJob{
		ID:           uuid.NewString(),
		SourcePath:   sourcePath,
		TargetPath:   targetPath,
		TargetFormat: targetFormat,
		Timeout:      timeout,
		State:        domain.JobPending,
	}

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	start := time.Now()
	result := m.run(ctx, job, spec)
	if m.metrics != nil {
		m.metrics.ObserveConversion(targetFormat, result.State, time.Since(start))
	}
	return result, nil
}

func (m *Manager) run(ctx context.Context, job domain.ConversionJob, spec domain.FormatSpec) domain.ConversionResult {
	result := domain.ConversionResult{
		SourcePath:   job.SourcePath,
		TargetPath:   job.TargetPath,
		SourceFormat: strings.TrimPrefix(strings.ToLower(filepath.Ext(job.SourcePath)), "."),
		TargetFormat: job.TargetFormat,
		State:        domain.JobFailed,
	}

	executable, err := LocateEngine(m.executable)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	// The engine writes <source stem>.<ext> into outdir; staging in a
	// sibling temp dir keeps the final rename on one filesystem and
	// guarantees no partially written target survives a failure.
	outDir, err := os.MkdirTemp(filepath.Dir(job.TargetPath), ".docmcp-convert-")
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("create staging directory: %v", err)
		return result
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	jobCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	filterArg := job.TargetFormat
	if spec.EngineFilterID != "" {
		filterArg = job.TargetFormat + ":" + spec.EngineFilterID
	}
	// A private user profile lets jobs run concurrently; the engine
	// refuses a second headless instance on a shared profile.
	cmd := exec.CommandContext(jobCtx, executable,
		"--headless",
		"-env:UserInstallation=file://"+filepath.Join(outDir, ".profile"),
		"--convert-to", filterArg,
		"--outdir", outDir,
		job.SourcePath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	groupCleanup := setupProcessHandling(cmd)

	m.logger.Debug("conversion starting",
		telemetry.EventField(telemetry.EventConversionStart),
		telemetry.JobIDField(job.ID),
		telemetry.FormatField(job.TargetFormat),
	)

	runErr := cmd.Run()
	if groupCleanup != nil {
		groupCleanup()
	}

	switch {
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.State = domain.JobTimedOut
		result.ErrorMessage = fmt.Sprintf("conversion timed out after %s", job.Timeout)
		m.logger.Warn("conversion timed out",
			telemetry.EventField(telemetry.EventConversionTimeout),
			telemetry.JobIDField(job.ID),
			telemetry.FormatField(job.TargetFormat),
			telemetry.DurationField(job.Timeout),
		)
		return result
	case jobCtx.Err() != nil:
		// Parent context went away (shutdown or caller cancel), which
		// is not the job overrunning its budget.
		result.ErrorMessage = fmt.Sprintf("conversion canceled: %v", context.Cause(ctx))
		m.logger.Warn("conversion canceled",
			telemetry.EventField(telemetry.EventConversionFailure),
			telemetry.JobIDField(job.ID),
			telemetry.FormatField(job.TargetFormat),
		)
		return result
	}
	if runErr != nil {
		result.ErrorMessage = fmt.Sprintf("engine exited: %v: %s", runErr, excerpt(stderr.Bytes()))
		m.logger.Warn("conversion failed",
			telemetry.EventField(telemetry.EventConversionFailure),
			telemetry.JobIDField(job.ID),
			telemetry.FormatField(job.TargetFormat),
			zap.Error(runErr),
		)
		return result
	}

	// The engine can exit 0 while silently producing nothing; exit
	// status alone is never trusted.
	ext := spec.FileExtension
	if ext == "" {
		ext = "." + job.TargetFormat
	}
	stem := strings.TrimSuffix(filepath.Base(job.SourcePath), filepath.Ext(job.SourcePath))
	produced := filepath.Join(outDir, stem+ext)
	info, err := os.Stat(produced)
	if err != nil || info.Size() == 0 {
		result.ErrorMessage = fmt.Sprintf("engine reported success but produced no output: %s", excerpt(stderr.Bytes()))
		return result
	}
	if err := os.Rename(produced, job.TargetPath); err != nil {
		result.ErrorMessage = fmt.Sprintf("move output into place: %v", err)
		return result
	}

	result.State = domain.JobSucceeded
	result.Success = true
	return result
}

// BatchConvert converts every matched file under sourceDir. Items are
// isolated: one corrupt input yields one failed result and never
// aborts its siblings. Results follow discovery order.
func (m *Manager) BatchConvert(ctx context.Context, sourceDir, targetDir, targetFormat string, extensions []string) ([]domain.ConversionResult, error) {
	if _, err := m.formats.Resolve(targetFormat, domain.DirectionExport); err != nil {
		return nil, err
	}
	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		return nil, domain.E(domain.CodeValidation, "convert.BatchConvert",
			fmt.Sprintf("source directory not found: %s", sourceDir), err)
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, domain.E(domain.CodeValidation, "convert.BatchConvert",
			fmt.Sprintf("target directory not writable: %s", targetDir), err)
	}
	if len(extensions) == 0 {
		extensions = domain.DefaultBatchExtensions
	}

	matched := matchFiles(sourceDir, extensions)
	results := make([]domain.ConversionResult, len(matched))

	var wg sync.WaitGroup
	for i, src := range matched {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
			target := filepath.Join(targetDir, stem+"."+targetFormat)
			result, err := m.Convert(ctx, src, target, targetFormat, 0)
			if err != nil {
				result = domain.ConversionResult{
					SourcePath:   src,
					TargetPath:   target,
					TargetFormat: targetFormat,
					State:        domain.JobFailed,
					ErrorMessage: err.Error(),
				}
			}
			results[i] = result
		}()
	}
	wg.Wait()

	return results, nil
}

func matchFiles(dir string, extensions []string) []string {
	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[ext] = struct{}{}
	}

	var matched []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ok := wanted[strings.ToLower(filepath.Ext(path))]; ok {
			matched = append(matched, path)
		}
		return nil
	})
	return matched
}

func excerpt(stderr []byte) string {
	trimmed := bytes.TrimSpace(stderr)
	if len(trimmed) > stderrExcerptLimit {
		trimmed = trimmed[len(trimmed)-stderrExcerptLimit:]
	}
	if len(trimmed) == 0 {
		return "(no diagnostic output)"
	}
	return string(trimmed)
}
