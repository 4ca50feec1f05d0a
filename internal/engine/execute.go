package engine

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/castiron-io/etlworker/internal/handlers"
	"github.com/castiron-io/etlworker/internal/objectid"
	"github.com/castiron-io/etlworker/internal/pizzatracker"
	"github.com/castiron-io/etlworker/internal/procconfig"
)

// runPipeline executes the staged pipeline for one matched (config, data
// object) pair: claim, stage-in, materialize, execute, stage-out.
func (e *Engine) runPipeline(ctx context.Context, configObj objectid.ID, cfg *procconfig.Config, dataObj objectid.ID) {
	jobID := newJobID()
	filename := dataObj.Filename()

	if err := e.producer.JobCreated(ctx, jobID, filename, configObj.Filename(), e.worker.Name); err != nil {
		e.log.Warn("failed to emit job_created", map[string]interface{}{"job_id": jobID, "error": err.Error()})
	}

	processingObj := objectid.DirPath(configObj, cfg.ProcessingDirectory, &dataObj)
	if err := e.store.Move(ctx, dataObj, processingObj); err != nil {
		e.log.Warn("stage-in failed, aborting pipeline without terminal status", map[string]interface{}{
			"job_id": jobID, "error": err.Error(),
		})
		return
	}

	workDir, err := os.MkdirTemp(e.workDir, "etljob-"+jobID+"-")
	if err != nil {
		e.log.Error("failed to create working directory", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}
	defer os.RemoveAll(workDir)

	localPath := filepath.Join(workDir, filename)
	if err := e.store.Download(ctx, processingObj, localPath); err != nil {
		e.log.Warn("download failed, aborting pipeline without terminal status", map[string]interface{}{
			"job_id": jobID, "error": err.Error(),
		})
		return
	}

	metadata, err := e.store.Metadata(ctx, processingObj)
	if err != nil {
		metadata = map[string]string{}
	}

	logPath := filepath.Join(workDir, "job.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		e.log.Error("failed to create job log file", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}

	tracker, err := pizzatracker.New(workDir, jobID)
	if err != nil {
		logFile.Close()
		e.log.Error("failed to create progress pipe", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}

	success := e.execute(ctx, cfg, jobID, localPath, metadata, tracker, logFile)

	logFile.Close()
	tracker.Close()

	if success {
		archiveObj := objectid.DirPath(configObj, cfg.ArchiveDirectory, &dataObj)
		if err := e.store.Move(ctx, processingObj, archiveObj); err != nil {
			e.log.Warn("stage-out to archive failed", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		}
		if err := e.producer.JobStatus(ctx, jobID, true); err != nil {
			e.log.Warn("failed to emit terminal status", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		}
		return
	}

	errorObj := objectid.DirPath(configObj, cfg.ErrorDirectory, &dataObj)
	if err := e.store.Move(ctx, processingObj, errorObj); err != nil {
		e.log.Warn("stage-out to error failed", map[string]interface{}{"job_id": jobID, "error": err.Error()})
	}
	if err := e.producer.JobStatus(ctx, jobID, false); err != nil {
		e.log.Warn("failed to emit terminal status", map[string]interface{}{"job_id": jobID, "error": err.Error()})
	}

	if cfg.SaveErrorLog {
		logData, err := os.ReadFile(logPath)
		if err == nil {
			errLogName := sanitizeBasename(filename) + "_error_log.txt"
			errLogObj := objectid.DirPath(configObj, cfg.ErrorDirectory, nil).Join(errLogName)
			if err := e.store.Write(ctx, errLogObj, logData); err != nil {
				e.log.Warn("failed to upload error log", map[string]interface{}{"job_id": jobID, "error": err.Error()})
			}
		}
	}
}

// execute runs exactly one handler form, per SPEC_FULL.md §4.G. It
// returns true iff the job succeeded.
func (e *Engine) execute(ctx context.Context, cfg *procconfig.Config, jobID, localPath string, metadata map[string]string, tracker *pizzatracker.Tracker, logFile *os.File) bool {
	switch cfg.Handler() {
	case procconfig.HandlerShell:
		return e.executeShell(ctx, cfg, jobID, localPath, metadata, tracker, logFile)
	case procconfig.HandlerPython:
		return e.executeInProcess(ctx, cfg, jobID, localPath, metadata, tracker)
	default:
		e.log.Error("config has neither shell nor python handler configured", map[string]interface{}{"job_id": jobID})
		return false
	}
}

func (e *Engine) executeShell(ctx context.Context, cfg *procconfig.Config, jobID, localPath string, metadata map[string]string, tracker *pizzatracker.Tracker, logFile *os.File) bool {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		metadataJSON = []byte("{}")
	}

	// Intentionally not exec.CommandContext(ctx, ...): ctx is cancelled on
	// SIGINT/SIGTERM, and cancelling it does not kill a running handler.
	// Shutdown stops new dispatches at the task sink; main does not wait
	// for an in-flight pipeline, so a file being processed when the worker
	// exits stays in the processing directory.
	cmd := exec.Command("sh", "-lc", cfg.Shell)
	cmd.Env = []string{
		"DATABASE_HOST=" + os.Getenv("DATABASE_HOST"),
		"DATABASE_PASSWORD=" + os.Getenv("DATABASE_PASSWORD"),
		"DATABASE_PORT=" + os.Getenv("DATABASE_PORT"),
		"DATABASE_TABLE=" + os.Getenv("DATABASE_TABLE"),
		"DATABASE_USER=" + os.Getenv("DATABASE_USER"),
		"ETL_FILENAME=" + localPath,
		"ETL_FILE_METADATA=" + string(metadataJSON),
		"PIZZA_TRACKER=" + tracker.Path(),
	}

	if cfg.SaveErrorLog {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		null, _ := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if null != nil {
			defer null.Close()
		}
		cmd.Stdout = null
		cmd.Stderr = null
	}

	if err := cmd.Start(); err != nil {
		e.log.Error("failed to start shell handler", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return false
	}

	return e.pollChild(ctx, cmd, jobID, tracker)
}

// pollChild reaps the child every ~500ms, draining the progress pipe on
// every tick regardless of whether the child has exited yet, per
// SPEC_FULL.md §4.G and §5's suspension-point note.
func (e *Engine) pollChild(ctx context.Context, cmd *exec.Cmd, jobID string, tracker *pizzatracker.Tracker) bool {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			tracker.Drain(ctx, e.producer, jobID)
			return err == nil
		case <-ticker.C:
			tracker.Drain(ctx, e.producer, jobID)
		}
	}
}

func (e *Engine) executeInProcess(ctx context.Context, cfg *procconfig.Config, jobID, localPath string, metadata map[string]string, tracker *pizzatracker.Tracker) bool {
	fn, ok := handlers.Lookup(cfg.Python.Module)
	if !ok {
		e.log.Error("no in-process handler registered", map[string]interface{}{"job_id": jobID, "module": cfg.Python.Module})
		return false
	}

	var opts handlers.Options
	if cfg.Python.SupportsPizzaTracker {
		opts.PizzaTrackerPath = tracker.Path()
	}
	if cfg.Python.SupportsMetadata {
		opts.FileMetadata = metadata
	}

	done := make(chan error, 1)
	go func() { done <- fn(ctx, localPath, opts) }()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			tracker.Drain(ctx, e.producer, jobID)
			if err != nil {
				e.log.Error("in-process handler returned an error", map[string]interface{}{"job_id": jobID, "error": err.Error()})
				return false
			}
			return true
		case <-ticker.C:
			tracker.Drain(ctx, e.producer, jobID)
		}
	}
}
