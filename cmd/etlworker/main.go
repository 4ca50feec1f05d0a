// Command etlworker watches a local directory tree standing in for an
// S3-compatible bucket (one subdirectory per bucket under -bucket-root)
// for processor config and data file uploads, and runs the matching shell or in-process
// handler for each data file, relaying progress over a message bus and an
// operator dashboard.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/castiron-io/etlworker/internal/config"
	"github.com/castiron-io/etlworker/internal/dashboard"
	"github.com/castiron-io/etlworker/internal/dedup"
	"github.com/castiron-io/etlworker/internal/engine"
	"github.com/castiron-io/etlworker/internal/jobaudit"
	"github.com/castiron-io/etlworker/internal/logging"
	"github.com/castiron-io/etlworker/internal/objectstore"
	"github.com/castiron-io/etlworker/internal/producer"
	"github.com/castiron-io/etlworker/internal/tasksink"

	_ "github.com/castiron-io/etlworker/internal/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file overlaying the defaults")
	bucketRoot := flag.String("bucket-root", "./etl-data", "local filesystem root backing the bucket (dev object store)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logCfg, err := buildLoggingConfig(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	appLog := logging.New(logCfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	store, err := objectstore.NewLocalFS(*bucketRoot)
	if err != nil {
		appLog.Error("failed to initialize object store", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	wsSink := producer.NewWebSocketSink()
	tee := producer.NewTee(producer.NoOp{})
	tee.AddSink(wsSink)

	var messageProducer producer.MessageProducer = tee
	var jobDB *jobaudit.DB
	if cfg.Database.Enabled {
		jobDB, err = jobaudit.Connect(ctx, cfg.Database)
		if err != nil {
			appLog.Error("failed to connect job-history database, continuing without it", map[string]interface{}{"error": err.Error()})
		} else {
			messageProducer = jobaudit.NewSink(jobDB, tee, appLog)
			defer jobDB.Close()
		}
	}

	dedupFilter := dedup.New(cfg.Dedup)
	eng := engine.New(store, messageProducer, dedupFilter, cfg.Worker, appLog, "")

	if err := eng.Startup(ctx, cfg.ObjectStore.Bucket); err != nil {
		appLog.Error("startup scan failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	if cfg.Dashboard.Enabled {
		dash := dashboard.New(cfg.Dashboard, eng.Registry(), wsSink, appLog)
		if err := dash.Start(); err != nil {
			appLog.Error("failed to start dashboard", map[string]interface{}{"error": err.Error()})
		} else {
			defer dash.Stop()
		}
	}

	sink, err := tasksink.NewFSNotifySink(*bucketRoot, cfg.ObjectStore.Bucket, appLog)
	if err != nil {
		appLog.Error("failed to start task sink", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	if err := sink.Start(ctx, eng.Dispatch); err != nil {
		appLog.Error("failed to start dispatch loop", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	appLog.Info("etlworker running", map[string]interface{}{"bucket": cfg.ObjectStore.Bucket})
	<-ctx.Done()
	appLog.Info("etlworker shutting down", nil)
}

func buildLoggingConfig(lc config.LoggingConfig) (*logging.Config, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}

	out := &logging.Config{Level: level, Format: format, Sanitize: true}
	switch lc.Output {
	case "file":
		w, err := logging.CreateFileOutput(lc.File)
		if err != nil {
			return nil, err
		}
		out.Output = w
	case "both":
		w, err := logging.CreateCombinedOutput(lc.File)
		if err != nil {
			return nil, err
		}
		out.Output = w
	default:
		out.Output = os.Stdout
	}

	return out, nil
}
