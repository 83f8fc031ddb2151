// Command workman runs the mill's task workers: it pulls duplication and
// bit-integrity tasks from the queue and drives them to completion.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/4Science/mill/internal/auditlog"
	"github.com/4Science/mill/internal/bit"
	"github.com/4Science/mill/internal/bitlog"
	"github.com/4Science/mill/internal/config"
	"github.com/4Science/mill/internal/credentials"
	"github.com/4Science/mill/internal/dup"
	"github.com/4Science/mill/internal/logging"
	"github.com/4Science/mill/internal/metrics"
	"github.com/4Science/mill/internal/queue"
	"github.com/4Science/mill/internal/storeprovider"
	"github.com/4Science/mill/internal/workman"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// taskQueue is what the worker side and the producer side together need
// from the queue.
type taskQueue interface {
	workman.TaskQueue
	dup.TaskSender
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup(logging.Config{})
		logging.Component("main").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging)
	log := logging.Component("main")
	log.Info("mill workman starting", "version", Version, "git_sha", GitSHA, "workers", cfg.Workers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("mill")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	accounts, err := credentials.LoadAccounts(cfg.CredentialsFile)
	if err != nil {
		log.Error("failed to load account credentials", "error", err)
		os.Exit(1)
	}
	credRepo := credentials.NewSnapshotRepo(accounts)
	accountIDs := make([]string, 0, len(accounts))
	for _, a := range accounts {
		accountIDs = append(accountIDs, a.AccountID)
	}

	providers := storeprovider.NewFactory()
	if cfg.LocalDuplicationDir != "" {
		providers.RegisterLocal(cfg.LocalDuplicationDir)
	}

	var auditRepo auditlog.ItemRepo
	var bitRepo bitlog.ItemRepo
	if cfg.Database.DSN != "" {
		auditPg, err := auditlog.NewPostgresRepo(cfg.Database.DSN)
		if err != nil {
			log.Error("failed to connect audit log store", "error", err)
			os.Exit(1)
		}
		defer auditPg.Close()
		bitPg, err := bitlog.NewPostgresRepo(cfg.Database.DSN)
		if err != nil {
			log.Error("failed to connect bit log store", "error", err)
			os.Exit(1)
		}
		defer bitPg.Close()
		auditRepo, bitRepo = auditPg, bitPg
	} else {
		log.Warn("no database DSN configured, using in-memory log stores")
		auditRepo, bitRepo = auditlog.NewMemoryRepo(), bitlog.NewMemoryRepo()
	}

	var q taskQueue
	switch cfg.Queue.Backend {
	case "memory":
		q = queue.NewMemoryQueue()
	default:
		sqsQueue, err := queue.NewSQSQueue(ctx, cfg.Queue.Name)
		if err != nil {
			log.Error("failed to open task queue", "error", err)
			os.Exit(1)
		}
		q = sqsQueue
	}

	if cfg.Policy.BucketURL != "" {
		source, err := dup.NewBucketPolicySource(ctx, cfg.Policy.BucketURL)
		if err != nil {
			log.Error("failed to open policy bucket", "error", err)
			os.Exit(1)
		}
		defer source.Close()

		policies := dup.NewPolicyManager(source, accountIDs, cfg.Policy.RefreshFrequency.Std())
		if err := policies.Refresh(ctx); err != nil {
			log.Error("initial policy load failed", "error", err)
			os.Exit(1)
		}
		go policies.Run(ctx)

		if cfg.Looping.Enabled {
			producer := dup.NewTaskProducer(policies, credRepo, accountIDs, q, cfg.Looping.Frequency.Std())
			go producer.Run(ctx)
		}

		if cfg.AuditLogSpace != "" {
			exporter := auditlog.NewExporter(auditRepo, credRepo, providers, policies,
				accountIDs, cfg.AuditLogSpace, cfg.AuditLogExportFrequency.Std())
			go exporter.Run(ctx)
		}
	}

	factories := []workman.TaskProcessorFactory{
		dup.NewTaskProcessorFactory(credRepo, providers, auditlog.NewOutcomeWriter(auditRepo)),
		bit.NewTaskProcessorFactory(credRepo, providers, bitRepo),
	}

	manager := workman.NewTaskWorkerManager(q, factories, cfg.Workers, cfg.TaskTimeout.Std(), m)
	manager.Run(ctx)

	log.Info("mill workman stopped")
}
