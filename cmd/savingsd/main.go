// savingsd runs the savings engine's scheduled jobs: daily tiered interest
// accrual over the savings products and the fixed savings maturity sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xybank/savings-core/internal/adapter/notifier"
	"github.com/xybank/savings-core/internal/adapter/repository/postgres"
	"github.com/xybank/savings-core/internal/config"
	"github.com/xybank/savings-core/internal/domain"
	"github.com/xybank/savings-core/internal/usecase/accrual"
	"github.com/xybank/savings-core/internal/usecase/fixedsavings"
	"github.com/xybank/savings-core/internal/usecase/ledger"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()

	// 1. Database and migrations
	if err := postgres.Migrate(cfg.MigrationsURL, cfg.DatabaseURL); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	db, err := postgres.NewDB(cfg.DatabaseConnStr)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// 2. Repositories
	accountRepo := postgres.NewAccountRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)
	fsRepo := postgres.NewFixedSavingsRepository(db)

	// 3. Event publishing
	var events domain.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notifier.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer kafkaNotifier.Close()
		events = kafkaNotifier
		log.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		events = notifier.NewLog(log)
		log.Info("no kafka brokers configured, logging events instead")
	}

	// 4. Services
	ledgerService := ledger.NewService(ledgerRepo, accountRepo, events, log)
	accrualService := accrual.NewService(accountRepo, ledgerService, domain.DefaultSavingsTiers(), log)
	fsService := fixedsavings.NewService(fsRepo, accountRepo, events, log)

	// 5. Scheduled jobs
	scheduler := cron.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err = scheduler.AddFunc(cfg.AccrualSchedule, func() {
		for _, accountType := range []domain.AccountType{domain.AccountTypeXySave, domain.AccountTypeSpendAndSave} {
			if _, err := accrualService.RunDaily(ctx, accountType); err != nil {
				log.Error("accrual run failed",
					zap.String("account_type", string(accountType)), zap.Error(err))
			}
		}
	})
	if err != nil {
		log.Fatal("invalid accrual schedule", zap.Error(err))
	}

	_, err = scheduler.AddFunc(cfg.MaturitySchedule, func() {
		if _, err := fsService.RunMaturityJob(ctx); err != nil {
			log.Error("maturity job failed", zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("invalid maturity schedule", zap.Error(err))
	}

	scheduler.Start()
	log.Info("savings daemon started",
		zap.String("accrual_schedule", cfg.AccrualSchedule),
		zap.String("maturity_schedule", cfg.MaturitySchedule))

	waitForShutdown(log, scheduler, cancel)
}

// waitForShutdown waits for SIGTERM or SIGINT, stops the scheduler, and lets
// any in-flight job finish before exiting.
func waitForShutdown(log *zap.Logger, scheduler *cron.Cron, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info("shutting down", zap.String("signal", sig.String()))

	cancel()
	<-scheduler.Stop().Done()
	log.Info("scheduler stopped")
}
