package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/drillbot/internal/config"
	"github.com/example/drillbot/internal/database"
	"github.com/example/drillbot/internal/excel"
	"github.com/example/drillbot/internal/scheduler"
	"github.com/example/drillbot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	importFile := flag.String("import", "", "import a deck from this XLSX/CSV file and exit")
	importDeck := flag.String("deck", "imported", "deck name for -import")
	importAgent := flag.String("agent", "", "agent id for -import")
	flag.Parse()

	// .env holds secrets (database DSN); missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dsn := os.Getenv("DRILLBOT_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	log := logger.New(cfg.Logging)
	defer log.Sync()

	store, err := database.New(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	if *importFile != "" {
		if *importAgent == "" {
			log.Fatal("-import requires -agent")
		}
		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = *importFile
		importCfg.DeckName = *importDeck
		result, err := excel.ImportDeck(context.Background(), store, *importAgent, importCfg, time.Now().UTC())
		if err != nil {
			log.Fatal("import failed", zap.Error(err))
		}
		log.Info("import finished",
			zap.Int("processed", result.TotalProcessed),
			zap.Int("created", result.Created),
			zap.Int("skipped", result.Skipped),
			zap.Bool("deck_created", result.DeckCreated))
		for _, e := range result.Errors {
			log.Warn("import row skipped", zap.String("reason", e))
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	reminders := scheduler.New(store, logNotifier{log: log}, cfg.Reminder, log)
	if cfg.Reminder.Enabled {
		reminders.Start()
		defer reminders.Stop()
	}

	log.Info("drillbot started, press Ctrl+C to stop")
	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case <-ctx.Done():
	}
}

// logNotifier is the default reminder sink when no external transport is
// wired in.
type logNotifier struct {
	log *zap.Logger
}

func (n logNotifier) SendReminder(agentID string, dueCount int) error {
	n.log.Info("cards due for review",
		zap.String("agent_id", agentID),
		zap.Int("due_count", dueCount))
	return nil
}
