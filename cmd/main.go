package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/example/uidcheckbot/auditlog"
	"github.com/example/uidcheckbot/bot"
	"github.com/example/uidcheckbot/config"
	"github.com/example/uidcheckbot/db"
	"github.com/example/uidcheckbot/logger"
	"github.com/example/uidcheckbot/ocr"
	"github.com/example/uidcheckbot/server"
	"github.com/example/uidcheckbot/verify"
	"github.com/example/uidcheckbot/version"
)

func main() {
	banner := fmt.Sprintf("\n\x1b[34m*****************************\n*  UID Checker Bot v%s  *\n*****************************\x1b[0m\n", version.Version)
	fmt.Print(banner)

	created := false
	if _, err := os.Stat("config.yml"); os.IsNotExist(err) {
		created = true
	}

	cfg, err := config.Ensure("config.yml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if created {
		log.Println("Default configuration generated at config.yml. Please edit it and restart.")
		return
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("logger: %v", err)
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	audit, err := auditlog.New(cfg.AuditDBPath)
	if err != nil {
		log.Fatalf("audit database: %v", err)
	}

	oracle := ocr.NewClient(cfg.GeminiAPIKey, cfg.GeminiEndpoint, time.Duration(cfg.OCRTimeoutSec)*time.Second)

	engine := verify.NewEngine(database, oracle, verify.Options{
		MinBalance:   cfg.MinBalance,
		RestrictMode: cfg.RestrictMode,
	})

	b, err := bot.New(cfg, database, audit, engine, oracle)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	go func() {
		if err := server.Start(cfg, database, audit); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	b.Start()
}
