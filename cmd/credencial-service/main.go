package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/CredencialAcceso/CredencialAcceso/internal/adminsession"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/config"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/db"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/httpserver"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/logger"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/middleware"
	"github.com/CredencialAcceso/CredencialAcceso/internal/common/tracing"
	"github.com/CredencialAcceso/CredencialAcceso/internal/httpapi"
	"github.com/CredencialAcceso/CredencialAcceso/internal/lookup"
	"github.com/CredencialAcceso/CredencialAcceso/internal/personnel"
	"github.com/CredencialAcceso/CredencialAcceso/internal/roster"
	"github.com/CredencialAcceso/CredencialAcceso/internal/vehicle"
)

var (
	configPath = flag.String("config", "configs/credencial-service.json", "config file path")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	gdb, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := gdb.AutoMigrate(&personnel.Personnel{}, &vehicle.Vehicle{}); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	lastStore, err := lookup.NewFileStore(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("failed to open device store: %v", err)
	}

	people := personnel.NewRepo(gdb)
	vehicles := vehicle.NewRepo(gdb)
	breaker := middleware.NewCircuitBreaker("lookup-db", 5, 30*time.Second)

	lookupSvc := lookup.NewService(people, vehicles, lastStore, breaker, log)
	rosterSvc := roster.NewService(people, vehicles, log)
	sessions := adminsession.NewManager(cfg.Auth)

	handler := httpapi.NewRouter(cfg, log, httpapi.NewHandler(lookupSvc, rosterSvc, sessions, log))

	if err := httpserver.Run(cfg, log, handler); err != nil {
		log.Fatalf("credencial-service exited with error: %v", err)
	}
}
