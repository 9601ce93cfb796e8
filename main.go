package main

import (
	"net/rpc"

	"github.com/joho/godotenv"

	"github.com/shahank42/hyper-typer/config"
	"github.com/shahank42/hyper-typer/game"
	"github.com/shahank42/hyper-typer/logger"
	"github.com/shahank42/hyper-typer/monitor"
	"github.com/shahank42/hyper-typer/persistence"
	hyperrpc "github.com/shahank42/hyper-typer/rpc"
	"github.com/shahank42/hyper-typer/scheduler"
	"github.com/shahank42/hyper-typer/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// .env is optional; viper falls back to defaults.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the store
	store, err := newStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	logger.Log.Infof("Store ready (driver=%s).", cfg.Database.Driver)

	// Game service and the durable scheduler driving its delayed transitions
	service := game.NewService(store)

	sched := scheduler.New(store)
	sched.Register(game.TaskBeginRace, service.BeginRace)
	sched.Register(game.TaskEndGame, service.EndGame)
	sched.Start()
	defer sched.Stop()

	// Metrics
	mon := monitor.NewMonitor("hypertyper", store)
	mon.StartServer(cfg.Server.MetricsAddress)
	defer mon.Stop()

	// Admin RPC
	rpcServer, err := hyperrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	if err := rpc.Register(hyperrpc.NewAdminService(service)); err != nil {
		logger.Log.Fatalf("Failed to register admin RPC service: %v", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	// HTTP + websocket surface
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, service, mon)
	defer gameServer.Shutdown()

	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func newStore(cfg *config.Config) (persistence.Store, error) {
	pg := cfg.Database.Postgres
	switch cfg.Database.Driver {
	case "gorm":
		return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "sql":
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return persistence.NewMemoryStore(), nil
	}
}
