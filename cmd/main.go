package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stagetimer/internal/handlers"
	"stagetimer/internal/hub"
	"stagetimer/internal/logger"
	"stagetimer/internal/protocol"
	"stagetimer/internal/repository"
	"stagetimer/internal/repository/db"
	"stagetimer/internal/server"
	"stagetimer/internal/service"
	"stagetimer/internal/timer"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
)

const defaultTickMs = 100

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	sqldb, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqldb.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	clock := clockwork.NewRealClock()
	repos := repository.NewRepository(sqldb)
	manager := hub.NewManager(clock, log)
	engine := timer.NewEngine(clock, nil, log)
	services := service.NewService(repos.Rooms, engine, manager, clock, limitsFromConfig(), log)
	proto := protocol.NewHandler(services.Rooms, manager, log)
	apiHandler := handlers.NewHandler(services, proto, wsConfigFromViper(), log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// rehydrate persisted rooms and timers
	if err := services.Restore(ctx); err != nil {
		log.Fatalw("failed to restore rooms", "err", err)
	}

	// start the timer engine tick loop
	go engine.Run(ctx, tickPeriod())

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "stagetimer.db")
		dbPath = "stagetimer.db"
	}
	return db.InitDB(dbPath)
}

// tickPeriod reads the engine loop period, defaulting to 100 ms (10 Hz).
func tickPeriod() time.Duration {
	ms := viper.GetInt("engine.tick_ms")
	if ms <= 0 {
		ms = defaultTickMs
	}
	return time.Duration(ms) * time.Millisecond
}

// limitsFromConfig reads admission caps; zero means unlimited.
func limitsFromConfig() service.Limits {
	return service.Limits{
		MaxRooms:              viper.GetInt("limits.max_rooms"),
		MaxConnectionsPerRoom: viper.GetInt("limits.max_connections_per_room"),
	}
}

// wsConfigFromViper reads the keep-alive policy, falling back to defaults.
func wsConfigFromViper() handlers.WSConfig {
	cfg := handlers.DefaultWSConfig()
	if s := viper.GetInt("ws.ping_interval_s"); s > 0 {
		cfg.PingInterval = time.Duration(s) * time.Second
	}
	if s := viper.GetInt("ws.idle_disconnect_s"); s > 0 {
		cfg.IdleDisconnect = time.Duration(s) * time.Second
	}
	return cfg
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful
// shutdown: stop the engine, close every connection with a normal close
// code, flush snapshots, then drain the HTTP server.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop the engine tick loop
	cancel()

	// close live connections before flushing state
	services.CloseAll()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := services.Flush(ctx); err != nil {
		log.Errorw("failed to flush rooms", "err", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
