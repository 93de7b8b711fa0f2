// Package main is the entry point for the AutoFrotz agent. It only handles
// dependency injection and process wiring — no orchestration logic belongs
// here, that lives in internal/orchestrator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/mradwan/autofrotz/internal/dashboardhook"
	"github.com/mradwan/autofrotz/internal/interpreter"
	"github.com/mradwan/autofrotz/internal/journal"
	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/orchestrator"
	"github.com/mradwan/autofrotz/internal/platform/logger"
	"github.com/mradwan/autofrotz/internal/platform/metrics"
	"github.com/mradwan/autofrotz/internal/platform/optimization"
)

func main() {
	dbPath := flag.String("db", "autofrotz.db", "path to the journal's SQLite database")
	gameFile := flag.String("game", "", "path to the Z-Machine story file for a fresh game (ignored on resume)")
	dashboardAddr := flag.String("dashboard-addr", ":8090", "listen address for the dashboard WebSocket endpoint")
	preset := flag.String("config", "default", "default | conservative | aggressive")
	flag.Parse()

	appLogger := logger.NewLogger()

	cfg, err := resolveConfig(*preset)
	if err != nil {
		appLogger.Error(err.Error())
		os.Exit(1)
	}

	pool := optimization.DefaultConfig()

	appLogger.Info("opening journal at " + *dbPath)
	db, err := journal.InitSQLite(*dbPath, pool)
	if err != nil {
		appLogger.Error("failed to initialize journal: " + err.Error())
		os.Exit(1)
	}
	jrnl := journal.NewSQLiteJournal(db, *dbPath)
	defer jrnl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("starting dashboard hub on " + *dashboardAddr)
	hub := dashboardhook.NewHub(appLogger, pool)
	go hub.Run(ctx)
	go serveDashboard(hub, *dashboardAddr, appLogger)

	orch := orchestrator.New(cfg, orchestrator.Deps{
		Interpreter: &unimplementedInterpreter{},
		Provider:    &unimplementedProvider{},
		Journal:     jrnl,
		Logger:      appLogger,
		Metrics:     metrics.NewCollector(),
		Hooks:       []orchestrator.Hook{dashboardhook.NewWebSocketHook(hub)},
	})

	resumed, err := orch.Resume(ctx)
	if err != nil {
		appLogger.Error("resume failed: " + err.Error())
		os.Exit(1)
	}
	if !resumed {
		if *gameFile == "" {
			appLogger.Error("no active game to resume and -game was not given")
			os.Exit(1)
		}
		if err := orch.StartNewGame(ctx, *gameFile); err != nil {
			appLogger.Error("start new game failed: " + err.Error())
			os.Exit(1)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		appLogger.Info("shutting down")
		cancel()
	}()

	// The turn loop's first iteration surfaces exactly why the wiring stops
	// here: DoCommand on unimplementedInterpreter returns an instructive
	// error, which RunTurn propagates as a fatal interpreter I/O failure.
	// A real deployment replaces Deps.Interpreter and Deps.Provider with
	// concrete collaborators; this module intentionally stops short of
	// both, per its own external-interfaces boundary.
	if _, err := orch.RunTurn(ctx, ""); err != nil {
		appLogger.Error(err.Error())
	}

	<-ctx.Done()
}

func resolveConfig(preset string) (orchestrator.Config, error) {
	switch preset {
	case "default":
		return orchestrator.DefaultConfig(), nil
	case "conservative":
		return orchestrator.ConservativeConfig(), nil
	case "aggressive":
		return orchestrator.AggressiveConfig(), nil
	default:
		return orchestrator.Config{}, fmt.Errorf("unknown -config preset %q", preset)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func serveDashboard(hub *dashboardhook.Hub, addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("dashboard websocket upgrade failed: " + err.Error())
			return
		}
		client := dashboardhook.NewClient(hub, conn)
		go client.WritePump()
		go client.ReadPump()
	})
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("dashboard server exited: " + err.Error())
	}
}

// unimplementedInterpreter and unimplementedProvider exist so this binary
// links and the DI wiring above is exercised end to end. Wiring a live
// Z-Machine process and a live language-model backend are both explicit
// external collaborators this module stops short of; an operator supplies
// real implementations of interpreter.Interpreter and llm.Provider in their
// place.
type unimplementedInterpreter struct{}

func (unimplementedInterpreter) DoCommand(context.Context, string) (string, string, error) {
	return "", "", errors.New("no interpreter wired: supply a concrete interpreter.Interpreter")
}
func (unimplementedInterpreter) Save(context.Context, int) error {
	return errors.New("no interpreter wired")
}
func (unimplementedInterpreter) Restore(context.Context, int) error {
	return errors.New("no interpreter wired")
}

type unimplementedProvider struct{}

func (unimplementedProvider) Complete(context.Context, string, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errors.New("no language-model provider wired: supply a concrete llm.Provider")
}
func (unimplementedProvider) CompleteJSON(context.Context, string, llm.JSONRequest) (json.RawMessage, error) {
	return nil, errors.New("no language-model provider wired")
}
func (unimplementedProvider) Name() string { return "unimplemented" }
func (unimplementedProvider) IsAvailable() bool { return false }
func (unimplementedProvider) GetUsageStats() llm.UsageStats { return llm.UsageStats{} }
func (unimplementedProvider) ResetUsage() {}

var _ interpreter.Interpreter = unimplementedInterpreter{}
var _ llm.Provider = unimplementedProvider{}
