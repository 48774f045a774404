// Command ripd runs the agent session control plane: it assembles the
// schema catalogue, hook engine, command registry, event log, workspace
// sandbox, tool runner, and session service, and exposes the five
// HTTP routes of internal/httpapi on a stdlib net/http.ServeMux.
//
// Wiring style grounded on registry/cmd/registry/main.go: a run()
// function returning an error, environment-driven configuration with
// documented defaults, log.Fatal only at the outermost call.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xLillium/rip/internal/command"
	"github.com/xLillium/rip/internal/config"
	"github.com/xLillium/rip/internal/eventlog"
	"github.com/xLillium/rip/internal/hooks"
	"github.com/xLillium/rip/internal/httpapi"
	"github.com/xLillium/rip/internal/sandbox"
	"github.com/xLillium/rip/internal/schema"
	"github.com/xLillium/rip/internal/session"
	"github.com/xLillium/rip/internal/telemetry"
	"github.com/xLillium/rip/internal/tool"
	"github.com/xLillium/rip/internal/toolrunner"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	if _, err := schema.OpenAPI(); err != nil {
		return errors.New("schema catalogue failed to compile: " + err.Error())
	}

	eventLog, err := eventlog.Open(filepath.Join(cfg.DataDir, "events.jsonl"))
	if err != nil {
		return err
	}
	defer eventLog.Close()

	hooksEngine := hooks.NewEngine()

	logger := telemetry.NewClueLogger()
	tracer := telemetry.NewClueTracer()

	sandboxCfg := sandbox.DefaultConfig(cfg.DataDir)
	tools := tool.NewRegistry()
	sandbox.RegisterBuiltins(tools, sandboxCfg)
	runner := toolrunner.New(tools, 4, toolrunner.WithTelemetry(tracer, logger))

	commands := command.NewRegistry()
	_ = commands.Register("ping", "liveness check for a session's command channel", func(ctx command.Context) (string, error) {
		return "pong", nil
	})

	svcOpts := []session.ServiceOption{
		session.WithToolRunner(runner), session.WithCommands(commands), session.WithTelemetry(tracer, logger),
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		svcOpts = append(svcOpts, session.WithRedisBroadcaster(session.NewRedisBroadcaster(redisClient)))
	}

	if cfg.MongoURI != "" {
		mongoCtx := context.Background()
		mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return errors.New("mongo connect failed: " + err.Error())
		}
		mongoIndex, err := eventlog.NewMongoSnapshotIndex(mongoCtx, eventlog.MongoSnapshotIndexOptions{
			Client:   mongoClient,
			Database: cfg.MongoDatabase,
		})
		if err != nil {
			return errors.New("mongo snapshot index setup failed: " + err.Error())
		}
		svcOpts = append(svcOpts, session.WithMongoSnapshotIndex(mongoIndex))
	}

	svc := session.NewService(hooksEngine, eventLog, filepath.Join(cfg.DataDir, "snapshots"), svcOpts...)
	handlers := httpapi.New(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", handlers.CreateSession)
	mux.HandleFunc("POST /sessions/{id}/input", handlers.SendInput)
	mux.HandleFunc("GET /sessions/{id}/events", handlers.Events)
	mux.HandleFunc("POST /sessions/{id}/commands/{name}", handlers.ExecuteCommand)
	mux.HandleFunc("POST /sessions/{id}/cancel", handlers.Cancel)

	return http.ListenAndServe(":8080", mux)
}
