package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"discburn-agent/internal/api"
	"discburn-agent/internal/burn"
	"discburn-agent/internal/caps"
	"discburn-agent/internal/config"
	"discburn-agent/internal/drive"
	"discburn-agent/internal/mdns"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/plugins"
	"discburn-agent/internal/queue"
	"discburn-agent/internal/session"
	"discburn-agent/internal/track"

	"github.com/spf13/cobra"
)

// @title Discburn Agent API
// @version 0.0.0-dev
// @description Optical disc authoring agent REST API specification

// @BasePath /

var (
	// Version is set at build time via ldflags
	version = "0.0.0-dev"

	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "discburn-agent",
		Short:        "Discburn Agent - Optical disc authoring service",
		Version:      version,
		Run:          run,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/discburn/config.yaml", "configuration file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "plan <session.json>",
		Short: "Check a session description against the capability graph without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	})

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("discburn-agent starting", "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	drives, err := cfg.Drives()
	if err != nil {
		log.Fatalf("failed to build drives: %v", err)
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build capability registry: %v", err)
	}

	store, err := drive.NewStore(cfg.SettingsDB)
	if err != nil {
		log.Fatalf("failed to create settings store: %v", err)
	}
	if err := store.Open(); err != nil {
		log.Fatalf("failed to open settings store: %v", err)
	}
	defer store.Close()

	manager, err := queue.NewManager(cfg.JobsDir, logger)
	if err != nil {
		log.Fatalf("failed to create job manager: %v", err)
	}

	executor := queue.NewExecutor(registry, drives, cfg.TmpDir, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := queue.NewWorker(manager, executor, logger)
	worker.Start(ctx)
	defer worker.Stop()

	portStr := os.Getenv("DISCBURN_AGENT_PORT")
	port := cfg.Port
	if portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			log.Fatalf("invalid port number: %v", err)
		}
	}

	mdnsService := mdns.NewService(logger)
	if err := mdnsService.Register(ctx, port); err != nil {
		logger.Warn("failed to register mDNS service", "error", err)
	}
	defer mdnsService.Shutdown()

	router := api.NewRouter(registry, drives, store, manager, executor, logger)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}
	logger.Info("server stopped")
}

// runPlan loads the configuration, plans the session described in the given
// JSON file and prints the verdict with the reconciled flag sets.
func runPlan(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	drives, err := cfg.Drives()
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var command queue.Command
	if err := json.Unmarshal(data, &command); err != nil {
		return fmt.Errorf("failed to parse session description: %w", err)
	}

	scfg := session.Config{
		Input:      command.InputType(),
		DestFile:   command.DestFile,
		DestFormat: command.DestFormat,
		Flags:      command.Flags,
	}
	if command.DestDrive != "" {
		d, ok := drives[command.DestDrive]
		if !ok {
			return fmt.Errorf("unknown destination drive %q", command.DestDrive)
		}
		scfg.DestDrive = d
	}
	if command.SourceDrive != "" {
		d, ok := drives[command.SourceDrive]
		if !ok {
			return fmt.Errorf("unknown source drive %q", command.SourceDrive)
		}
		scfg.SourceDrive = d
	}
	sess := session.New(scfg)

	verdict := registry.SessionSupported(sess)
	out := map[string]any{
		"result": verdict.String(),
	}
	if supported, compulsory, res := registry.GetBurnFlags(sess); res == burn.Ok {
		out["supported"] = supported.String()
		out["compulsory"] = compulsory.String()
	}
	if media := registry.RequiredMediaType(sess); media != track.MediaNone {
		out["required_media"] = media.String()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// buildRegistry registers the built-in declarations, applies any manifest
// overrides and freezes the graph.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*caps.Registry, error) {
	manifests, err := plugin.LoadManifests(cfg.ManifestsDir)
	if err != nil {
		return nil, err
	}

	registry := caps.NewRegistry(logger)
	for _, decl := range plugins.Builtin() {
		if m, ok := manifests[decl.Name]; ok {
			m.Apply(decl)
		}
		if err := registry.Register(decl); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	return registry, nil
}
