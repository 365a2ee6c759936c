package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/whisper-batch/worker/internal/api"
	"github.com/whisper-batch/worker/internal/config"
	"github.com/whisper-batch/worker/internal/events"
	"github.com/whisper-batch/worker/internal/history"
	"github.com/whisper-batch/worker/internal/whisper"
	"github.com/whisper-batch/worker/internal/worker"
)

func main() {
	// Protocol events own stdout; everything else goes to stderr.
	log.SetOutput(os.Stderr)

	var (
		manifestPath = flag.String("manifest", "", "path to the batch manifest JSON file")
		outputDir    = flag.String("output-dir", "output", "directory for transcription artifacts")
		model        = flag.String("model", "base", "model to use when the manifest does not name one")
		configPath   = flag.String("config", "", "optional YAML config file")
		listenAddr   = flag.String("listen", "", "serve the status API on this address (overrides config)")
		capabilities = flag.Bool("capabilities", false, "print engine capabilities as JSON and exit")
	)
	flag.Parse()

	if *capabilities {
		if err := worker.PrintCapabilities(); err != nil {
			log.Fatalf("Failed to print capabilities: %v", err)
		}
		return
	}

	if *manifestPath == "" {
		flag.Usage()
		log.Fatal("--manifest is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	var provider whisper.Provider
	switch cfg.Engine {
	case config.EngineNative:
		provider = whisper.NewNativeProvider(cfg.ModelDir)
	default:
		provider = whisper.NewServerProvider(cfg.ServerURL)
	}
	log.Printf("Engine: %s", provider.Name())

	emitter := events.NewEmitter(os.Stdout)

	var store *history.Store
	if cfg.HistoryDBPath != "" {
		store, err = history.NewSQLite(cfg.HistoryDBPath)
		if err != nil {
			log.Fatalf("Failed to open history database: %v", err)
		}
		defer store.Close()
	}

	if cfg.ListenAddr != "" {
		bus := events.NewBus(0)
		emitter.SetBus(bus)
		router := api.NewRouter(bus, store)
		go func() {
			log.Printf("Status server on %s", cfg.ListenAddr)
			if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
				log.Printf("Status server failed: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(provider, emitter)
	if store != nil {
		w.SetHistory(store)
	}

	summary, err := w.ProcessManifest(ctx, *manifestPath, *outputDir, *model)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
	log.Printf("Batch complete: %d processed, %d failed of %d (%.1fs)",
		summary.Processed, summary.Failed, summary.Total, summary.DurationSeconds)
}
