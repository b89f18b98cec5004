package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/faceid/internal/api"
	"github.com/your-org/faceid/internal/api/ws"
	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/queue"
	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/internal/storage"
	"github.com/your-org/faceid/internal/vision"
	"github.com/your-org/faceid/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting faceid API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	// Load inference models. No request can be served without them, so any
	// failure here aborts startup instead of degrading silently.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	segPath := filepath.Join(cfg.Vision.ModelsDir, "yoloe-11l-seg.onnx")
	detPath := filepath.Join(cfg.Vision.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.Vision.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading segmentation model", "path", segPath)
	segmenter, err := vision.NewONNXSegmenter(segPath, float32(cfg.Vision.SegmentationThreshold), nil)
	if err != nil {
		slog.Error("load segmenter", "error", err)
		os.Exit(1)
	}
	defer segmenter.Close()

	slog.Info("loading detection model", "path", detPath)
	detector, err := vision.NewDetector(detPath, float32(cfg.Vision.DetectionThreshold), nil)
	if err != nil {
		slog.Error("load detector", "error", err)
		os.Exit(1)
	}

	slog.Info("loading embedding model", "path", embPath)
	embedder, err := vision.NewEmbedder(embPath, nil)
	if err != nil {
		detector.Close()
		slog.Error("load embedder", "error", err)
		os.Exit(1)
	}

	analyzer := vision.NewONNXFaceAnalyzer(detector, embedder)
	defer analyzer.Close()

	pipeline := recognition.NewPipeline(segmenter, analyzer, minioStore, recognition.PipelineConfig{
		CanvasSize:       cfg.Vision.CanvasSize,
		TargetLuma:       cfg.Vision.TargetLuma,
		TargetLumaStd:    cfg.Vision.TargetLumaStd,
		InferenceTimeout: cfg.Vision.InferenceTimeout.Unwrap(),
	})

	svc := recognition.NewService(db, pipeline, producer, recognition.MatchConfig{
		MatchThreshold:     float32(cfg.Vision.MatchThreshold),
		CandidateThreshold: float32(cfg.Vision.CandidateThreshold),
		CandidateLimit:     cfg.Vision.CandidateLimit,
	})

	// Build the initial index from the durable store.
	if err := svc.Refresh(context.Background()); err != nil {
		slog.Error("initial index refresh", "error", err)
		os.Exit(1)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume recognition results: persist event rows and feed the hub.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create result consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeResults(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var result models.RecognitionResult
		if err := json.Unmarshal(msg.Data(), &result); err != nil {
			return err
		}

		event := &models.Event{
			Kind:        result.Kind,
			IdentityID:  result.IdentityID,
			Label:       result.Label,
			Score:       result.Score,
			Matched:     result.Matched,
			SnapshotKey: result.SnapshotKey,
		}
		if err := db.CreateEvent(ctx, event); err != nil {
			slog.Error("store event", "error", err)
		}

		evtType := "identified"
		if result.Kind == models.EventEnroll {
			evtType = "enrolled"
		}

		resp := dto.EventResponse{
			ID:         event.ID,
			Kind:       event.Kind,
			IdentityID: event.IdentityID,
			Label:      event.Label,
			Score:      dto.Score(event.Score),
			Matched:    event.Matched,
			CreatedAt:  event.CreatedAt.Format(time.RFC3339),
		}
		if event.SnapshotKey != "" {
			resp.SnapshotURL = "/v1/events/" + event.ID.String() + "/snapshot"
		}

		hub.BroadcastEvent(&dto.WSEvent{Type: evtType, Data: resp})
		return nil
	})
	if err != nil {
		slog.Warn("start result consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
		Service:  svc,
		Index:    svc.Index(),
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
