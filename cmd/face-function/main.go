package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/likeface/internal/config"
	"github.com/Lllllllleong/likeface/internal/services"
	"github.com/Lllllllleong/likeface/internal/transport"
)

var (
	router  http.Handler
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Deployed with FUNCTION_TARGET=HandleFaceAPI the function is served at "/",
	// so the router sees /health and /make_face/{u_id} unchanged.
	functions.HTTP("HandleFaceAPI", handleFaceAPI)
}

// main is required by the Go Functions Framework.
func main() {}

func handleFaceAPI(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load()
		if initErr != nil {
			return
		}
		var faceMaker *services.FaceMakerFunction
		faceMaker, initErr = services.NewFaceMaker(context.Background(), cfg)
		if initErr != nil {
			return
		}
		router = transport.NewRouter(faceMaker, slog.Default())
	})
	if initErr != nil {
		slog.Error("Critical: face API initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	router.ServeHTTP(w, r)
}
