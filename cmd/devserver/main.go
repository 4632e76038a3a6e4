// Development server for local testing of the projection REST API.
//
// Usage:
//
//	go run ./cmd/devserver
//
// This starts a local server on :8080 with:
//   - In-memory snapshot storage
//   - A dev API key
//   - A pre-fitted demo model
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opaque/principal/internal/service"
	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/internal/store"
	"github.com/opaque/principal/pkg/dataset"
	"github.com/opaque/principal/pkg/httpapi"
)

func main() {
	addr := flag.String("addr", ":8080", "Server address")
	dataDir := flag.String("data", "", "Data directory for file-based storage (default: in-memory)")
	flag.Parse()

	log.Println("Starting development server...")

	// Setup storage
	var snapshots store.Store
	if *dataDir != "" {
		var err error
		snapshots, err = store.NewFileStore(*dataDir)
		if err != nil {
			log.Fatalf("Failed to create file store: %v", err)
		}
		log.Printf("Using file-based storage at: %s", *dataDir)
	} else {
		snapshots = store.NewMemoryStore()
		log.Println("Using in-memory storage")
	}

	// Setup sessions with a dev key and long tokens for development
	devKey := "dev-key"
	sessionCfg := session.DefaultConfig()
	sessionCfg.APIKeys = []string{devKey}
	sessionCfg.TokenTTL = 24 * time.Hour
	sessions, err := session.NewManager(sessionCfg)
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	svc, err := service.New(service.DefaultConfig(), snapshots, sessions)
	if err != nil {
		log.Fatalf("Failed to create projection service: %v", err)
	}

	// Fit a demo model so the API has something to serve
	ctx := context.Background()
	demo := dataset.Generate(dataset.GenerateConfig{
		Samples:  500,
		Features: 16,
		Classes:  4,
		Seed:     42,
	})
	sess, err := svc.Login(ctx, devKey)
	if err != nil {
		log.Fatalf("Failed to open setup session: %v", err)
	}
	info, err := svc.Fit(ctx, sess.Token, "demo", demo.Vectors, 4, true)
	if err != nil {
		log.Fatalf("Failed to fit demo model: %v", err)
	}
	if err := svc.RevokeSession(ctx, sess.Token); err != nil {
		log.Printf("Failed to close setup session: %v", err)
	}
	log.Printf("Fitted demo model: %s (%d features -> %d components)", info.Name, info.Features, info.Components)

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Address = *addr

	srv := httpapi.New(serverCfg, svc)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server listening on %s", *addr)
	log.Println("")
	log.Println("Test endpoints:")
	log.Println("  GET    /health                              - Health check")
	log.Println("  POST   /api/v1/auth/login                   - Login")
	log.Println("  POST   /api/v1/auth/refresh                 - Refresh token")
	log.Println("  POST   /api/v1/models/{name}/fit            - Fit a model")
	log.Println("  POST   /api/v1/models/{name}/transform      - Project rows")
	log.Println("  POST   /api/v1/models/{name}/inverse        - Reconstruct rows")
	log.Println("  POST   /api/v1/models/{name}/error          - Reconstruction MSE")
	log.Println("  GET    /api/v1/models/{name}/cumsum         - Cumulative variance")
	log.Println("  GET    /api/v1/models/{name}                - Describe a model")
	log.Println("  GET    /api/v1/models                       - List models")
	log.Println("  DELETE /api/v1/models/{name}                - Delete a model")
	log.Println("")
	log.Println("Test credentials:")
	log.Printf("  API key: %s", devKey)
	log.Println("  Demo model: demo")
	log.Println("")

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
