// Command pca-service runs the projection gRPC server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/opaque/principal/api/wire"
	"github.com/opaque/principal/internal/service"
	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/internal/store"
	"github.com/opaque/principal/pkg/encrypt"
	"github.com/opaque/principal/pkg/grpcserver"
)

var (
	grpcPort   = flag.Int("grpc-port", 50051, "gRPC server port")
	httpPort   = flag.Int("http-port", 8081, "HTTP health port")
	dataDir    = flag.String("data", "", "Directory for snapshot storage (default: in-memory)")
	sealKey    = flag.String("seal-key", "", "Hex-encoded 32-byte key sealing snapshots at rest")
	apiKeys    = flag.String("api-keys", "", "Comma-separated client API keys (default: one generated key)")
	tokenTTL   = flag.Duration("token-ttl", time.Hour, "Session token lifetime")
	maxWorkers = flag.Int("max-workers", 4, "Concurrent fit limit")
	maxSamples = flag.Int("max-samples", 100000, "Per-request row limit")
	tlsCert    = flag.String("tls-cert", "", "TLS certificate file (optional)")
	tlsKey     = flag.String("tls-key", "", "TLS key file (optional)")
)

func main() {
	flag.Parse()

	log.Println("Starting projection service...")

	snapshots, err := openStore()
	if err != nil {
		log.Fatalf("Failed to open snapshot store: %v", err)
	}
	defer snapshots.Close()

	keys, generated, err := clientKeys()
	if err != nil {
		log.Fatalf("Failed to prepare API keys: %v", err)
	}
	if generated {
		log.Printf("No -api-keys given, generated one: %s", keys[0])
	}

	sessionCfg := session.DefaultConfig()
	sessionCfg.APIKeys = keys
	sessionCfg.TokenTTL = *tokenTTL
	sessions, err := session.NewManager(sessionCfg)
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	cfg := service.Config{
		MaxWorkers:           *maxWorkers,
		MaxSamplesPerRequest: *maxSamples,
	}
	svc, err := service.New(cfg, snapshots, sessions)
	if err != nil {
		log.Fatalf("Failed to create projection service: %v", err)
	}

	serverOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(50 * 1024 * 1024), // 50MB for large training batches
		grpc.MaxSendMsgSize(50 * 1024 * 1024),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoveryUnaryInterceptor(),
			grpcserver.LoggingUnaryInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			grpcserver.RecoveryStreamInterceptor(),
			grpcserver.LoggingStreamInterceptor(),
		),
	}
	if *tlsCert != "" && *tlsKey != "" {
		creds, err := grpcserver.LoadTLSCredentials(*tlsCert, *tlsKey)
		if err != nil {
			log.Fatalf("Failed to load TLS credentials: %v", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
		log.Println("TLS enabled")
	}
	grpcServer := grpc.NewServer(serverOpts...)

	// Register health service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// Register reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	wire.RegisterProjectionServer(grpcServer, grpcserver.New(svc))

	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", *grpcPort))
	if err != nil {
		log.Fatalf("Failed to listen on port %d: %v", *grpcPort, err)
	}

	go func() {
		log.Printf("gRPC server listening on :%d", *grpcPort)
		if err := grpcServer.Serve(grpcLis); err != nil {
			log.Fatalf("gRPC server failed: %v", err)
		}
	}()

	// HTTP server for health probes
	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthy, msg, sessionCount, modelCount := svc.HealthCheck(r.Context())
		if healthy {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "OK\n")
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "ERROR: %s\n", msg)
		}
		fmt.Fprintf(w, "Sessions: %d\n", sessionCount)
		fmt.Fprintf(w, "Models: %d\n", modelCount)
	})

	httpMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Ready\n")
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *httpPort),
		Handler: httpMux,
	}

	go func() {
		log.Printf("HTTP server listening on :%d", *httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	grpcServer.GracefulStop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)

	log.Println("Shutdown complete")
}

// openStore builds the snapshot store selected by -data and -seal-key.
func openStore() (store.Store, error) {
	if *dataDir == "" {
		if *sealKey != "" {
			return nil, fmt.Errorf("-seal-key requires -data")
		}
		log.Println("Using in-memory snapshot store")
		return store.NewMemoryStore(), nil
	}

	if *sealKey == "" {
		log.Printf("Using file snapshot store at %s", *dataDir)
		return store.NewFileStore(*dataDir)
	}

	key, err := hex.DecodeString(*sealKey)
	if err != nil {
		return nil, fmt.Errorf("-seal-key is not valid hex: %w", err)
	}
	sealer, err := encrypt.NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	log.Printf("Using sealed file snapshot store at %s (key %s)", *dataDir, sealer.KeyFingerprint())
	return store.NewSealedFileStore(*dataDir, sealer)
}

// clientKeys returns the configured API keys, generating a random one when
// none are given.
func clientKeys() ([]string, bool, error) {
	if *apiKeys != "" {
		var keys []string
		for _, k := range strings.Split(*apiKeys, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return nil, false, fmt.Errorf("-api-keys contains no usable keys")
		}
		return keys, false, nil
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, false, fmt.Errorf("failed to generate API key: %w", err)
	}
	return []string{hex.EncodeToString(raw)}, true, nil
}
