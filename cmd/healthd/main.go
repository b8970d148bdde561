package main

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"health-backend/internal/audit"
	"health-backend/internal/auth"
	"health-backend/internal/config"
	"health-backend/internal/crypto"
	"health-backend/internal/platform"
	"health-backend/internal/schema"
	"health-backend/internal/session"
	"health-backend/internal/storage"
	"health-backend/internal/tokens"
)

// Core holds the backend's long-lived components, built exactly once here and
// handed to the API layer. No package-level singletons.
type Core struct {
	Encryptor *schema.Encryptor
	Verifier  *auth.Verifier
	Sessions  *session.Service
	Users     auth.UserStore
	Audit     *audit.Log

	Profiles   *storage.EncryptedCollection
	LabReports *storage.EncryptedCollection
	Glucose    *storage.EncryptedCollection
	Chats      *storage.EncryptedCollection
	Reviews    *storage.EncryptedCollection
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	if err := platform.DisableCoreDumps(); err != nil {
		logger.Warn("could not disable core dumps", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, cleanup, err := buildCore(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	// The REST/WebSocket API mounts on this mux with core's components; only
	// the liveness probe lives here.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := core.Audit.Verify(); err != nil {
			http.Error(w, "audit chain broken", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	logger.Info("healthd listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("serve", "err", err)
		os.Exit(1)
	}
}

func buildCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, func(), error) {
	cli, err := storage.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = cli.Disconnect(context.Background()) }

	secret := []byte(cfg.FieldSecret)
	key, err := crypto.DeriveKey(secret)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	crypto.Zero(secret)
	enc := schema.NewEncryptor(key)

	users, err := auth.NewMongoUserStoreWithClient(ctx, cli, cfg.MongoDB, cfg.UsersCollection)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	tokenStore, err := tokens.NewMongoStoreWithClient(ctx, cli, cfg.MongoDB, cfg.TokensCollection)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	ledger := tokens.NewLedger(tokenStore, cfg.RefreshTTL)

	signer := auth.NewJWTSigner(signingKey(cfg, logger), cfg.JWTIssuer, cfg.AccessTTL)
	auditLog := audit.New()
	sessions := session.New(session.Config{
		RefreshPerMinute: cfg.RefreshPerMinute,
		RefreshBurst:     cfg.RefreshBurst,
	}, signer, ledger, users, auditLog, logger)

	collection := func(name string, shape *schema.Shape) *storage.EncryptedCollection {
		return storage.NewEncryptedCollection(storage.NewMongoCollection(cli, cfg.MongoDB, name), enc, shape)
	}

	return &Core{
		Encryptor:  enc,
		Verifier:   auth.NewVerifier(signer, users),
		Sessions:   sessions,
		Users:      users,
		Audit:      auditLog,
		Profiles:   collection("profiles", schema.UserProfile),
		LabReports: collection("lab_reports", schema.LabReport),
		Glucose:    collection("glucose_readings", schema.GlucoseReading),
		Chats:      collection("chat_threads", schema.ChatThread),
		Reviews:    collection("reviews", schema.Review),
	}, cleanup, nil
}

func signingKey(cfg *config.Config, logger *slog.Logger) ed25519.PrivateKey {
	if cfg.JWTSeed != "" {
		seed := sha256.Sum256([]byte(cfg.JWTSeed))
		return ed25519.NewKeyFromSeed(seed[:])
	}
	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		logger.Error("generating signing key", "err", err)
		os.Exit(1)
	}
	logger.Warn("JWT_SEED not set; access tokens will not survive a restart")
	return priv
}
