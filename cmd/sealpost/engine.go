package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/sealpost/core/pkg/attachseal"
	"github.com/sealpost/core/pkg/audit"
	"github.com/sealpost/core/pkg/blob"
	"github.com/sealpost/core/pkg/boundary"
	"github.com/sealpost/core/pkg/capsule"
	"github.com/sealpost/core/pkg/config"
	"github.com/sealpost/core/pkg/contracts"
	"github.com/sealpost/core/pkg/crypto"
	"github.com/sealpost/core/pkg/dispatch"
	"github.com/sealpost/core/pkg/envelope"
	"github.com/sealpost/core/pkg/identity"
	"github.com/sealpost/core/pkg/isolation"
	"github.com/sealpost/core/pkg/observability"
	"github.com/sealpost/core/pkg/outbox"
	"github.com/sealpost/core/pkg/parser"
	"github.com/sealpost/core/pkg/store"
	"github.com/sealpost/core/pkg/transport"
)

// engine holds the wired components of one pipeline instance.
type engine struct {
	kv        store.KV
	model     *boundary.Model
	generator *envelope.Generator
	builder   *capsule.Builder
	manager   *outbox.Manager
	pipeline  *dispatch.Pipeline
	close     func()
}

// buildEngine wires stores, boundary model, envelope generator, capsule
// builder, outbox and transport into a dispatch pipeline. The outbox
// lives in Postgres when DatabaseURL is set, otherwise everything shares
// the local SQLite file.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	logger := slog.Default().With("component", "engine")
	auditLog := audit.NewLogger()

	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	closers := []func() error{db.Close}

	kv, err := store.NewSQLiteKV(db)
	if err != nil {
		return nil, fmt.Errorf("init kv store: %w", err)
	}

	var outboxStore outbox.Store
	if cfg.DatabaseURL != "" {
		pg, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		outboxStore, err = store.NewPostgresOutboxStore(pg)
		if err != nil {
			return nil, fmt.Errorf("init postgres outbox: %w", err)
		}
		logger.Info("outbox store: postgres")
	} else {
		outboxStore, err = store.NewSQLiteOutboxStore(db)
		if err != nil {
			return nil, fmt.Errorf("init sqlite outbox: %w", err)
		}
	}

	var blobs blob.Store
	if cfg.S3Bucket != "" {
		blobs, err = blob.NewS3Store(ctx, blob.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 blob store: %w", err)
		}
	} else {
		blobs, err = blob.NewFileStore(cfg.BlobDir)
		if err != nil {
			return nil, fmt.Errorf("init blob store: %w", err)
		}
	}

	signer, err := crypto.NewEd25519Signer("sealpost-local")
	if err != nil {
		return nil, fmt.Errorf("init signer: %w", err)
	}
	provider := identity.NewSignerProvider(signer)

	var guard envelope.ReplayGuard
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, client.Close)
		guard = envelope.NewRedisReplayGuard(client)
	} else {
		guard = envelope.NewMemoryReplayGuard()
	}

	genOpts := []envelope.Option{
		envelope.WithSigner(signer),
		envelope.WithReplayGuard(guard),
		envelope.WithAudit(auditLog),
	}

	// A configured handshake secret binds this session's envelopes to a
	// minted handshake token; recipients holding the token can verify which
	// handshake an envelope was generated under.
	if cfg.HandshakeSecret != "" {
		handshakes := identity.NewHandshakeManager([]byte(cfg.HandshakeSecret))
		senderFP, err := provider.SenderFingerprint(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve sender fingerprint: %w", err)
		}
		token, err := handshakes.Mint(uuid.NewString(), senderFP, "", envelope.DefaultConsentLifetime)
		if err != nil {
			return nil, fmt.Errorf("mint handshake: %w", err)
		}
		claims, err := handshakes.Validate(token)
		if err != nil {
			return nil, fmt.Errorf("validate handshake: %w", err)
		}
		genOpts = append(genOpts, envelope.WithHandshake(claims.ID))
		logger.Info("session handshake minted", "handshake_id", claims.ID)
	}

	generator := envelope.NewGenerator(provider, genOpts...)

	model := boundary.NewModel()
	model.OnChange(generator)
	if _, err := model.LoadFrom(ctx, kv); err != nil {
		return nil, fmt.Errorf("load boundary declaration: %w", err)
	}

	builder := capsule.NewBuilder(model, generator)
	if ingestor, err := buildIngestor(cfg, blobs); err != nil {
		logger.Warn("attachment ingestion degraded", "error", err)
	} else {
		builder = builder.WithIngestor(ingestor)
	}

	manager := outbox.NewManager(outboxStore, outbox.WithAudit(auditLog))

	registry, err := buildRegistry(cfg, blobs)
	if err != nil {
		return nil, err
	}

	obsConfig := observability.DefaultConfig()
	obsConfig.ServiceVersion = version
	obsConfig.Enabled = cfg.OTLPEndpoint != ""
	if cfg.OTLPEndpoint != "" {
		obsConfig.OTLPEndpoint = cfg.OTLPEndpoint
	}
	obs, err := observability.New(ctx, obsConfig)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	closers = append(closers, func() error { return obs.Shutdown(context.Background()) })

	pipeline := dispatch.NewPipeline(
		model,
		generator,
		builder,
		isolation.NewGuard(auditLog),
		manager,
		registry,
	).WithAudit(auditLog).WithObservability(obs)

	return &engine{
		kv:        kv,
		model:     model,
		generator: generator,
		builder:   builder,
		manager:   manager,
		pipeline:  pipeline,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		},
	}, nil
}

// buildIngestor assembles the attachment path: sealing, blob storage and
// the parser collaborator. The sealing key is per process; sealed blobs
// outlive the process only as opaque storage.
func buildIngestor(cfg *config.Config, blobs blob.Store) (*capsule.Ingestor, error) {
	key, err := attachseal.GenerateKey()
	if err != nil {
		return nil, err
	}
	sealer, err := attachseal.NewSealer(key)
	if err != nil {
		return nil, err
	}

	var p capsule.Parser
	if cfg.ParserURL != "" {
		client, err := parser.NewClient(cfg.ParserURL)
		if err != nil {
			return nil, err
		}
		p = client
	}
	return capsule.NewIngestor(sealer, blobs, p), nil
}

// buildRegistry registers the built-in senders and overlays any delivery
// profiles found in the profiles directory.
func buildRegistry(cfg *config.Config, blobs blob.Store) (*transport.Registry, error) {
	registry := transport.NewRegistry()
	registry.Register(transport.ChatSender{})
	registry.Register(transport.NewDownloadSender(blobs))

	profiles, err := config.LoadAllProfiles(cfg.ProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("load delivery profiles: %w", err)
	}
	for _, profile := range profiles {
		if profile.Endpoint == "" {
			continue
		}
		var sender transport.Sender = transport.NewHTTPSender(
			contracts.DeliveryMethod(profile.Method), profile.Endpoint)
		if profile.RatePerMinute > 0 {
			sender = transport.NewRateLimited(sender,
				rate.Limit(float64(profile.RatePerMinute)/60.0), profile.RatePerMinute)
		}
		registry.Register(sender)
	}
	return registry, nil
}
