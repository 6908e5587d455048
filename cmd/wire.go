package main

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/viper"

	"whatsapp-bridge/handler"
	"whatsapp-bridge/internal/config"
	"whatsapp-bridge/internal/integrations/agent"
	"whatsapp-bridge/internal/integrations/paramstore"
	"whatsapp-bridge/internal/integrations/twilio"
	"whatsapp-bridge/internal/logger"
	"whatsapp-bridge/internal/media"
	"whatsapp-bridge/internal/repository"
	"whatsapp-bridge/internal/session"
	"whatsapp-bridge/internal/storage"
	"whatsapp-bridge/internal/usecase"
)

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	handler *handler.Handler
}

// build reads configuration and wires every component.
func build(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	var archive *repository.Client
	if cfg.UsesAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		if cfg.ParamPrefix != "" {
			ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				return nil, fmt.Errorf("create SSM client: %w", err)
			}
			if err := cfg.ResolveSecrets(ctx, ps); err != nil {
				return nil, err
			}
		}
		if cfg.ArchiveTable != "" {
			archive, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.ArchiveTable)
			if err != nil {
				return nil, fmt.Errorf("create archive client: %w", err)
			}
		}
	}

	tw := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, twilio.WithBaseURL(cfg.TwilioAPIBaseURL))
	if !tw.Configured() {
		log.Warn("twilio credentials missing, replies will not be sent")
	}
	sid, token := tw.Credentials()
	fetcher := media.NewFetcher(media.Credentials{Username: sid, Password: token}, tw, media.WithMaxBytes(cfg.MediaMaxBytes))

	pipeline, err := media.NewPipeline(fetcher, media.NewNormalizer(), newUploader(cfg, log), log)
	if err != nil {
		return nil, fmt.Errorf("create media pipeline: %w", err)
	}

	sessions := session.NewStore(session.WithTTL(cfg.SessionTTL), session.WithMaxTurns(cfg.SessionMaxTurns))
	runner := agent.NewClient(cfg.AgentBackendURL, agent.WithTimeout(cfg.AgentTimeout))
	if cfg.AgentBackendURL == "" {
		log.Warn("agent backend url missing, users will get a configuration notice")
	}

	var opts []usecase.BridgeOption
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}
	bridge, err := usecase.NewBridge(sessions, pipeline, runner, tw, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bridge: %w", err)
	}

	h, err := handler.NewHandler(bridge, handler.Info{
		Service:         serviceName,
		Version:         version,
		AgentBackendURL: cfg.AgentBackendURL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create handler: %w", err)
	}

	log.Info("bridge configured",
		slog.String("storage", cfg.StorageProvider),
		slog.Bool("twilio", tw.Configured()),
		slog.Bool("archive", archive != nil),
	)
	return &app{cfg: cfg, logger: log, handler: h}, nil
}

// newUploader picks the object store backend. Missing credentials disable
// uploads instead of failing startup.
func newUploader(cfg config.Config, log *slog.Logger) storage.Uploader {
	switch cfg.StorageProvider {
	case config.StorageMinio:
		if !cfg.MinioConfigured() {
			log.Warn("minio credentials missing, media uploads disabled")
			return storage.Disabled{}
		}
		mc, err := storage.NewMinioClient(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Error("minio client unavailable, media uploads disabled", slog.Any("error", err))
			return storage.Disabled{}
		}
		return mc
	default:
		if !cfg.SupabaseConfigured() {
			log.Warn("supabase credentials missing, media uploads disabled")
			return storage.Disabled{}
		}
		sc, err := storage.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		if err != nil {
			log.Error("supabase client unavailable, media uploads disabled", slog.Any("error", err))
			return storage.Disabled{}
		}
		return sc
	}
}
