package s3

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/NewsFlow/services/listener-service/config"
)

// Module provides the S3/MinIO client for FX. The client is nil when S3 is not configured.
var Module = fx.Module("s3",
	fx.Provide(newConfig),
	fx.Provide(NewClientFx),
)

func newConfig(cfg *config.S3Config) *Config {
	return &Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	}
}

// NewClientFx creates the client and makes sure the bucket exists on start
func NewClientFx(lc fx.Lifecycle, s3Cfg *config.S3Config, cfg *Config, logger zerolog.Logger) (*Client, error) {
	if !s3Cfg.Enabled() {
		logger.Info().Msg("S3 archiving disabled")
		return nil, nil
	}

	client, err := NewClient(cfg, logger.With().Str("component", "s3").Logger())
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().Msg("initializing S3/MinIO client...")
			if err := client.EnsureBucket(ctx); err != nil {
				return err
			}
			logger.Info().Msg("S3/MinIO client initialized successfully")
			return nil
		},
	})

	return client, nil
}
