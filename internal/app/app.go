// Package app builds the object graph shared by the Lambda and HTTP entry
// points from configuration.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"sales-assistant/internal/assistant"
	"sales-assistant/internal/booking"
	"sales-assistant/internal/chat"
	"sales-assistant/internal/config"
	"sales-assistant/internal/integrations/bedrock"
	"sales-assistant/internal/integrations/openai"
	"sales-assistant/internal/integrations/paramstore"
	"sales-assistant/internal/knowledge"
	"sales-assistant/internal/lead"
	"sales-assistant/internal/metrics"
	"sales-assistant/internal/repository"
	"sales-assistant/internal/sinks"
	"sales-assistant/pkg/logging"
)

const (
	paramCacheTTL        = 5 * time.Minute
	knowledgeLoadTimeout = 10 * time.Second
)

// App is the wired service.
type App struct {
	Manager  *chat.Manager
	Leads    *repository.LeadStore // nil without DATABASE_URL
	Registry *prometheus.Registry

	closers []func()
}

// Close releases pooled connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same local-stack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("app: load aws config: %w", err)
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}

// Build wires every component from cfg. Optional integrations that are not
// configured are left out; only invalid configuration is an error.
func Build(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{Registry: prometheus.NewRegistry()}
	m := metrics.New(a.Registry)
	catalog := booking.DefaultCatalog()

	params, err := paramstore.New(ssm.NewFromConfig(awsCfg), paramstore.WithCacheTTL(paramCacheTTL))
	if err != nil {
		return nil, err
	}

	store, err := buildStore(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: open lead database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if a.Leads, err = repository.NewLeadStore(pool); err != nil {
			return nil, err
		}
	}

	leadSinks, err := buildSinks(cfg, awsCfg, a.Leads, logger)
	if err != nil {
		return nil, err
	}
	contact := lead.Contact{Name: cfg.ContactName, Email: cfg.ContactEmail, Phone: cfg.ContactPhone}
	dispatcher := lead.NewDispatcher(leadSinks, cfg.SinkTimeout, logger, m)
	leads, err := lead.NewService(dispatcher, contact, logger, m)
	if err != nil {
		return nil, err
	}
	logger.Info("lead sinks configured", "sinks", dispatcher.Sinks())

	gen, err := buildGenerator(ctx, cfg, awsCfg, params, catalog, logger, m)
	if err != nil {
		return nil, err
	}

	deps := chat.Deps{
		Leads:             leads,
		Store:             store,
		Lock:              buildTurnLock(ctx, cfg, logger, a),
		Logger:            logger,
		Metrics:           m,
		Contact:           contact,
		LeadDelay:         cfg.LeadReplyDelay,
		GenerationTimeout: cfg.GenerationTimeout,
		HistoryLimit:      cfg.HistoryLimit,
		MaxMessageLength:  cfg.MaxMessageLength,
	}
	if gen != nil {
		deps.Generator = gen
	}
	if a.Manager, err = chat.NewManager(deps, catalog); err != nil {
		return nil, err
	}
	return a, nil
}

func buildStore(cfg *config.Config, awsCfg aws.Config, logger *logging.Logger) (chat.Store, error) {
	if cfg.StateTable == "" {
		logger.Warn("STATE_TABLE not set; sessions are kept in memory only")
		return repository.NewMemoryStore(), nil
	}
	return repository.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.StateTable)
}

// buildTurnLock returns nil when Redis is not configured or unreachable.
func buildTurnLock(ctx context.Context, cfg *config.Config, logger *logging.Logger, a *App) chat.TurnLock {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available; turn lock disabled", "err", err)
		_ = client.Close()
		return nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	lock, err := repository.NewRedisTurnLock(client, cfg.TurnLockTTL)
	if err != nil {
		logger.Warn("turn lock disabled", "err", err)
		return nil
	}
	return lock
}

// buildSinks returns the lead sinks in dispatch order. The first webhook is
// the primary sink.
func buildSinks(cfg *config.Config, awsCfg aws.Config, store *repository.LeadStore, logger *logging.Logger) ([]lead.Sink, error) {
	company := lead.Company{
		Name:    cfg.CompanyName,
		Site:    cfg.CompanySite,
		Contact: lead.Contact{Name: cfg.ContactName, Email: cfg.ContactEmail, Phone: cfg.ContactPhone},
	}

	var out []lead.Sink
	for i, url := range cfg.LeadWebhookURLs {
		name := "n8n"
		if i > 0 {
			name = fmt.Sprintf("webhook-%d", i+1)
		}
		w, err := sinks.NewWebhook(name, url)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if cfg.LeadQueueURL != "" {
		q, err := sinks.NewQueue(sqs.NewFromConfig(awsCfg), cfg.LeadQueueURL)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if cfg.ReceiptBucket != "" {
		r, err := sinks.NewReceiptArchive(s3.NewFromConfig(awsCfg), cfg.ReceiptBucket, company)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if cfg.ReceiptEmailFrom != "" {
		sender, err := buildEmailSender(cfg, awsCfg)
		if err != nil {
			return nil, err
		}
		e, err := sinks.NewEmailReceipt(sender, company)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if store != nil {
		out = append(out, store)
	}
	if len(out) == 0 {
		logger.Warn("no lead sinks configured; captured leads are only logged")
	}
	return out, nil
}

func buildEmailSender(cfg *config.Config, awsCfg aws.Config) (sinks.EmailSender, error) {
	if cfg.SendGridAPIKey != "" {
		return sinks.NewSendGridSender(cfg.SendGridAPIKey, cfg.ReceiptEmailFrom, cfg.CompanyName)
	}
	return sinks.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.ReceiptEmailFrom)
}

// preloadKnowledge loads the reference documents once at startup. A failure
// is logged and the generator retries on the next turn.
func preloadKnowledge(ctx context.Context, kb *knowledge.Router, logger *logging.Logger) bool {
	loadCtx, cancel := context.WithTimeout(ctx, knowledgeLoadTimeout)
	defer cancel()
	if err := kb.Load(loadCtx); err != nil {
		logger.Warn("knowledge preload failed; retrying on first turn", "err", err)
		return false
	}
	return true
}

// buildGenerator returns nil in offline mode.
func buildGenerator(ctx context.Context, cfg *config.Config, awsCfg aws.Config, params *paramstore.Client, catalog *booking.Catalog, logger *logging.Logger, m *metrics.Collector) (*assistant.Generator, error) {
	if cfg.Offline() {
		logger.Warn("no language model configured; running offline")
		return nil, nil
	}

	var source knowledge.Source = knowledge.NewEmbeddedSource()
	if cfg.KnowledgeSource == "ssm" && cfg.ParamPrefix != "" {
		ps, err := knowledge.NewParamSource(params, cfg.ParamPrefix)
		if err != nil {
			return nil, err
		}
		source = ps
	}
	kb, err := knowledge.NewRouter(source, logger)
	if err != nil {
		return nil, err
	}
	preloadKnowledge(ctx, kb, logger)

	opts := []assistant.Option{
		assistant.WithLogger(logger),
		assistant.WithMetrics(m),
		assistant.WithCompanyName(cfg.CompanyName),
	}
	var providers []assistant.Provider
	if cfg.ParamPrefix != "" {
		client, err := openai.NewClient(params, cfg.ParamPrefix,
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithMaxTokens(cfg.OpenAIMaxTokens),
			openai.WithTemperature(cfg.OpenAITemperature),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, assistant.Provider{Name: "openai", Model: cfg.OpenAIModel, Client: client})
		if cfg.ModerationEnabled {
			opts = append(opts, assistant.WithModerator(client))
		}
	}
	if cfg.BedrockModelID != "" {
		client, err := bedrock.NewClient(bedrockruntime.NewFromConfig(awsCfg),
			bedrock.WithMaxTokens(cfg.OpenAIMaxTokens),
			bedrock.WithTemperature(cfg.OpenAITemperature),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, assistant.Provider{Name: "bedrock", Model: cfg.BedrockModelID, Client: client})
	}
	return assistant.NewGenerator(providers, kb, catalog, opts...)
}
