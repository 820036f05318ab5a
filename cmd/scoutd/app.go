package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/courtvision/scoutgraph/internal/agent"
	"github.com/courtvision/scoutgraph/internal/leaguedb"
	"github.com/courtvision/scoutgraph/internal/llm"
	"github.com/courtvision/scoutgraph/internal/players"
	"github.com/courtvision/scoutgraph/internal/report"
	"github.com/courtvision/scoutgraph/internal/settings"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/session"
)

// app holds the components of a running service.
type app struct {
	settings settings.Settings
	logger   *slog.Logger
	registry *prometheus.Registry

	redis      *redis.Client
	store      checkpoint.Store
	leagues    *leaguedb.Pool
	searcher   *players.DBSearcher
	local      *report.LocalStore
	remote     *report.RedisBlobStore
	refreshers []*llm.Refresher
	service    *agent.Service
}

// newApp builds every component from s. On error, whatever was opened is
// closed again.
func newApp(ctx context.Context, s settings.Settings, logger *slog.Logger) (a *app, err error) {
	a = &app{
		settings: s,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if s.UsesRedis() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", s.Redis.Addr, err)
		}
	}

	a.store, err = openStore(s, a.redis)
	if err != nil {
		return nil, err
	}
	if err := a.store.Setup(ctx); err != nil {
		return nil, fmt.Errorf("set up checkpoint store: %w", err)
	}

	tokens, err := llm.NewTokenBudget()
	if err != nil {
		logger.Warn("tokenizer unavailable, estimating token counts", "error", err)
	}
	clients, err := a.llmClients(tokens)
	if err != nil {
		return nil, err
	}

	a.leagues = leaguedb.NewPool(s.Leagues.DataDir)
	a.searcher = players.NewDBSearcher(a.leagues, logger.With("component", "player_search"))
	deliverer, err := a.deliverer()
	if err != nil {
		return nil, err
	}

	ag := agent.New(agent.Config{
		RouterLLM:   clients[llm.TaskRouter],
		SQLLLM:      clients[llm.TaskSQL],
		ScoutLLM:    clients[llm.TaskScout],
		ResponseLLM: clients[llm.TaskResponse],
		DB:          a.leagues,
		Searcher:    a.searcher,
		Details: players.NewAPIClient(s.Players.APIBaseURL,
			players.WithTimeout(s.Players.DetailTimeout)),
		Reports:       deliverer,
		Tokens:        tokens,
		DefaultLeague: s.Leagues.DefaultLeague,
		DefaultSeason: s.Leagues.DefaultSeason,
		SearchLimit:   s.Players.SearchLimit,
		MinScore:      s.Players.MinScore,
		MaxSQLSteps:   s.LLM.MaxSQLSteps,
		MaxRows:       s.LLM.MaxRows,
	})
	graph, err := ag.Graph()
	if err != nil {
		return nil, fmt.Errorf("compile graph: %w", err)
	}

	a.service = agent.NewService(graph, a.sessions(),
		agent.WithServiceLogger(logger),
		agent.WithRunOptions(
			flowgraph.WithMaxIterations(s.Session.MaxIterations),
			flowgraph.WithObservabilityLogger(logger),
			flowgraph.WithMetrics(true),
			flowgraph.WithTracing(true),
		),
	)
	return a, nil
}

// openStore returns the configured checkpoint store. The caller runs Setup.
func openStore(s settings.Settings, client *redis.Client) (checkpoint.Store, error) {
	switch s.Checkpoint.Backend {
	case settings.BackendMemory:
		return checkpoint.NewMemoryStore(), nil
	case settings.BackendRedis:
		if client == nil {
			return nil, errors.New("checkpoint store: redis client not configured")
		}
		return checkpoint.NewRedisStore(client,
			checkpoint.WithRedisPrefix(s.Redis.Prefix+"checkpoint:"),
			checkpoint.WithRedisTTL(s.Checkpoint.TTL),
			checkpoint.WithMaxHistory(s.Checkpoint.MaxHistory),
		), nil
	default:
		store, err := checkpoint.NewSQLiteStore(s.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		return store, nil
	}
}

// llmClients builds one client per task. A key file, when configured,
// replaces the static key of the default provider.
func (a *app) llmClients(tokens *llm.TokenBudget) (map[llm.Task]llm.Client, error) {
	cfg := a.settings.LLM
	provider := llm.Provider(strings.ToLower(cfg.Provider))
	keys := map[llm.Provider]llm.KeySource{
		llm.ProviderGoogle:    llm.StaticKey(cfg.GoogleAPIKey),
		llm.ProviderOpenAI:    llm.StaticKey(cfg.OpenAIAPIKey),
		llm.ProviderAnthropic: llm.StaticKey(cfg.AnthropicAPIKey),
	}
	if cfg.KeyFile != "" {
		r, err := llm.NewRefresher(cfg.KeyFile, cfg.RefreshInterval, keys[provider].APIKey(),
			a.logger.With("component", "credentials"))
		if err != nil {
			return nil, err
		}
		keys[provider] = r
		a.refreshers = append(a.refreshers, r)
	}

	factory := llm.NewFactory(llm.FactoryConfig{
		DefaultProvider: provider,
		Keys:            keys,
		MaxAttempts:     cfg.MaxAttempts,
		CallTimeout:     cfg.CallTimeout,
		Logger:          a.logger.With("component", "llm"),
		Metrics:         llm.NewMetrics(a.registry, tokens),
	})

	models := map[llm.Task]string{
		llm.TaskRouter:   cfg.RouterModel,
		llm.TaskSQL:      cfg.SQLModel,
		llm.TaskScout:    cfg.ScoutModel,
		llm.TaskResponse: cfg.ResponseModel,
	}
	clients := make(map[llm.Task]llm.Client, len(models))
	for task, model := range models {
		c, err := factory.ForTask(task, model)
		if err != nil {
			return nil, fmt.Errorf("%s model: %w", task, err)
		}
		clients[task] = c
	}
	return clients, nil
}

func (a *app) deliverer() (*report.Deliverer, error) {
	cfg := a.settings.Reports
	renderer, err := report.NewHTMLRenderer()
	if err != nil {
		return nil, fmt.Errorf("report renderer: %w", err)
	}

	a.local = report.NewLocalStore(cfg.LocalDir)
	opts := []report.DeliverOption{
		report.WithLocal(a.local),
		report.WithFolder(cfg.Folder),
		report.WithURLTTL(cfg.URLTTL),
		report.WithDeliveryLogger(a.logger.With("component", "reports")),
		report.WithRegisterer(a.registry),
	}
	if cfg.Backend == settings.BackendRedis {
		signer, err := report.NewSigner(cfg.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("report signer: %w", err)
		}
		a.remote = report.NewRedisBlobStore(a.redis, signer,
			report.WithBlobPrefix(a.settings.Redis.Prefix+"report:"),
			report.WithPublicBaseURL(cfg.PublicBaseURL),
			report.WithRetention(cfg.URLTTL),
		)
		opts = append(opts, report.WithRemote(a.remote))
	}
	return report.NewDeliverer(renderer, opts...), nil
}

func (a *app) sessions() *session.Manager {
	opts := []session.Option{
		session.WithLockTTL(a.settings.Session.LockTTL),
		session.WithLogger(a.logger.With("component", "sessions")),
	}
	if a.settings.Session.DistributedLock {
		opts = append(opts, session.WithLocker(session.NewRedisLocker(a.redis, a.settings.Redis.Prefix)))
	}
	return session.NewManager(a.store, opts...)
}

// refresh keeps rotating credentials current until ctx is done.
func (a *app) refresh(ctx context.Context) {
	for _, r := range a.refreshers {
		go r.Run(ctx)
	}
}

// Close releases the stores and connections.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.leagues != nil {
		errs = append(errs, a.leagues.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
