package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"optimus/internal/broadcast"
	"optimus/internal/config"
	"optimus/internal/inference"
	"optimus/internal/pipeline"
	"optimus/internal/registry"
	"optimus/internal/store"
	"optimus/internal/store/primary"
	"optimus/internal/taxonomy"
)

// Options tweak which collaborators NewApp wires up.
type Options struct {
	// UseQueue hands submitted runs to the Redis queue instead of executing
	// them on a goroutine in this process. The serve command sets this when
	// a separate worker process consumes the queue.
	UseQueue bool
}

// App holds every initialized collaborator. Commands pull what they need
// from here; nothing hangs off package-level state.
type App struct {
	Config *config.Config

	Products store.ProductStore
	Changes  store.ChangeLogStore
	Runs     store.RunStore

	JobClient   store.JobClient
	Inference   *inference.Client
	Registry    *registry.Registry
	Taxonomy    *taxonomy.Taxonomy
	Broadcaster *broadcast.Broadcaster
	Manager     *pipeline.Manager

	primaryStore *primary.StoreImpl
}

func NewApp(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	if err := a.initPrimaryStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initInference(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	if err := a.initRegistry(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	if err := a.initTaxonomy(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	if opts.UseQueue {
		if err := a.initJobClient(); err != nil {
			a.cleanupPartialInit()
			return nil, err
		}
	}
	if err := a.initPipeline(ctx); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}

	log.Debug("application initialization complete")
	return a, nil
}

// Close releases connections. Safe to call after a failed init.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.WithError(err).Warn("failed to close job client")
		}
	}
	if a.primaryStore != nil {
		a.primaryStore.Close()
	}
}

func (a *App) initPrimaryStore(ctx context.Context) error {
	ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.Primary.DSN, a.Config.Workers.Concurrency)
	if err != nil {
		return fmt.Errorf("init primary store: %w", err)
	}
	a.primaryStore = ps
	a.Products = ps
	a.Changes = ps
	a.Runs = ps
	return nil
}

func (a *App) initJobClient() error {
	jc, err := store.NewAsynqJobClient(a.Config.Redis.Address, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initInference() error {
	client, err := inference.NewClient(
		a.Config.Ollama.BaseURL,
		a.Config.Ollama.APIKey,
		time.Duration(a.Config.Ollama.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		return fmt.Errorf("init inference client: %w", err)
	}
	a.Inference = client
	return nil
}

func (a *App) initRegistry() error {
	reg, err := registry.NewFromConfig(a.Config)
	if err != nil {
		return fmt.Errorf("init model registry: %w", err)
	}
	a.Registry = reg
	return nil
}

func (a *App) initTaxonomy() error {
	tax, err := taxonomy.Load(a.Config.Taxonomy.URL, a.Config.Taxonomy.CachePath)
	if err != nil {
		// Tasks other than category_normalization still work; that task is
		// rejected at run start while the taxonomy is empty.
		log.WithError(err).Warn("failed to load category taxonomy, category normalization unavailable")
		tax = taxonomy.New(nil)
	}
	a.Taxonomy = tax
	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	cfg := a.Config

	prompts, err := pipeline.NewPromptRenderer(cfg.Pipeline.PromptDir, cfg.Pipeline.TitleMaxLength, cfg.Pipeline.MetaDescMaxLength)
	if err != nil {
		return fmt.Errorf("init prompt renderer: %w", err)
	}

	executor := pipeline.NewExecutor(pipeline.ExecutorParams{
		Invoker:   a.Inference,
		Registry:  a.Registry,
		Validator: pipeline.NewValidator(cfg.Pipeline.TitleMaxLength, cfg.Pipeline.MetaDescMaxLength),
		Fallback:  pipeline.NewRuleBasedFallback(cfg.Pipeline.TitleMaxLength, cfg.Pipeline.MetaDescMaxLength, a.Taxonomy),
		Prompts:   prompts,
		Products:  a.Products,
		Changes:   a.Changes,
		Taxonomy:  a.Taxonomy,
		Threshold: cfg.Taxonomy.ConfidenceThreshold,
		Timeout:   time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second,
	})

	a.Broadcaster = broadcast.New(cfg.Workers.QueueSize)
	pool := pipeline.NewPool(executor, a.Runs, a.Broadcaster,
		cfg.Workers.Concurrency, cfg.Pipeline.ProgressInterval, cfg.Pipeline.RunHistoryLimit)

	a.Manager = pipeline.NewManager(pipeline.ManagerParams{
		BaseCtx:  ctx,
		Pool:     pool,
		Products: a.Products,
		Runs:     a.Runs,
		Registry: a.Registry,
		Lister:   a.Inference,
		Taxonomy: a.Taxonomy,
		Queue:    a.JobClient,
	})
	return nil
}

func (a *App) cleanupPartialInit() {
	a.Close()
}
