package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"github.com/tanpawarit/Chative-Slot-Booking/agent/agents/assistant"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/booking"
	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/dialogue"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/llm"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/prompt"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
	"github.com/tanpawarit/Chative-Slot-Booking/agent/tool"
	configx "github.com/tanpawarit/Chative-Slot-Booking/pkg/config"
	"github.com/tanpawarit/Chative-Slot-Booking/pkg/database"
	openrouterx "github.com/tanpawarit/Chative-Slot-Booking/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Slot-Booking/pkg/qstash"
)

type AppConfig struct {
	DialogueEngine    contractx.EngineType `envconfig:"DIALOGUE_ENGINE" default:"model"`
	Timezone          string               `envconfig:"TIMEZONE" default:"Local"`
	BookingWindowDays int                  `envconfig:"BOOKING_WINDOW_DAYS" default:"2"`
}

func (c AppConfig) Window() (booking.Window, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return booking.Window{}, fmt.Errorf("%w: timezone %q: %v", contractx.ErrValidation, c.Timezone, err)
	}
	return booking.NewWindow(c.BookingWindowDays, loc), nil
}

// app is the wired process: booking database, session store and the turn pipeline.
type app struct {
	orchestrator *orchestrator.Orchestrator
	closers      []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close resource")
		}
	}
}

func buildApp(ctx context.Context) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	appCfg, err := configx.New[AppConfig]("")
	if err != nil {
		return nil, err
	}
	window, err := appCfg.Window()
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	repo := booking.NewBunRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}

	notifier, err := buildNotifier()
	if err != nil {
		return nil, err
	}
	svc, err := booking.NewService(repo, booking.WithNotifier(notifier))
	if err != nil {
		return nil, err
	}

	store, closeStore, err := buildStore(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	engine, err := buildEngine(ctx, appCfg.DialogueEngine, svc, window)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(store, engine)
	if err != nil {
		return nil, err
	}
	a.orchestrator = orch

	log.Info().
		Str("engine", engine.Name()).
		Str("timezone", window.Location.String()).
		Int("window_days", window.Days).
		Msg("slot booking assistant ready")

	ok = true
	return a, nil
}

func openDatabase(ctx context.Context) (*bun.DB, error) {
	dbCfg, err := configx.New[database.Config]("DB")
	if err != nil {
		return nil, err
	}
	return database.Open(ctx, *dbCfg)
}

func buildStore(ctx context.Context) (statex.Store, func() error, error) {
	storeCfg, err := configx.New[statex.StoreConfig]("SESSION")
	if err != nil {
		return nil, nil, err
	}
	opts := []statex.StoreOption{
		statex.WithKeyPrefix(storeCfg.KeyPrefix),
		statex.WithTTL(storeCfg.TTL),
	}
	noop := func() error { return nil }

	switch storeCfg.Backend {
	case statex.BackendMemory, "":
		return statex.NewMemoryStore(), noop, nil
	case statex.BackendRedis:
		redisCfg, err := configx.New[statex.RedisConfig]("REDIS")
		if err != nil {
			return nil, nil, err
		}
		client, err := statex.NewRedisClient(*redisCfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewRedisStore(client, opts...)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, store.Close, nil
	case statex.BackendUpstash:
		upstashCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, nil, err
		}
		store, err := statex.NewUpstashRedisStore(*upstashCfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown session backend %q", contractx.ErrValidation, storeCfg.Backend)
	}
}

func buildNotifier() (booking.Notifier, error) {
	qCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	if !qCfg.Enabled() {
		return nil, nil
	}
	client, err := qstashx.NewClient(*qCfg)
	if err != nil {
		return nil, err
	}
	return booking.NewQueueNotifier(client), nil
}

func buildEngine(
	ctx context.Context,
	kind contractx.EngineType,
	svc *booking.Service,
	window booking.Window,
) (contractx.Engine, error) {
	switch kind {
	case contractx.EngineTypeFSM:
		return dialogue.New(svc, window), nil
	case contractx.EngineTypeModel:
		return buildModelEngine(ctx, svc, window)
	default:
		return nil, fmt.Errorf("%w: unknown dialogue engine %q", contractx.ErrValidation, kind)
	}
}

func buildModelEngine(ctx context.Context, svc *booking.Service, window booking.Window) (contractx.Engine, error) {
	llmCfg, err := configx.New[llm.Config]("LLM")
	if err != nil {
		return nil, err
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}

	orCfg := llmCfg.OpenRouter()
	if llmCfg.Preflight {
		client := openrouterx.NewClient(orCfg)
		if client == nil {
			return nil, errors.New("failed to initialize openrouter client")
		}
		if err := openrouterx.Preflight(ctx, client, orCfg.Model); err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
	}

	chatModel, err := orCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	prompts := prompt.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	executor := tool.NewExecutor(tool.Deps{Slots: svc, Window: window})
	return assistant.New(ctx, llm.WrapModel(chatModel, llmCfg.Retry()), executor, assistant.Config{
		SystemPrompt:  prompts.Assistant,
		Window:        window,
		MaxIterations: llmCfg.MaxIterations,
		TurnTimeout:   llmCfg.TurnTimeout,
	})
}
