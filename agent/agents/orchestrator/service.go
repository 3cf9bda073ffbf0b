package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	nodex "github.com/tanpawarit/Chative-Slot-Booking/agent/nodes"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidCaller  = nodex.ErrInvalidCaller
)

type Orchestrator struct {
	store  statex.Store
	engine contractx.Engine
	locker *statex.Locker

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

type Option func(*Orchestrator)

func WithLocker(l *statex.Locker) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locker = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(store statex.Store, engine contractx.Engine, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if engine == nil {
		return nil, errors.New("dialogue engine is required")
	}

	o := &Orchestrator{
		store:  store,
		engine: engine,
		locker: statex.NewLocker(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

func (o *Orchestrator) Engine() string {
	return o.engine.Name()
}

// HandleMessage runs one turn for callerID. Turns for the same caller are
// serialised; different callers proceed concurrently.
func (o *Orchestrator) HandleMessage(ctx context.Context, callerID string, text string) (string, error) {
	logger := log.Ctx(ctx).With().
		Str("caller_id", callerID).
		Str("engine", o.engine.Name()).
		Logger()
	ctx = logger.WithContext(ctx)

	unlock, err := o.locker.Lock(ctx, callerID)
	if err != nil {
		return "", err
	}
	defer unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		CallerID: callerID,
		Text:     text,
	})
	if err != nil {
		logger.Error().Err(err).Msg("handle message failed")
		return "", err
	}
	return out.Reply, nil
}
