package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Slot-Booking/agent/contract"
	statex "github.com/tanpawarit/Chative-Slot-Booking/agent/state"
)

// RunEngine asks the engine for a reply. When the engine fails after a
// booking was confirmed during this turn, the booked session is still
// persisted so the conversation cannot book again.
func RunEngine(ctx context.Context, in *GraphState, engine contractx.Engine, store statex.Store) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	bookedBefore := in.Session.Booked
	reply, err := engine.Respond(ctx, in.Session, in.Text)
	if err != nil {
		if !bookedBefore && in.Session.Booked {
			saveBookedOnFailure(ctx, in, store)
		}
		return nil, fmt.Errorf("engine %s: %w", engine.Name(), err)
	}

	log.Ctx(ctx).Debug().
		Str("engine", engine.Name()).
		Str("step", string(in.Session.Step)).
		Bool("booked", in.Session.Booked).
		Msg("engine responded")

	in.Reply = reply
	return in, nil
}

func saveBookedOnFailure(ctx context.Context, in *GraphState, store statex.Store) {
	logger := log.Ctx(ctx)
	if store == nil {
		logger.Error().Msg("booked session not persisted: store is nil")
		return
	}
	// The turn may have failed on cancellation; the save must still land.
	if _, err := SaveSession(context.WithoutCancel(ctx), in, store); err != nil {
		logger.Error().Err(err).Msg("persist booked session after engine failure")
		return
	}
	logger.Warn().
		Str("date", in.Session.Date).
		Str("slot", in.Session.Slot).
		Msg("engine failed after booking; booked session persisted")
}
