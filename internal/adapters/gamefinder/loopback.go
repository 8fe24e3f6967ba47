// Package gamefinder provides matchmakers for the party server.
package gamefinder

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/core"
)

// Loopback "finds" a game for every request after Delay. It stands in for
// a real matchmaking backend.
type Loopback struct {
	Delay time.Duration
	// Found, if set, is called with every request that completes.
	Found func(req core.GameFinderRequest)
}

var _ core.Matchmaker = (*Loopback)(nil)

func (l *Loopback) FindGame(ctx context.Context, req core.GameFinderRequest) error {
	log.Info().
		Str("module", "adapters.gamefinder").
		Str("request_id", req.RequestID).
		Str("party_id", string(req.PartyID)).
		Str("game_finder", req.GameFinderName).
		Int("members", len(req.Members)).
		Msg("searching")

	t := time.NewTimer(l.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}

	log.Info().Str("module", "adapters.gamefinder").Str("request_id", req.RequestID).Msg("game found")
	if l.Found != nil {
		l.Found(req)
	}
	return nil
}
