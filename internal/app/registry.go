package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

// codeAlphabet drops 0/O and 1/I. Its length divides 256, so mapping
// random bytes onto it is unbiased.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultCodeLength = 6
	maxCodeLength     = 16
	codeAttempts      = 16
)

var ErrCodeSpaceExhausted = errors.New("no free invitation code")

// Registry owns every live party, which party each session is in, and the
// process-wide invitation codes. A party is reclaimed once its last member
// leaves.
type Registry struct {
	mu       sync.RWMutex
	parties  map[domain.PartyID]*party.Party
	bindings map[core.SessionID]domain.PartyID
	codes    map[string]domain.PartyID
	codeLen  int
	opts     party.Options
}

var _ party.InvitationCodes = (*Registry)(nil)

// NewRegistry creates parties from the opts template. opts.Codes is
// replaced by the registry itself.
func NewRegistry(opts party.Options, codeLength int) *Registry {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &Registry{
		parties:  make(map[domain.PartyID]*party.Party),
		bindings: make(map[core.SessionID]domain.PartyID),
		codes:    make(map[string]domain.PartyID),
		codeLen:  min(codeLength, maxCodeLength),
		opts:     opts,
	}
}

func (r *Registry) CreateParty(ctx context.Context, settings domain.PartySettings) (*party.Party, error) {
	id := domain.PartyID(uuid.NewString())
	opts := r.opts
	opts.Codes = r
	onQuit := opts.Hooks.OnQuit
	opts.Hooks.OnQuit = func(ctx context.Context, ev party.QuitEvent) {
		if onQuit != nil {
			onQuit(ctx, ev)
		}
		if ev.Empty {
			// CloseIfEmpty waits for this hook, so it cannot run here.
			go r.reclaim(ev.PartyID)
		}
	}

	p := party.New(id, opts)
	if err := p.Configure(ctx, settings); err != nil {
		p.Close()
		return nil, fmt.Errorf("configure party: %w", err)
	}

	r.mu.Lock()
	r.parties[id] = p
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("party_id", string(id)).Msg("party created")
	return p, nil
}

func (r *Registry) Get(id domain.PartyID) (*party.Party, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parties[id]
	return p, ok
}

func (r *Registry) List() []domain.PartyID {
	r.mu.RLock()
	out := make([]domain.PartyID, 0, len(r.parties))
	for id := range r.parties {
		out = append(out, id)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Remove closes the party and forgets it.
func (r *Registry) Remove(id domain.PartyID) {
	p, ok := r.Get(id)
	if !ok {
		return
	}
	p.Close()
	r.forget(id)
}

// CloseAll closes every party concurrently.
func (r *Registry) CloseAll() {
	var wg conc.WaitGroup
	for _, id := range r.List() {
		wg.Go(func() { r.Remove(id) })
	}
	wg.Wait()
}

func (r *Registry) reclaim(id domain.PartyID) {
	p, ok := r.Get(id)
	if !ok {
		return
	}
	closed, err := p.CloseIfEmpty(context.Background())
	if err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("party_id", string(id)).Msg("reclaim failed")
		return
	}
	if closed {
		r.forget(id)
		log.Info().Str("module", "app.registry").Str("party_id", string(id)).Msg("empty party reclaimed")
	}
}

func (r *Registry) forget(id domain.PartyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parties, id)
	for sid, pid := range r.bindings {
		if pid == id {
			delete(r.bindings, sid)
		}
	}
	for code, pid := range r.codes {
		if pid == id {
			delete(r.codes, code)
		}
	}
}

func (r *Registry) Bind(sid core.SessionID, id domain.PartyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[sid] = id
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("party_id", string(id)).Msg("bound session")
}

// Unbind drops the session's binding and reports the party it was in.
func (r *Registry) Unbind(sid core.SessionID) (domain.PartyID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bindings[sid]
	if ok {
		delete(r.bindings, sid)
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	}
	return id, ok
}

func (r *Registry) PartyOf(sid core.SessionID) (*party.Party, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bindings[sid]
	if !ok {
		return nil, false
	}
	p, ok := r.parties[id]
	return p, ok
}

// Create implements party.InvitationCodes.
func (r *Registry) Create(id domain.PartyID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for range codeAttempts {
		code := r.newCode()
		if _, taken := r.codes[code]; taken {
			continue
		}
		r.codes[code] = id
		log.Info().Str("module", "app.registry").Str("party_id", string(id)).Str("code", code).Msg("invitation code created")
		return code, nil
	}
	return "", ErrCodeSpaceExhausted
}

// Release implements party.InvitationCodes.
func (r *Registry) Release(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, code)
}

// ResolveInvitationCode is case-insensitive.
func (r *Registry) ResolveInvitationCode(code string) (domain.PartyID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[strings.ToUpper(strings.TrimSpace(code))]
	return id, ok
}

func (r *Registry) newCode() string {
	out := make([]byte, 0, r.codeLen)
	for len(out) < r.codeLen {
		b := uuid.New()
		for i, c := range b {
			// Bytes 6 and 8 carry the version and variant bits.
			if i == 6 || i == 8 || len(out) == r.codeLen {
				continue
			}
			out = append(out, codeAlphabet[int(c)%len(codeAlphabet)])
		}
	}
	return string(out)
}
