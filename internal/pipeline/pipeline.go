// Package pipeline runs a query through the gatekeeper, librarian and
// specialist tiers, escalating only when the cheaper tier is not confident.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tierd/internal/knowledge"
	"tierd/internal/llm"
	"tierd/internal/orchestrator"
	"tierd/internal/registry"
	"tierd/internal/selector"
	"tierd/pkg/types"
)

// Tier names reported in responses.
const (
	TierGatekeeper = "gatekeeper"
	TierLibrarian  = "librarian"
	TierSpecialist = "specialist"
	TierFallback   = "fallback"
)

// LowConfidenceMarker is the token the gatekeeper is asked to emit when unsure.
const LowConfidenceMarker = "LOWCONF"

// MinAnswerLen is the length an answer must exceed to count as confident.
const MinAnswerLen = 20

// User-facing texts.
const (
	DeeperPrompt   = "I'm unable to provide a complete answer right now. Would you like me to dive deeper? This may take a moment."
	FallbackAnswer = "I can't go deeper right now. I'll keep improving this topic during idle learning."
	NoSpecialist   = "No specialist available"
)

// Admitter is the part of the orchestrator the pipeline drives.
type Admitter interface {
	EnsureSpecialistRunning(ctx context.Context, preferredName, domain string) (orchestrator.Admission, error)
	CleanupAfterSpecialist(ctx context.Context)
}

// Query is one user request.
type Query struct {
	Text          string
	Domain        string
	DiveConfirmed bool
}

// Config wires a Pipeline. Store is optional.
type Config struct {
	Registry     registry.Source
	LLM          llm.Completer
	Orchestrator Admitter
	Store        knowledge.Store

	Gatekeeper llm.Params
	Librarian  llm.Params
	Specialist llm.Params

	Logger *zerolog.Logger
}

// Pipeline handles queries. It is safe for concurrent use; specialist
// exclusivity is enforced by the Admitter.
type Pipeline struct {
	reg   registry.Source
	llm   llm.Completer
	orch  Admitter
	store knowledge.Store
	gkP   llm.Params
	libP  llm.Params
	specP llm.Params
	log   zerolog.Logger

	kbMu sync.Mutex
}

// New applies the per-tier parameter presets where unset.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		reg:   cfg.Registry,
		llm:   cfg.LLM,
		orch:  cfg.Orchestrator,
		store: cfg.Store,
		gkP:   cfg.Gatekeeper,
		libP:  cfg.Librarian,
		specP: cfg.Specialist,
		log:   zerolog.Nop(),
	}
	if p.gkP.NPredict == 0 {
		p.gkP = llm.GatekeeperParams
	}
	if p.libP.NPredict == 0 {
		p.libP = llm.LibrarianParams
	}
	if p.specP.NPredict == 0 {
		p.specP = llm.SpecialistParams
	}
	if cfg.Logger != nil {
		p.log = cfg.Logger.With().Str("component", "pipeline").Logger()
	}
	return p
}

// Handle answers q. It never returns an error; failures become a response
// with status error, and only invalid input or a missing gatekeeper produce
// one.
func (p *Pipeline) Handle(ctx context.Context, q Query) types.QueryResponse {
	start := time.Now()
	id := uuid.NewString()
	log := p.log.With().Str("query_id", id).Logger()

	resp := p.handle(ctx, log, q)
	resp.QueryID = id
	observeQuery(resp, time.Since(start))
	log.Info().Str("status", resp.Status).Str("tier", resp.Tier).Str("domain", q.Domain).
		Bool("dive_confirmed", q.DiveConfirmed).Dur("dur", time.Since(start)).Msg("query")
	return resp
}

func (p *Pipeline) handle(ctx context.Context, log zerolog.Logger, q Query) types.QueryResponse {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return errorResponse("empty input")
	}
	reg, err := p.reg.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("registry load failed")
		return errorResponse("registry unavailable: " + err.Error())
	}
	gk, ok := reg.First(types.RoleGatekeeper)
	if !ok {
		return errorResponse("gatekeeper not configured")
	}

	if ans := p.llm.Complete(ctx, gk, "Answer if certain; else say 'LOWCONF':\n"+text, p.gkP); confident(ans) {
		return okResponse(ans, TierGatekeeper)
	}
	log.Debug().Msg("gatekeeper not confident")

	if lib, ok := reg.First(types.RoleLibrarian); ok {
		if ans := p.librarian(ctx, log, lib, text); longEnough(ans) {
			refined := p.llm.Complete(ctx, gk,
				"Refine this answer with better clarity:\nUser: "+text+"\nLibrarian notes: "+ans, p.gkP)
			if longEnough(refined) {
				return okResponse(refined, TierLibrarian)
			}
			return okResponse(ans, TierLibrarian)
		}
	}

	if !q.DiveConfirmed {
		return types.QueryResponse{Status: types.StatusNeedsDeeper, Prompt: DeeperPrompt}
	}
	return p.specialist(ctx, log, reg, gk, text, q.Domain)
}

// librarian answers from the knowledge store when possible, otherwise asks
// the librarian model and stores answers that are long enough.
func (p *Pipeline) librarian(ctx context.Context, log zerolog.Logger, lib types.ModelDescriptor, text string) string {
	key := knowledge.NormalizeKey(text)
	if p.store != nil {
		if kb, err := p.store.Load(ctx); err != nil {
			log.Warn().Err(err).Msg("knowledge load failed")
		} else if ans, ok := kb[key]; ok && ans != "" {
			log.Debug().Str("key", key).Msg("knowledge hit")
			return ans
		}
	}
	ans := p.llm.Complete(ctx, lib, "Answer concisely:\n"+text+"\n", p.libP)
	if longEnough(ans) && p.store != nil {
		p.remember(ctx, log, key, ans)
	}
	return ans
}

func (p *Pipeline) remember(ctx context.Context, log zerolog.Logger, key, ans string) {
	p.kbMu.Lock()
	defer p.kbMu.Unlock()
	kb, err := p.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("knowledge load failed")
		return
	}
	kb[key] = ans
	if err := p.store.Save(ctx, kb); err != nil {
		log.Warn().Err(err).Msg("knowledge save failed")
	}
}

func (p *Pipeline) specialist(ctx context.Context, log zerolog.Logger, reg *registry.Registry, gk types.ModelDescriptor, text, domain string) types.QueryResponse {
	var preferred string
	if m, ok := selector.PickPreferred(reg, domain); ok {
		preferred = m.Name
	}
	adm, err := p.orch.EnsureSpecialistRunning(ctx, preferred, domain)
	if err != nil || !adm.Admitted {
		log.Warn().Err(err).Str("note", adm.Note).Msg("specialist not admitted")
		return p.bestEffort(ctx, gk, text, FallbackAnswer)
	}

	spec, found := reg.Get(adm.Started)
	raw := func() string {
		// the baseline must be back before the gatekeeper is asked again
		defer p.orch.CleanupAfterSpecialist(ctx)
		if !found {
			return ""
		}
		return p.llm.Complete(ctx, spec, "User question:\n"+text+"\nPlease produce a precise, helpful answer.", p.specP)
	}()
	if !found {
		log.Warn().Str("specialist", adm.Started).Msg("admitted specialist missing from registry")
		return p.bestEffort(ctx, gk, text, NoSpecialist)
	}

	if final := p.llm.Complete(ctx, gk, "Rephrase for clarity and completeness:\n"+raw, p.gkP); final != "" {
		return okResponse(final, TierSpecialist)
	}
	if raw == "" {
		return okResponse(FallbackAnswer, TierFallback)
	}
	return okResponse(raw, TierSpecialist)
}

func (p *Pipeline) bestEffort(ctx context.Context, gk types.ModelDescriptor, text, otherwise string) types.QueryResponse {
	if ans := p.llm.Complete(ctx, gk, "Provide best-effort general guidance:\n"+text, p.gkP); ans != "" {
		return okResponse(ans, TierFallback)
	}
	return okResponse(otherwise, TierFallback)
}

func confident(ans string) bool {
	return longEnough(ans) && !strings.Contains(ans, LowConfidenceMarker)
}

func longEnough(ans string) bool { return utf8.RuneCountInString(ans) > MinAnswerLen }

func okResponse(ans, tier string) types.QueryResponse {
	return types.QueryResponse{Status: types.StatusOK, Answer: ans, Tier: tier}
}

func errorResponse(msg string) types.QueryResponse {
	return types.QueryResponse{Status: types.StatusError, Message: msg}
}
