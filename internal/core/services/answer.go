package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure AnswerService implements the interfaces.
var (
	_ driving.AnswerService   = (*AnswerService)(nil)
	_ driven.PromptStoreAware = (*AnswerService)(nil)
)

// Fixed responses.
const (
	cannedNoContext   = "I couldn't find anything in your notes about that."
	cannedUnavailable = "The answer service is unavailable right now."
	degradedMessage   = "The answer service has reached its usage limit."
	sourcesIntro      = " These notes look relevant: "
)

const (
	defaultAnswerSystem = `You answer questions using only the user's notes provided as context.
Cite the source titles you rely on. If the notes do not contain the answer, say so.`

	defaultAnswerPrompt = `Context from the user's notes:

%s

Question: %s
Answer:`
)

// Streaming shape.
const (
	typingWordsPerDelta = 3
	typingDelay         = 30 * time.Millisecond
	maxDeltaRunes       = 256
	streamBuffer        = 16
)

// chunkRetriever is the part of the search service answers draw from.
type chunkRetriever interface {
	RetrieveChunks(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.RankedChunk, error)
}

// AnswerService answers questions grounded in retrieved note chunks.
type AnswerService struct {
	retriever chunkRetriever
	assembler *ContextAssembler
	primary   driven.CompletionService
	fallback  driven.CompletionService
	prompts   driven.PromptStore
	defaults  domain.RetrievalSettings
	delay     time.Duration
	log       *logger.Logger
}

// NewAnswerService creates an answer service. Both completion services
// are optional; without a primary every answer is canned.
func NewAnswerService(
	retriever chunkRetriever,
	primary, fallback driven.CompletionService,
	defaults domain.RetrievalSettings,
) *AnswerService {
	return &AnswerService{
		retriever: retriever,
		assembler: NewContextAssembler(),
		primary:   primary,
		fallback:  fallback,
		defaults:  defaults,
		delay:     typingDelay,
		log:       logger.For("answer"),
	}
}

// SetPromptStore sets the store for the answer prompts.
func (s *AnswerService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// prepared is a question ready to send to a provider.
type prepared struct {
	ctx domain.AssembledContext
	req domain.CompletionRequest
}

func (s *AnswerService) prepare(ctx context.Context, question string, opts domain.AskOptions) (*prepared, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	budget := firstPositive(opts.ContextBudget, s.defaults.ContextBudget)
	maxTokens := firstPositive(opts.MaxTokens, s.defaults.MaxCompletionTokens)
	top := firstPositive(opts.TopNotes, s.defaults.TopNotes, defaultTopNotes)

	chunks, err := s.retriever.RetrieveChunks(ctx, question, domain.SearchOptions{
		OwnerID:      opts.OwnerID,
		Limit:        top,
		SkipFeedback: true,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}

	assembled := s.assembler.Assemble(chunks, budget)
	s.log.Debug("context: %d chunks, %d tokens of %d", len(assembled.Citations), assembled.Tokens, budget)

	return &prepared{
		ctx: assembled,
		req: domain.CompletionRequest{
			System:    s.prompt(driven.PromptAnswerSystem, defaultAnswerSystem),
			Prompt:    fmt.Sprintf(s.answerTemplate(), assembled.Text, question),
			MaxTokens: maxTokens,
		},
	}, nil
}

// answerTemplate returns the user prompt template. An override must take
// the context and the question as its only two verbs, both %s.
func (s *AnswerService) answerTemplate() string {
	tpl := s.prompt(driven.PromptAnswer, defaultAnswerPrompt)
	if !validAnswerTemplate(tpl) {
		s.log.Warn("answer prompt override needs exactly two %%s verbs, using the default")
		return defaultAnswerPrompt
	}
	return tpl
}

func validAnswerTemplate(tpl string) bool {
	rest := strings.ReplaceAll(tpl, "%%", "")
	if strings.Count(rest, "%s") != 2 {
		return false
	}
	rest = strings.ReplaceAll(rest, "%s", "")
	return !strings.Contains(rest, "%")
}

func (s *AnswerService) prompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	p, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		return fallback
	}
	return p
}

// Ask returns a complete answer. Provider failures produce canned or
// degraded answers rather than errors.
func (s *AnswerService) Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error) {
	p, err := s.prepare(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	if text, source, canned := s.cannedFor(p); canned {
		return s.answer(p, text, source), nil
	}

	text, err := s.primary.Complete(ctx, p.req)
	if err == nil {
		return s.answer(p, text, domain.AnswerFromPrimary), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		s.log.Warn("completion failed: %v", err)
		return s.answer(p, withSources(cannedUnavailable, p.ctx), domain.AnswerCanned), nil
	}

	if s.fallback == nil {
		s.log.Warn("completion quota exceeded, no fallback configured")
		return s.answer(p, withSources(degradedMessage, p.ctx), domain.AnswerDegraded), nil
	}
	s.log.Warn("completion quota exceeded, switching to %s", s.fallback.ModelName())
	text, err = s.fallback.Complete(ctx, p.req)
	if err == nil {
		return s.answer(p, text, domain.AnswerFromFallback), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.log.Warn("fallback completion failed: %v", err)
	return s.answer(p, withSources(degradedMessage, p.ctx), domain.AnswerDegraded), nil
}

// cannedFor returns the fixed response for requests that never reach a provider.
func (s *AnswerService) cannedFor(p *prepared) (string, domain.AnswerSource, bool) {
	if p.ctx.IsEmpty() {
		return cannedNoContext, domain.AnswerCanned, true
	}
	if s.primary == nil {
		return withSources(cannedUnavailable, p.ctx), domain.AnswerCanned, true
	}
	return "", "", false
}

func (s *AnswerService) answer(p *prepared, text string, source domain.AnswerSource) *domain.Answer {
	return &domain.Answer{
		Text:      strings.TrimSpace(text),
		Citations: p.ctx.Citations,
		Source:    source,
		Context:   p.ctx,
	}
}

// AskStream streams an answer. Canned responses are replayed a few
// words at a time. The channel closes after the Done event or on cancellation.
func (s *AnswerService) AskStream(
	ctx context.Context, question string, opts domain.AskOptions,
) <-chan domain.AnswerEvent {
	out := make(chan domain.AnswerEvent, streamBuffer)

	go func() {
		defer close(out)
		send := func(ev domain.AnswerEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		p, err := s.prepare(ctx, question, opts)
		if err != nil {
			send(domain.AnswerEvent{Done: true, Err: err})
			return
		}
		if text, source, canned := s.cannedFor(p); canned {
			s.typeOut(ctx, p, text, source, send)
			return
		}

		source, err := s.streamFrom(ctx, p, send)
		switch {
		case err == nil:
			send(domain.AnswerEvent{Done: true, Citations: p.ctx.Citations, Source: source})
		case ctx.Err() != nil:
		case errors.Is(err, errStreamStarted):
			send(domain.AnswerEvent{Done: true, Citations: p.ctx.Citations, Source: source, Err: err})
		case errors.Is(err, domain.ErrQuotaExceeded):
			s.typeOut(ctx, p, withSources(degradedMessage, p.ctx), domain.AnswerDegraded, send)
		default:
			s.typeOut(ctx, p, withSources(cannedUnavailable, p.ctx), domain.AnswerCanned, send)
		}
	}()

	return out
}

// errStreamStarted marks a provider failure after output was already sent,
// when switching providers would duplicate text.
var errStreamStarted = errors.New("stream interrupted")

// streamFrom streams from the primary provider, switching to the fallback
// once on a quota rejection that happens before any output.
func (s *AnswerService) streamFrom(
	ctx context.Context, p *prepared, send func(domain.AnswerEvent) bool,
) (domain.AnswerSource, error) {
	try := func(svc driven.CompletionService, source domain.AnswerSource) (bool, error) {
		started := false
		err := svc.Stream(ctx, p.req, func(delta string) error {
			for _, part := range splitDelta(delta, maxDeltaRunes) {
				started = true
				if !send(domain.AnswerEvent{Delta: part, Source: source}) {
					return ctx.Err()
				}
			}
			return nil
		})
		return started, err
	}

	started, err := try(s.primary, domain.AnswerFromPrimary)
	if err == nil {
		return domain.AnswerFromPrimary, nil
	}
	if started {
		return domain.AnswerFromPrimary, fmt.Errorf("%w: %w", errStreamStarted, err)
	}
	if !errors.Is(err, domain.ErrQuotaExceeded) || s.fallback == nil {
		return "", err
	}

	s.log.Warn("completion quota exceeded, switching to %s", s.fallback.ModelName())
	started, err = try(s.fallback, domain.AnswerFromFallback)
	if err == nil {
		return domain.AnswerFromFallback, nil
	}
	if started {
		return domain.AnswerFromFallback, fmt.Errorf("%w: %w", errStreamStarted, err)
	}
	// Any fallback failure ends in the degraded message.
	return "", fmt.Errorf("fallback: %w", domain.ErrQuotaExceeded)
}

// typeOut replays a fixed text in small word groups.
func (s *AnswerService) typeOut(
	ctx context.Context, p *prepared, text string, source domain.AnswerSource, send func(domain.AnswerEvent) bool,
) {
	words := strings.Fields(text)
	for i := 0; i < len(words); i += typingWordsPerDelta {
		end := min(i+typingWordsPerDelta, len(words))
		delta := strings.Join(words[i:end], " ")
		if end < len(words) {
			delta += " "
		}
		if !send(domain.AnswerEvent{Delta: delta, Source: source}) {
			return
		}
		if s.delay > 0 && end < len(words) {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return
			}
		}
	}
	send(domain.AnswerEvent{Done: true, Citations: p.ctx.Citations, Source: source})
}

// withSources appends the cited note labels to a fixed message.
func withSources(msg string, c domain.AssembledContext) string {
	if c.IsEmpty() {
		return msg
	}
	seen := make(map[string]bool)
	var labels []string
	for _, cite := range c.Citations {
		if !seen[cite.Title] {
			seen[cite.Title] = true
			labels = append(labels, cite.Title)
		}
	}
	return msg + sourcesIntro + strings.Join(labels, "; ") + "."
}

// splitDelta bounds each streamed increment.
func splitDelta(s string, maxRunes int) []string {
	r := []rune(s)
	if len(r) <= maxRunes {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	var parts []string
	for len(r) > maxRunes {
		parts = append(parts, string(r[:maxRunes]))
		r = r[maxRunes:]
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
