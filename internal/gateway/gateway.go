// Package gateway dispatches uniform chat requests to the adapter named by the
// request's provider field.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

// Kind is the closed set of providers the gateway knows.
type Kind string

const (
	OpenRouter Kind = "openrouter"
	Anthropic  Kind = "anthropic"
	OpenAI     Kind = "openai"
	Gemini     Kind = "gemini"
	Groq       Kind = "groq"
	DeepSeek   Kind = "deepseek"
)

// Kinds lists every known provider.
var Kinds = []Kind{OpenRouter, Anthropic, OpenAI, Gemini, Groq, DeepSeek}

const (
	DefaultModel    = "anthropic/claude-sonnet-4"
	DefaultProvider = string(OpenRouter)
)

// ParseKind matches a provider name case-insensitively.
func ParseKind(name string) (Kind, bool) {
	k := Kind(strings.ToLower(name))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

type Gateway struct {
	adapters map[Kind]provider.Provider
	breakers map[Kind]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

type Option func(*Gateway)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithCircuitBreakers guards each adapter with a breaker that opens after three
// consecutive transport failures or 5xx replies. Vendor 4xx replies, which
// usually mean a bad caller key, never count against it.
func WithCircuitBreakers() Option {
	return func(g *Gateway) {
		g.breakers = make(map[Kind]*gobreaker.CircuitBreaker, len(Kinds))
		for _, k := range Kinds {
			g.breakers[k] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        string(k),
				MaxRequests: 3,
				Interval:    5 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
				IsSuccessful: func(err error) bool {
					return err == nil || !provider.IsServerSide(err)
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					g.logger.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
				},
			})
		}
	}
}

// New builds a gateway. adapters must contain every Kind.
func New(adapters map[Kind]provider.Provider, opts ...Option) (*Gateway, error) {
	var missing []string
	for _, k := range Kinds {
		if adapters[k] == nil {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing adapters: %s", strings.Join(missing, ", "))
	}

	g := &Gateway{
		adapters: adapters,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Complete validates req, applies the default provider and model, and calls
// the matching adapter. An unknown provider is tried once against OpenRouter;
// if that fails too the error says so. req itself is never modified.
func (g *Gateway) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := req.Clone()
	if r.Model == "" {
		r.Model = DefaultModel
	}
	if r.Provider == "" {
		r.Provider = DefaultProvider
	}

	kind, ok := ParseKind(r.Provider)
	if !ok {
		g.logger.Warn("unknown provider, falling back to openrouter", "provider", r.Provider)
		resp, err := g.execute(ctx, OpenRouter, r)
		if err != nil {
			return nil, &provider.UnknownProviderError{Provider: r.Provider, Err: err}
		}
		return resp, nil
	}

	return g.execute(ctx, kind, r)
}

func (g *Gateway) execute(ctx context.Context, kind Kind, req *provider.Request) (*provider.Response, error) {
	p := g.adapters[kind]

	cb := g.breakers[kind]
	if cb == nil {
		return p.Complete(ctx, req)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		return p.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s circuit open: %w", kind, err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*provider.Response), nil
}
