package llm

import (
	"fmt"
	"sort"
	"sync"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Model describes a supported model identifier. RateLimited models are run
// in small batches with a pause between them.
type Model struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	RateLimited bool   `json:"rate_limited"`
}

// KnownModels are the identifiers accepted by the model query parameter.
var KnownModels = []Model{
	{ID: "claude-sonnet-4-20250514", Provider: ProviderAnthropic, RateLimited: true},
	{ID: "claude-3-5-haiku-latest", Provider: ProviderAnthropic, RateLimited: true},
	{ID: "gemini-2.5-flash", Provider: ProviderGemini, RateLimited: true},
	{ID: "gpt-4o-mini", Provider: ProviderOpenAI},
	{ID: "gpt-4.1-mini", Provider: ProviderOpenAI},
}

// LookupKnown finds a model in KnownModels.
func LookupKnown(id string) (Model, bool) {
	for _, m := range KnownModels {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

type entry struct {
	model    Model
	provider Provider
}

// Registry maps model identifiers to configured providers.
type Registry struct {
	mu           sync.RWMutex
	entries      map[string]entry
	defaultModel string
}

func NewRegistry(defaultModel string) *Registry {
	return &Registry{entries: make(map[string]entry), defaultModel: defaultModel}
}

func (r *Registry) Register(m Model, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[m.ID] = entry{model: m, provider: p}
}

// Resolve returns the model and provider for id; an empty id selects the default.
func (r *Registry) Resolve(id string) (Model, Provider, error) {
	if id == "" {
		id = r.defaultModel
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Model{}, nil, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return e.model, e.provider, nil
}

// Default returns the default model identifier.
func (r *Registry) Default() string {
	return r.defaultModel
}

// Models lists the registered models sorted by identifier.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.model)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
