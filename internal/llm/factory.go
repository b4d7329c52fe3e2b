package llm

import "fmt"

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// NewFactory creates an empty factory; callers register constructors.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{constructors: make(map[string]ProviderConstructor)}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. The returned provider is wrapped
// with retry logic when timeout or retries are configured.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (registered: %v)", cfg.Provider, f.names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 || cfg.MaxRetries > 0 {
		return WrapWithRetry(provider, cfg), nil
	}
	return provider, nil
}

func (f *ProviderFactory) names() []string {
	var out []string
	for k := range f.constructors {
		out = append(out, k)
	}
	return out
}
