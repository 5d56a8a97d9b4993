package agent

import "time"

// Options contains configuration for one message-processing invocation.
type Options struct {
	// MaxIterations bounds the reasoning loop. When the model keeps
	// requesting tools past this cap, the loop finalizes with the last
	// completion instead of failing. Default is 10.
	MaxIterations int

	// GenerationTimeout bounds each completion call. A value of 0 means
	// no per-call timeout. Default is 30 seconds.
	GenerationTimeout time.Duration

	// HistoryLimit is the number of recent stored turns replayed when
	// seeding history. Default is 10.
	HistoryLimit int

	// SystemPrompt overrides the default system prompt.
	SystemPrompt string
}

// Option is a functional option for configuring agent execution.
type Option func(*Options)

// WithMaxIterations sets the reasoning loop iteration cap.
// Default is 10.
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		o.MaxIterations = n
	}
}

// WithGenerationTimeout sets the per-completion-call timeout.
// Default is 30 seconds. Set to 0 for no timeout.
func WithGenerationTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.GenerationTimeout = d
	}
}

// WithHistoryLimit sets how many recent stored turns seed the history.
// Default is 10.
func WithHistoryLimit(n int) Option {
	return func(o *Options) {
		o.HistoryLimit = n
	}
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// ApplyOptions applies functional options to an Options struct with defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{
		MaxIterations:     10,
		GenerationTimeout: 30 * time.Second,
		HistoryLimit:      10,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
