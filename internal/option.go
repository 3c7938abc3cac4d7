package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	apply  bool
	out    io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithApply switches from preview to apply mode.
func WithApply(apply bool) Option {
	return func(a *application) {
		a.apply = apply
	}
}

// WithOutput redirects the human-readable change and summary output.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
