package fedigraph

import (
	"log/slog"

	"fedigraph/internal/fetch"
	"fedigraph/internal/materialize"
	"fedigraph/internal/metrics"
)

type options struct {
	fetcher fetch.Fetcher
	parser  materialize.Parser
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*options)

// WithFetcher replaces the default archive download.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithOffline never downloads; the collection must already be present.
func WithOffline() Option {
	return WithFetcher(fetch.Local{})
}

// WithParser replaces the CSV deserializer.
func WithParser(p materialize.Parser) Option {
	return func(o *options) { o.parser = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
