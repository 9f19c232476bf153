// Package fedigraph loads snapshots of the Fediverse interaction graph
// dataset.
//
// A Loader owns the process-local state: it makes sure the collection is
// present under its root (fetching it on first use), indexes it, and then
// resolves (software, graph type, date) selections to in-memory graphs.
//
//	l, err := fedigraph.New(ctx, "/var/cache/fedigraph")
//	g, err := l.GetGraph("peertube", "federation", "") // latest snapshot
package fedigraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"fedigraph/internal/catalog"
	"fedigraph/internal/config"
	"fedigraph/internal/fetch"
	"fedigraph/internal/graph"
	"fedigraph/internal/logging"
	"fedigraph/internal/materialize"
	"fedigraph/internal/metrics"
	"fedigraph/internal/resolver"
)

type Loader struct {
	root         string
	fetcher      fetch.Fetcher
	materializer *materialize.Materializer
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu      sync.RWMutex
	catalog *catalog.Catalog
}

// New ensures the collection exists under root and indexes it. The fetch
// runs once per construction; share a fetch.Once through WithFetcher to
// limit it to once per process across several loaders.
//
// Without WithFetcher the collection is downloaded from config.DefaultURL,
// authenticated with KAGGLE_USERNAME and KAGGLE_KEY when they are set.
func New(ctx context.Context, root string, opts ...Option) (*Loader, error) {
	o := options{
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = defaultFetcher(config.DefaultURL, o)
	}

	l := &Loader{
		root:         root,
		fetcher:      o.fetcher,
		materializer: materialize.New(o.parser),
		logger:       o.logger,
		metrics:      o.metrics,
	}

	if err := l.fetcher.EnsureLocal(ctx, root); err != nil {
		return nil, err
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// RemoveDataset deletes the local collection under root so that the next
// New downloads it again.
func RemoveDataset(root string) error {
	return fetch.Remove(root)
}

func defaultFetcher(url string, o options) fetch.Fetcher {
	return fetch.NewHTTPFetcher(url,
		fetch.WithCredentials(os.Getenv("KAGGLE_USERNAME"), os.Getenv("KAGGLE_KEY")),
		fetch.WithLogger(o.logger),
		fetch.WithMetrics(o.metrics),
	)
}

// Root returns the local dataset directory.
func (l *Loader) Root() string { return l.root }

// Reload rebuilds the index from disk. The previous index stays in use if
// the rebuild fails.
func (l *Loader) Reload() error {
	start := time.Now()
	c, err := catalog.Build(l.root)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.catalog = c
	l.mu.Unlock()

	l.logger.Info("dataset indexed", "root", l.root, "artifacts", c.Len(), "software", len(c.Software()), "elapsed", time.Since(start).Round(time.Microsecond))
	return nil
}

func (l *Loader) index() *catalog.Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.catalog
}

// Entries returns every indexed artifact.
func (l *Loader) Entries() []Entry {
	return l.index().Entries()
}

// ListAllSoftware returns the platforms present in the dataset.
func (l *Loader) ListAllSoftware() []string {
	return l.index().Software()
}

// ListGraphTypes returns the graph types published for software.
func (l *Loader) ListGraphTypes(software string) ([]string, error) {
	return l.index().GraphTypes(software)
}

// ListAvailableDates returns the snapshot dates of a graph type, oldest first.
func (l *Loader) ListAvailableDates(software, graphType string) ([]string, error) {
	return l.index().Dates(software, graphType)
}

// Resolve returns the artifact selected by the coordinates without loading
// it. An empty date or Latest selects the most recent snapshot.
func (l *Loader) Resolve(software, graphType, date string) (Entry, error) {
	return resolver.Resolve(l.index(), resolver.Query{Platform: software, GraphType: graphType, Date: date})
}

// GetGraph resolves the selection and deserializes the snapshot. The
// returned graph belongs to the caller.
func (l *Loader) GetGraph(software, graphType, date string) (*Graph, error) {
	start := time.Now()
	g, err := l.getGraph(software, graphType, date)
	l.metrics.ObserveLoad(software, graphType, err, time.Since(start))
	return g, err
}

func (l *Loader) getGraph(software, graphType, date string) (*graph.Graph, error) {
	e, err := l.Resolve(software, graphType, date)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("loading snapshot", "artifact", e.Key.String(), "path", e.InteractionsPath)

	return l.materializer.Load(e)
}

// GetGraphMetadata returns the per-node metadata table of the selected
// snapshot.
func (l *Loader) GetGraphMetadata(software, graphType, date string) (*MetadataTable, error) {
	e, err := l.Resolve(software, graphType, date)
	if err != nil {
		return nil, err
	}
	return l.materializer.LoadMetadata(e)
}

func (l *Loader) String() string {
	return fmt.Sprintf("fedigraph.Loader(%s)", l.root)
}
