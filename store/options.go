package store

import (
	"go.uber.org/zap"

	"github.com/nilsbloom/filecachestore/internal/config"
)

// settings collects everything New needs: the serializable config plus the
// Go-interface collaborators that can't live in config.Config.
type settings struct {
	cfg            *config.Config
	marshaller     Marshaller
	keyEquivalence KeyEquivalence
	legacyImporter LegacyImporter
}

// Option configures a Store at New time, following the same functional
// pattern the original client package uses for WithHost/WithPort.
type Option func(*settings)

func WithLocation(dir string) Option {
	return func(s *settings) { s.cfg.Location = dir }
}

func WithCacheName(name string) Option {
	return func(s *settings) { s.cfg.CacheName = name }
}

// WithMaxEntries activates bounded mode with LRU eviction. n <= 0 means
// unbounded.
func WithMaxEntries(n int) Option {
	return func(s *settings) { s.cfg.MaxEntries = n }
}

func WithPurgeSynchronously(sync bool) Option {
	return func(s *settings) { s.cfg.PurgeSynchronously = sync }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.cfg.Logger = l }
}

// WithMarshaller sets the collaborator used to turn keys and values into
// on-disk bytes. Defaults to BytesMarshaller when never set.
func WithMarshaller(m Marshaller) Option {
	return func(s *settings) { s.marshaller = m }
}

// WithKeyEquivalence overrides how keys are canonicalized for indexing.
func WithKeyEquivalence(eq KeyEquivalence) Option {
	return func(s *settings) { s.keyEquivalence = eq }
}

// WithLegacyImporter registers a one-shot importer consulted during Start.
func WithLegacyImporter(li LegacyImporter) Option {
	return func(s *settings) { s.legacyImporter = li }
}
