package service

import (
	"time"

	"github.com/louisbranch/capture-preferences/internal/platform/filter"
	"github.com/louisbranch/capture-preferences/internal/platform/id"
	"github.com/louisbranch/capture-preferences/internal/platform/pagination"
	"github.com/louisbranch/capture-preferences/internal/services/preferences/storage"
)

const (
	// DefaultPageSize is the listing window when none is requested.
	DefaultPageSize = 50
	// MaxPageSize caps any requested listing window.
	MaxPageSize = 300

	// OrderNewestFirst lists the latest expressions first.
	OrderNewestFirst = "-expressed_at"
	// OrderOldestFirst lists the earliest expressions first.
	OrderOldestFirst = "expressed_at"
)

// Filter field names accepted in listing filters.
const (
	fieldUser        = "user"
	fieldExpressedAt = "expressed_at"
)

var filterSchema = filter.NewSchema(
	filter.Field{Name: fieldUser, Kind: filter.KindString, Column: "p.username"},
	filter.Field{Name: fieldExpressedAt, Kind: filter.KindTimestamp, Column: "p.expressed_at"},
)

var orderByConfig = pagination.OrderByConfig{
	Default: OrderNewestFirst,
	Allowed: []string{OrderOldestFirst, OrderNewestFirst},
}

// Config holds process-wide listing settings.
type Config struct {
	PageSize    int
	MaxPageSize int
}

// Service coordinates the preference store with request identity.
type Service struct {
	store       storage.PreferenceStore
	pageSize    pagination.PageSizeConfig
	clock       func() time.Time
	idGenerator func() (string, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp new expressions.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the preference id generator.
func WithIDGenerator(generator func() (string, error)) Option {
	return func(s *Service) {
		if generator != nil {
			s.idGenerator = generator
		}
	}
}

// New builds a Service over store.
func New(store storage.PreferenceStore, cfg Config, opts ...Option) *Service {
	pageSize := pagination.PageSizeConfig{Default: cfg.PageSize, Max: cfg.MaxPageSize}
	if pageSize.Default <= 0 {
		pageSize.Default = DefaultPageSize
	}
	if pageSize.Max <= 0 {
		pageSize.Max = MaxPageSize
	}
	if pageSize.Default > pageSize.Max {
		pageSize.Default = pageSize.Max
	}

	s := &Service{
		store:       store,
		pageSize:    pageSize,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
