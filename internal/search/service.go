package search

import (
	"context"

	"github.com/dfelizola/internal-messenger-api/internal/model"
)

// Defaults and bounds for pagination.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// filterAppliers is the closed table of supported filter keys.  Filters are
// AND-combined, so the iteration order does not change the result set; the
// fixed order just keeps generated SQL deterministic.  Keys outside this
// table are ignored.
var filterAppliers = []struct {
	key   string
	apply func(Query, string) Query
}{
	{"q", Query.MatchAny},
	{"name", Query.MatchName},
	{"email", Query.MatchEmail},
	{"role", Query.WithRole},
	{"active", Query.WithActive},
}

// FilterKeys lists the recognized filter parameter names.
func FilterKeys() []string {
	keys := make([]string, 0, len(filterAppliers))
	for _, f := range filterAppliers {
		keys = append(keys, f.key)
	}
	return keys
}

// Params carries the raw, untrusted request parameters for one directory
// search.  String fields map 1:1 to query-string keys; blank values mean
// "not filtered".  Page and PerPage arrive unnormalized.
type Params struct {
	Filters map[string]string // q, name, email, role, active
	SortBy  string
	Order   string
	Page    int
	PerPage int
}

// Meta is the pagination metadata attached to every search result.  It is
// computed against the filtered set, independent of the requested page.
type Meta struct {
	TotalCount      int64 `json:"total_count"`
	Page            int   `json:"page"`
	PerPage         int   `json:"per_page"`
	TotalPages      int   `json:"total_pages"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
}

// Result pairs one page of users with its pagination metadata.
type Result struct {
	Users []model.User
	Meta  Meta
}

// Store is the minimal persistence surface the search service needs: count
// the filtered set and materialize one page of it.
type Store interface {
	CountUsers(ctx context.Context, q Query) (int64, error)
	FindUsers(ctx context.Context, q Query, limit, offset int) ([]model.User, error)
}

// Service orchestrates filter, sort, count and paginate for the user
// directory.
type Service struct {
	store Store
}

// NewService returns a search service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Search builds a query from the raw parameters and executes it.  The total
// count is taken before pagination, so a page past the end returns an empty
// slice with accurate metadata rather than an error.
func (s *Service) Search(ctx context.Context, p Params) (Result, error) {
	q := BuildQuery(p)

	total, err := s.store.CountUsers(ctx, q)
	if err != nil {
		return Result{}, err
	}

	page, perPage := NormalizePage(p.Page, p.PerPage)
	users, err := s.store.FindUsers(ctx, q, perPage, (page-1)*perPage)
	if err != nil {
		return Result{}, err
	}
	if users == nil {
		users = []model.User{}
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return Result{
		Users: users,
		Meta: Meta{
			TotalCount:      total,
			Page:            page,
			PerPage:         perPage,
			TotalPages:      totalPages,
			HasNextPage:     page < totalPages,
			HasPreviousPage: page > 1,
		},
	}, nil
}

// BuildQuery applies the recognized filters and the sort order from p to a
// fresh query.  Unrecognized filter keys and blank values are no-ops.
func BuildQuery(p Params) Query {
	q := NewQuery()
	for _, f := range filterAppliers {
		if v, ok := p.Filters[f.key]; ok {
			q = f.apply(q, v)
		}
	}
	return q.OrderBy(p.SortBy, p.Order)
}

// NormalizePage clamps pagination input: pages start at 1 and the page size
// must sit in [1, MaxPerPage], anything else becomes the default of 10.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}
	return page, perPage
}
