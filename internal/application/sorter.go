package application

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
)

// ErrUnknownSortField is returned for a field name SortRepositories cannot order by.
var ErrUnknownSortField = errors.New("unknown sort field")

// SortField names a model.Repository attribute by its JSON key.
type SortField string

const (
	SortByID              SortField = "id"
	SortByName            SortField = "name"
	SortByFullName        SortField = "full_name"
	SortByHTMLURL         SortField = "html_url"
	SortByLanguage        SortField = "language"
	SortByUpdatedAt       SortField = "updated_at"
	SortByPushedAt        SortField = "pushed_at"
	SortByStargazersCount SortField = "stargazers_count"
)

var comparators = map[SortField]func(a, b model.Repository) int{
	SortByID:       func(a, b model.Repository) int { return cmp.Compare(a.ID, b.ID) },
	SortByName:     func(a, b model.Repository) int { return strings.Compare(a.Name, b.Name) },
	SortByFullName: func(a, b model.Repository) int { return strings.Compare(a.FullName, b.FullName) },
	SortByHTMLURL:  func(a, b model.Repository) int { return strings.Compare(a.HTMLURL, b.HTMLURL) },
	SortByLanguage: compareLanguage,
	SortByUpdatedAt: func(a, b model.Repository) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	},
	SortByPushedAt: func(a, b model.Repository) int {
		return a.PushedAt.Compare(b.PushedAt)
	},
	SortByStargazersCount: func(a, b model.Repository) int {
		return cmp.Compare(a.StargazersCount, b.StargazersCount)
	},
}

// ParseSortField validates name and returns it as a SortField.
func ParseSortField(name string) (SortField, error) {
	field := SortField(name)
	if _, ok := comparators[field]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSortField, name)
	}
	return field, nil
}

// SortRepositories returns a stably sorted copy of repos ordered by field.
// Equal elements keep their relative order in both directions. The input
// slice is left untouched.
func SortRepositories(repos []model.Repository, field SortField, descending bool) ([]model.Repository, error) {
	compare, ok := comparators[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSortField, field)
	}

	sorted := slices.Clone(repos)
	if sorted == nil {
		sorted = []model.Repository{}
	}

	if descending {
		slices.SortStableFunc(sorted, func(a, b model.Repository) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(sorted, compare)
	}

	return sorted, nil
}

// compareLanguage orders repositories without a detected language first.
func compareLanguage(a, b model.Repository) int {
	switch {
	case a.Language == nil && b.Language == nil:
		return 0
	case a.Language == nil:
		return -1
	case b.Language == nil:
		return 1
	default:
		return strings.Compare(*a.Language, *b.Language)
	}
}
