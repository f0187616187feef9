package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
)

// Sentinel errors returned by RepositorySearcher implementations.
var (
	// ErrRateLimited indicates GitHub refused the request because of a rate limit.
	ErrRateLimited = errors.New("github rate limit exceeded")

	// ErrMissingField indicates a search item lacked a field required by model.Repository.
	ErrMissingField = errors.New("missing required field")
)

// UpstreamError reports a non-success, non-rate-limit response from GitHub.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github responded with status %d: %v", e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// RepositorySearcher defines the driven port for searching GitHub repositories by topic.
type RepositorySearcher interface {
	// SearchByTopic follows search result pages until at least minCount
	// repositories have been collected or no next page exists. A minCount of
	// zero fetches every available page. Results keep upstream order.
	SearchByTopic(ctx context.Context, topic string, minCount int) ([]model.Repository, error)
}
