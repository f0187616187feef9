package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a plain-text 500 is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		writeText(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeText writes a plain-text response body.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// RepoResponse is the JSON representation of a cached repository.
type RepoResponse struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	FullName        string  `json:"full_name"`
	HTMLURL         string  `json:"html_url"`
	Language        *string `json:"language"`
	UpdatedAt       string  `json:"updated_at"`
	PushedAt        string  `json:"pushed_at"`
	StargazersCount int     `json:"stargazers_count"`
}

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toRepoResponse(repo model.Repository) RepoResponse {
	return RepoResponse{
		ID:              repo.ID,
		Name:            repo.Name,
		FullName:        repo.FullName,
		HTMLURL:         repo.HTMLURL,
		Language:        repo.Language,
		UpdatedAt:       model.FormatTimestamp(repo.UpdatedAt),
		PushedAt:        model.FormatTimestamp(repo.PushedAt),
		StargazersCount: repo.StargazersCount,
	}
}
