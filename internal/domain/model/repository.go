package model

import (
	"strconv"
	"time"
)

// TimestampLayout is the wire and storage format for repository timestamps.
// Values are always UTC with second precision, so lexicographic order of the
// formatted strings equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Repository is a GitHub repository projected down to the fields kubehub
// stores and serves. Language is nil when GitHub has not detected one.
type Repository struct {
	ID              int64
	Name            string
	FullName        string
	HTMLURL         string
	Language        *string
	UpdatedAt       time.Time
	PushedAt        time.Time
	StargazersCount int
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value previously produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// CacheKeyPrefix returns the key prefix shared by every cached repository of a topic.
func CacheKeyPrefix(topic string) string {
	return topic + ":"
}

// CacheKey returns the cache key of a repository fetched for topic.
func CacheKey(topic string, id int64) string {
	return CacheKeyPrefix(topic) + strconv.FormatInt(id, 10)
}
