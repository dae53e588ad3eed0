package repository

import "time"

// WithURL filters by the canonical "url" column.
func WithURL(url string) Option {
	return WithCondition("url", url)
}

// WithOwner filters by the "owner" column.
func WithOwner(owner string) Option {
	return WithCondition("owner", owner)
}

// WithName filters by the "name" column.
func WithName(name string) Option {
	return WithCondition("name", name)
}

// WithStatus filters by the "status" column.
func WithStatus(status Status) Option {
	return WithCondition("status", string(status))
}

// WithStatusIn filters by the "status" column using IN.
func WithStatusIn(statuses []Status) Option {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return WithConditionIn("status", values)
}

// WithLanguage filters by the "language" column.
func WithLanguage(language string) Option {
	return WithCondition("language", language)
}

// WithIndexedBefore filters repositories whose last successful index run
// finished before the given time, or that have never been indexed.
func WithIndexedBefore(t time.Time) Option {
	return WithWhere("indexed_at IS NULL OR indexed_at < ?", t)
}
