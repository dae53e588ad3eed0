package repository

import "time"

// Commit represents a single commit on the hosted repository.
type Commit struct {
	sha       string
	message   string
	author    Author
	timestamp time.Time
}

// NewCommit creates a new Commit.
func NewCommit(sha, message string, author Author, timestamp time.Time) Commit {
	return Commit{
		sha:       sha,
		message:   message,
		author:    author,
		timestamp: timestamp,
	}
}

// SHA returns the commit SHA.
func (c Commit) SHA() string { return c.sha }

// Message returns the commit message.
func (c Commit) Message() string { return c.message }

// Author returns the commit author.
func (c Commit) Author() Author { return c.author }

// Timestamp returns the commit timestamp.
func (c Commit) Timestamp() time.Time { return c.timestamp }

// ShortSHA returns the first 7 characters of the SHA.
func (c Commit) ShortSHA() string {
	if len(c.sha) < 7 {
		return c.sha
	}
	return c.sha[:7]
}

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	for i := 0; i < len(c.message); i++ {
		if c.message[i] == '\n' {
			return c.message[:i]
		}
	}
	return c.message
}

// IsEmpty returns true if no SHA is set.
func (c Commit) IsEmpty() bool { return c.sha == "" }

// Equal returns true if two Commit values have the same SHA.
func (c Commit) Equal(other Commit) bool {
	return c.sha == other.sha
}
