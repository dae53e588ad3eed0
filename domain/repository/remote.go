package repository

import (
	"fmt"
	"net/url"
	"strings"
)

// Remote identifies a repository on a hosted git provider.
type Remote struct {
	host  string
	owner string
	name  string
}

// ParseRemote parses a repository URL into its canonical parts.
// Accepted forms: https://host/owner/name, https://host/owner/name.git,
// git@host:owner/name.git, and the bare owner/name shorthand (resolved
// against github.com).
func ParseRemote(raw string) (Remote, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Remote{}, fmt.Errorf("repository URL cannot be empty")
	}

	// SSH form: git@host:owner/name(.git)
	if strings.HasPrefix(s, "git@") {
		rest := strings.TrimPrefix(s, "git@")
		host, path, ok := strings.Cut(rest, ":")
		if !ok {
			return Remote{}, fmt.Errorf("invalid ssh repository URL: %s", raw)
		}
		return remoteFromPath(host, path, raw)
	}

	// Bare owner/name shorthand
	if !strings.Contains(s, "://") {
		return remoteFromPath("github.com", s, raw)
	}

	u, err := url.Parse(s)
	if err != nil {
		return Remote{}, fmt.Errorf("invalid repository URL %s: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Remote{}, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Remote{}, fmt.Errorf("repository URL missing host: %s", raw)
	}
	return remoteFromPath(u.Host, u.Path, raw)
}

// ReconstructRemote reconstructs a Remote from persistence. Parts are
// stored already canonicalized, so no validation is repeated here.
func ReconstructRemote(host, owner, name string) Remote {
	return Remote{
		host:  host,
		owner: owner,
		name:  name,
	}
}

func remoteFromPath(host, path, raw string) (Remote, error) {
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Remote{}, fmt.Errorf("repository URL must name owner/name: %s", raw)
	}
	return Remote{
		host:  strings.ToLower(host),
		owner: parts[0],
		name:  parts[1],
	}, nil
}

// Host returns the provider host (e.g. github.com).
func (r Remote) Host() string { return r.host }

// Owner returns the repository owner or organization.
func (r Remote) Owner() string { return r.owner }

// Name returns the repository name.
func (r Remote) Name() string { return r.name }

// FullName returns "owner/name".
func (r Remote) FullName() string {
	return r.owner + "/" + r.name
}

// URL returns the canonical https form. Two inputs naming the same
// repository always canonicalize to the same URL, which makes this the
// dedup key for repository creation.
func (r Remote) URL() string {
	return fmt.Sprintf("https://%s/%s/%s", r.host, r.owner, r.name)
}

// IsEmpty returns true if the remote has no owner or name.
func (r Remote) IsEmpty() bool {
	return r.owner == "" || r.name == ""
}

// Equal returns true if two Remote values identify the same repository.
func (r Remote) Equal(other Remote) bool {
	return r.host == other.host && r.owner == other.owner && r.name == other.name
}
