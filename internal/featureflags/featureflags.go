// Package featureflags evaluates the runtime switches of the client.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// GuestMode allows the explicit guest pseudo-session when the backend is down.
	GuestMode = "guest_mode"
	// OfflinePosts queues posts locally when they cannot be sent.
	OfflinePosts = "offline_posts"
	// CommentCache reuses fetched comment lists for a short time.
	CommentCache = "comment_cache"
)

// Defaults is the flag set used when FEATURE_FLAGS is unset.
const Defaults = "guest_mode=on,offline_posts=on,comment_cache=on"

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "guest_mode=on,comment_cache=25%,offline_posts=off"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is on. Percentage values roll out
// deterministically by subject (usually the username); an empty subject is
// never inside a partial rollout.
// Supported values:
// - on/true/1
// - off/false/0
// - N%
func (m *Manager) Enabled(name, subject string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if subject == "" {
			return false
		}
		return rolloutBucket(name, subject) < pct
	}

	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns the evaluated flags for one subject, sorted by name.
func (m *Manager) Snapshot(subject string) []Status {
	out := make([]Status, 0, len(m.flags))
	for name := range m.flags {
		out = append(out, Status{Name: name, Enabled: m.Enabled(name, subject)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Status is one evaluated flag.
type Status struct {
	Name    string
	Enabled bool
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, subject string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + subject))
	return int(h.Sum32() % 100)
}
