// Package headers applies response header policies selected by request path.
package headers

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/fragezeichen/roulette/internal/config"
)

// Manager matches request paths to header policies.
type Manager struct {
	policies []compiledPolicy
}

type compiledPolicy struct {
	name    string
	pattern *regexp.Regexp
	headers http.Header
}

// NewManager compiles the policies. Policies are evaluated in order and the
// first match wins.
func NewManager(policies []config.HeaderPolicy) (*Manager, error) {
	compiled := make([]compiledPolicy, 0, len(policies))

	for _, p := range policies {
		pattern, err := regexp.Compile(p.PathPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid path_pattern in policy %q: %w", p.Name, err)
		}

		h := make(http.Header, len(p.Headers))
		for k, v := range p.Headers {
			h.Set(k, v)
		}

		compiled = append(compiled, compiledPolicy{
			name:    p.Name,
			pattern: pattern,
			headers: h,
		})
	}

	return &Manager{policies: compiled}, nil
}

// Apply sets the headers of the first policy matching path on dst and
// returns the policy name, or "" when nothing matched.
func (m *Manager) Apply(dst http.Header, path string) string {
	for _, p := range m.policies {
		if !p.pattern.MatchString(path) {
			continue
		}

		for k, v := range p.headers {
			dst[k] = append([]string(nil), v...)
		}

		return p.name
	}

	return ""
}
