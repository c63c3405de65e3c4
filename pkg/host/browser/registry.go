package browser

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/entrhq/webforge/pkg/host"
)

// initScriptRegistry simulates a persistent user-script facility over
// Playwright, which has none. Registrations live in memory exactly as a
// real facility would hold them; the host replays the scripts matching a
// page's URL on every load, which is the same one-shot evaluated injection
// the reconciler would otherwise get from the per-page fallback path.
type initScriptRegistry struct {
	*host.MemoryScriptRegistry

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func newInitScriptRegistry() *initScriptRegistry {
	return &initScriptRegistry{
		MemoryScriptRegistry: host.NewMemoryScriptRegistry(),
		compiled:             make(map[string]*regexp.Regexp),
	}
}

// matching returns the registered scripts whose match patterns cover url,
// in registration-id order.
func (r *initScriptRegistry) matching(ctx context.Context, url string) ([]host.RegisteredScript, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []host.RegisteredScript
	for _, s := range all {
		for _, pattern := range s.Matches {
			if r.matches(pattern, url) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (r *initScriptRegistry) matches(pattern, url string) bool {
	r.mu.Lock()
	re, ok := r.compiled[pattern]
	if !ok {
		re = compileMatchPattern(pattern)
		r.compiled[pattern] = re
	}
	r.mu.Unlock()
	return re.MatchString(url)
}

// compileMatchPattern translates a host match pattern into an anchored
// regexp: literal runs are quoted and each * matches any span, including
// the scheme wildcard in *://.
func compileMatchPattern(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("^" + strings.Join(quoted, ".*") + "$")
}
