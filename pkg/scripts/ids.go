// Package scripts keeps the host's persistent user-script registry in sync
// with the scripts saved in the virtual filesystem. Every enabled script is
// registered so it runs at page load without the agent attached; dynamic
// route patterns get a runtime guard that re-tests the pathname and exposes
// extracted parameters to the page.
package scripts

import (
	"regexp"
	"strings"
)

// idPrefix namespaces registry entries so foreign registrations survive a
// full reconcile untouched.
const idPrefix = "wf_"

var idSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// ScriptID derives the deterministic registry ID for a stored script. The
// same (domain, urlPath, name) triple always yields the same ID, so a
// reconcile replaces prior registrations instead of accumulating them.
func ScriptID(domain, urlPath, name string) string {
	raw := domain + "_" + urlPath + "_" + name
	return idPrefix + idSanitizer.ReplaceAllString(raw, "_")
}

// IsManagedID reports whether a registry ID belongs to this manager.
func IsManagedID(id string) bool {
	return strings.HasPrefix(id, idPrefix)
}
