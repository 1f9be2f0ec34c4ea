package district

import (
	"context"
	"strings"
)

// SubDistrict is a second-level administrative region with its postal code.
type SubDistrict struct {
	Name string `json:"name"`
	Zip  string `json:"zip"`
}

// District is a first-level administrative region (county/city).
type District struct {
	Name      string        `json:"name"`
	Districts []SubDistrict `json:"districts"`
}

type Repository interface {
	GetAll(ctx context.Context) ([]District, error)
}

// Normalize rewrites the legacy character variant to the canonical one used by
// the district table ("台" vs "臺").
func Normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "台", "臺")
}

// Resolver answers canonical-name lookups from an in-memory copy of the
// district table, loaded once per import task.
type Resolver struct {
	byName map[string]resolverEntry
}

type resolverEntry struct {
	name string
	subs map[string]string
}

func NewResolver(districts []District) *Resolver {
	byName := make(map[string]resolverEntry, len(districts))
	for _, d := range districts {
		subs := make(map[string]string, len(d.Districts))
		for _, s := range d.Districts {
			subs[Normalize(s.Name)] = s.Name
		}
		byName[Normalize(d.Name)] = resolverEntry{name: d.Name, subs: subs}
	}
	return &Resolver{byName: byName}
}

// ResolveL1 returns the canonical first-level name.
func (r *Resolver) ResolveL1(name string) (string, bool) {
	entry, ok := r.byName[Normalize(name)]
	if !ok {
		return "", false
	}
	return entry.name, true
}

// ResolveL2 returns the canonical second-level name within the given
// first-level region.
func (r *Resolver) ResolveL2(l1, l2 string) (string, bool) {
	entry, ok := r.byName[Normalize(l1)]
	if !ok {
		return "", false
	}
	canonical, ok := entry.subs[Normalize(l2)]
	return canonical, ok
}
