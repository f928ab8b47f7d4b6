package domain

import "sort"

// Well-known tag keys propagated to every created resource. Name doubles as
// the idempotence key for tag-addressed resources, so it must be stable
// across runs.
const (
	TagKeyName        = "Name"
	TagKeyProject     = "Project"
	TagKeyEnvironment = "Environment"
	TagKeyTier        = "Tier"
)

type TagSet map[string]string

func BaseTags(project, environment string) TagSet {
	return TagSet{
		TagKeyProject:     project,
		TagKeyEnvironment: environment,
	}
}

// WithName returns a copy carrying the Name tag plus any extra pairs.
// The receiver is never mutated; managers rely on that when deriving
// per-resource tag sets from the shared base.
func (t TagSet) WithName(name string) TagSet {
	out := make(TagSet, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	out[TagKeyName] = name
	return out
}

func (t TagSet) With(key, value string) TagSet {
	out := make(TagSet, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	out[key] = value
	return out
}

// SortedKeys gives a deterministic iteration order for building provider
// tag lists, so request payloads are stable across runs.
func (t TagSet) SortedKeys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
