package profilestore

import (
	"context"

	"github.com/tmellor/forge/internal/credential"
)

// SecretBackend is the subset of credential.Backend the Manager needs:
// just Load, since the Manager only reads secure fields during resolution.
type SecretBackend interface {
	Load(ctx context.Context, account string) (string, error)
}

// Manager resolves a root profile and its full dependency closure into a
// ProfileMap: depth-first traversal with cycle detection, memoized per
// invocation, materializing secure fields via the credential backend.
type Manager struct {
	source  Source
	secrets SecretBackend
}

// NewManager constructs a Manager over source, materializing secure
// fields through secrets.
func NewManager(source Source, secrets SecretBackend) *Manager {
	return &Manager{source: source, secrets: secrets}
}

// resolution is the per-invocation mutable state: the memo and the
// current DFS stack, kept out of Manager so one Manager can serve
// concurrent Resolve calls for independent invocations (the profile
// store itself is read-only during invocation).
type resolution struct {
	memo  map[string]*Profile
	stack []string
}

// Resolution is an opaque per-invocation memoization scope. A caller that
// needs to resolve several independent profile requirements into one
// ProfileMap (e.g. the Processor resolving every required/optional profile
// type a command declares) should share one Resolution across those calls
// so a dependency common to more than one requirement is still loaded at
// most once for the whole invocation, not just within a single root load.
type Resolution struct{ r *resolution }

// NewResolution starts a fresh memoization scope.
func (m *Manager) NewResolution() *Resolution {
	return &Resolution{r: &resolution{memo: make(map[string]*Profile)}}
}

// ResolveInto loads rootType:rootName (or its default when rootName is
// empty) into pm, sharing res's memoization scope with any other calls
// made against the same Resolution.
func (m *Manager) ResolveInto(ctx context.Context, res *Resolution, pm *ProfileMap, rootType, rootName string) error {
	_, err := m.resolveOne(ctx, rootType, rootName, res.r, pm)
	return err
}

// Resolve loads rootType:rootName (or rootType's default profile when
// rootName is empty) and its full dependency closure, returning a
// ProfileMap containing every distinct type:name resolved. Each distinct
// dependency is loaded at most once per call.
func (m *Manager) Resolve(ctx context.Context, rootType, rootName string) (*ProfileMap, error) {
	pm := newProfileMap()
	r := &resolution{memo: make(map[string]*Profile)}

	if _, err := m.resolveOne(ctx, rootType, rootName, r, pm); err != nil {
		return nil, err
	}
	return pm, nil
}

// ResolveAll loads every profile of rootType plus each one's dependency
// closure, used when a command declares an optional/required profile
// type without naming a specific profile.
func (m *Manager) ResolveAll(ctx context.Context, rootType string) (*ProfileMap, error) {
	pm := newProfileMap()
	r := &resolution{memo: make(map[string]*Profile)}

	raws, err := m.source.LoadAll(rootType)
	if err != nil {
		return nil, err
	}
	for _, raw := range raws {
		if _, err := m.resolveRaw(ctx, raw, r, pm); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

func (m *Manager) resolveOne(ctx context.Context, profileType, name string, r *resolution, pm *ProfileMap) (*Profile, error) {
	key := profileType + ":" + name
	if name == "" {
		key = profileType + ":<default>"
	}

	if p, ok := r.memo[key]; ok {
		return p, nil
	}
	for _, onStack := range r.stack {
		if onStack == key {
			return nil, &CycleError{Path: append(append([]string(nil), r.stack...), key)}
		}
	}

	var raw *RawProfile
	var err error
	if name == "" {
		raw, err = m.source.LoadDefault(profileType)
	} else {
		raw, err = m.source.Load(profileType, name)
	}
	if err != nil {
		return nil, err
	}

	r.stack = append(r.stack, key)
	p, err := m.resolveRaw(ctx, raw, r, pm)
	r.stack = r.stack[:len(r.stack)-1]
	if err != nil {
		return nil, err
	}

	r.memo[key] = p
	return p, nil
}

// resolveRaw resolves a RawProfile's dependencies and secure fields once
// its own identity is already pushed onto the DFS stack (or, for
// ResolveAll roots, with no cycle risk since roots aren't interdependent
// by construction here).
func (m *Manager) resolveRaw(ctx context.Context, raw *RawProfile, r *resolution, pm *ProfileMap) (*Profile, error) {
	depKey := raw.Type + ":" + raw.Name
	if _, ok := r.memo[depKey]; ok {
		return r.memo[depKey], nil
	}

	for _, dep := range raw.Dependencies {
		if _, err := m.resolveOne(ctx, dep.Type, dep.Name, r, pm); err != nil {
			if _, isCycle := err.(*CycleError); isCycle {
				return nil, err
			}
			return nil, &DependencyError{Dependency: dep, Cause: err}
		}
	}

	fields := make(map[string]any, len(raw.Fields))
	for k, v := range raw.Fields {
		fields[k] = v
	}

	for _, fieldName := range raw.SecureFieldNames {
		account := credential.AccountKey(raw.Type, raw.Name, fieldName)
		val, err := m.secrets.Load(ctx, account)
		if err != nil {
			return nil, &CredentialError{Account: account, Cause: err}
		}
		fields[fieldName] = val
	}

	p := &Profile{
		Name:         raw.Name,
		Type:         raw.Type,
		Fields:       fields,
		Dependencies: raw.Dependencies,
	}
	pm.add(p)
	r.memo[depKey] = p
	return p, nil
}
