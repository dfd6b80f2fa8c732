package profilestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	profiles map[string]*RawProfile // "type:name"
	defaults map[string]*RawProfile // "type"
}

func newFakeSource() *fakeSource {
	return &fakeSource{profiles: map[string]*RawProfile{}, defaults: map[string]*RawProfile{}}
}

func (f *fakeSource) put(p *RawProfile) { f.profiles[p.Type+":"+p.Name] = p }

func (f *fakeSource) Load(profileType, name string) (*RawProfile, error) {
	p, ok := f.profiles[profileType+":"+name]
	if !ok {
		return nil, assertionError{profileType, name}
	}
	return p, nil
}

func (f *fakeSource) LoadDefault(profileType string) (*RawProfile, error) {
	p, ok := f.defaults[profileType]
	if !ok {
		return nil, assertionError{profileType, "<default>"}
	}
	return p, nil
}

func (f *fakeSource) LoadAll(profileType string) ([]*RawProfile, error) {
	var out []*RawProfile
	for _, p := range f.profiles {
		if p.Type == profileType {
			out = append(out, p)
		}
	}
	return out, nil
}

type assertionError struct{ t, n string }

func (e assertionError) Error() string { return "not found: " + e.t + ":" + e.n }

type fakeSecrets struct {
	values map[string]string
}

func (f *fakeSecrets) Load(ctx context.Context, account string) (string, error) {
	v, ok := f.values[account]
	if !ok {
		return "", assertionError{"secret", account}
	}
	return v, nil
}

func TestResolveSimpleProfile(t *testing.T) {
	src := newFakeSource()
	src.put(&RawProfile{Type: "main", Name: "m1", Fields: map[string]any{"region": "us-east-1"}})

	m := NewManager(src, &fakeSecrets{values: map[string]string{}})
	pm, err := m.Resolve(context.Background(), "main", "m1")
	require.NoError(t, err)

	p, ok := pm.Get("main")
	require.True(t, ok)
	assert.Equal(t, "us-east-1", p.Fields["region"])
}

func TestResolveWithDependency(t *testing.T) {
	src := newFakeSource()
	src.put(&RawProfile{Type: "main", Name: "m1", Dependencies: []Dependency{{Type: "dep", Name: "d1"}}})
	src.put(&RawProfile{Type: "dep", Name: "d1", Fields: map[string]any{"x": 1}})

	m := NewManager(src, &fakeSecrets{})
	pm, err := m.Resolve(context.Background(), "main", "m1")
	require.NoError(t, err)

	_, ok := pm.Get("main")
	assert.True(t, ok)
	dep, ok := pm.Get("dep")
	assert.True(t, ok)
	assert.Equal(t, 1, dep.Fields["x"])
}

func TestResolveDetectsCycle(t *testing.T) {
	src := newFakeSource()
	src.put(&RawProfile{Type: "a", Name: "a1", Dependencies: []Dependency{{Type: "b", Name: "b1"}}})
	src.put(&RawProfile{Type: "b", Name: "b1", Dependencies: []Dependency{{Type: "a", Name: "a1"}}})

	m := NewManager(src, &fakeSecrets{})
	_, err := m.Resolve(context.Background(), "a", "a1")
	require.Error(t, err)

	var cycleErr *CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func TestResolveDependencyFailurePropagates(t *testing.T) {
	src := newFakeSource()
	src.put(&RawProfile{Type: "main", Name: "m1", Dependencies: []Dependency{{Type: "dep", Name: "missing"}}})

	m := NewManager(src, &fakeSecrets{})
	_, err := m.Resolve(context.Background(), "main", "m1")
	require.Error(t, err)

	var depErr *DependencyError
	assert.ErrorAs(t, err, &depErr)
}

func TestResolveMaterializesSecureFields(t *testing.T) {
	src := newFakeSource()
	src.put(&RawProfile{
		Type:             "aws",
		Name:             "prod",
		Fields:           map[string]any{},
		SecureFieldNames: []string{"secretKey"},
	})

	m := NewManager(src, &fakeSecrets{values: map[string]string{
		"aws_prod_secretKey": "s3kr3t",
	}})

	pm, err := m.Resolve(context.Background(), "aws", "prod")
	require.NoError(t, err)
	p, _ := pm.Get("aws")
	assert.Equal(t, "s3kr3t", p.Fields["secretKey"])
}

func TestResolveMissingCredentialFails(t *testing.T) {
	src := newFakeSource()
	src.put(&RawProfile{
		Type:             "aws",
		Name:             "prod",
		SecureFieldNames: []string{"secretKey"},
	})

	m := NewManager(src, &fakeSecrets{values: map[string]string{}})
	_, err := m.Resolve(context.Background(), "aws", "prod")
	require.Error(t, err)

	var credErr *CredentialError
	assert.ErrorAs(t, err, &credErr)
}

func TestResolveMemoizesDuplicateDependencies(t *testing.T) {
	calls := 0
	src := newFakeSource()
	src.put(&RawProfile{Type: "main", Name: "m1", Dependencies: []Dependency{
		{Type: "dep", Name: "shared"},
	}})
	src.put(&RawProfile{Type: "other", Name: "o1", Dependencies: []Dependency{
		{Type: "dep", Name: "shared"},
	}})
	src.put(&RawProfile{Type: "dep", Name: "shared", SecureFieldNames: []string{"k"}})

	secrets := &fakeSecrets{values: map[string]string{"dep_shared_k": "v"}}
	countingSecrets := countingBackend{inner: secrets, count: &calls}

	m := NewManager(src, countingSecrets)
	pm := newProfileMap()
	r := &resolution{memo: make(map[string]*Profile)}

	_, err := m.resolveOne(context.Background(), "main", "m1", r, pm)
	require.NoError(t, err)
	_, err = m.resolveOne(context.Background(), "other", "o1", r, pm)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "shared dependency's secure field must be materialized once")
}

type countingBackend struct {
	inner SecretBackend
	count *int
}

func (c countingBackend) Load(ctx context.Context, account string) (string, error) {
	*c.count++
	return c.inner.Load(ctx, account)
}
