package component

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pulse/internal/core"
)

func TestRoleRank(t *testing.T) {
	assert.Equal(t, 1, Source.Rank())
	assert.Equal(t, 2, Transform.Rank())
	assert.Equal(t, 3, Sink.Rank())
}

func TestParseRole(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Role
	}{
		{"source", Source},
		{"Transform", Transform},
		{"SINK", Sink},
	} {
		got, err := ParseRole(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}

	_, err := ParseRole("router")
	assert.ErrorIs(t, err, core.ErrUnknownRole)
}

func mustParse(t *testing.T, s string) Role {
	t.Helper()
	r, err := ParseRole(s)
	require.NoError(t, err)
	return r
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(
		Component{Name: "in", Type: "generator", Role: Source},
		Component{Name: "out", Type: "console", Role: Sink},
	)

	role, ok := r.Lookup("in")
	assert.True(t, ok)
	assert.Equal(t, Source, role)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Component{Name: "a", Role: Source}))

	err := r.Register(Component{Name: "a", Role: Sink})
	assert.ErrorIs(t, err, core.ErrComponentExists)

	role, _ := r.Lookup("a")
	assert.Equal(t, Source, role)
}

func TestRegistryNamesOrderedByRoleThenName(t *testing.T) {
	r := NewRegistry(
		Component{Name: "z_sink", Role: Sink},
		Component{Name: "b_transform", Role: Transform},
		Component{Name: "a_sink", Role: Sink},
		Component{Name: "y_source", Role: Source},
	)

	assert.Equal(t, []string{"y_source", "b_transform", "a_sink", "z_sink"}, r.Names())
}

func TestRegistryReplaceAndRemove(t *testing.T) {
	r := NewRegistry(Component{Name: "old", Role: Source})
	r.Replace([]Component{{Name: "new", Role: Transform}})

	_, ok := r.Lookup("old")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	r.Remove("new")
	r.Remove("never-existed")
	assert.Equal(t, 0, r.Len())
}

func TestRegistryConcurrentReads(t *testing.T) {
	r := NewRegistry(Component{Name: "in", Role: Source})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = r.Lookup("in")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Replace([]Component{{Name: "in", Role: Source}, {Name: "out", Role: Sink}})
	}()
	wg.Wait()

	_, ok := r.Lookup("out")
	assert.True(t, ok)
}
