package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeOrdering(t *testing.T) {
	assert.True(t, ScopeLocation.Covers(ScopeSelf))
	assert.True(t, ScopeAllLocations.Covers(ScopeLocation))
	assert.True(t, ScopeGlobal.Covers(ScopeAllLocations))
	assert.False(t, ScopeSelf.Covers(ScopeLocation))
	assert.False(t, ScopeLocation.Covers(ScopeGlobal))
}

func TestScopeSpansAllLocations(t *testing.T) {
	assert.False(t, ScopeSelf.SpansAllLocations())
	assert.False(t, ScopeLocation.SpansAllLocations())
	assert.True(t, ScopeAllLocations.SpansAllLocations())
	assert.True(t, ScopeGlobal.SpansAllLocations())
}

func TestMaxScope(t *testing.T) {
	assert.Equal(t, ScopeSelf, MaxScope())
	assert.Equal(t, ScopeAllLocations, MaxScope(ScopeSelf, ScopeAllLocations, ScopeLocation))
	assert.Equal(t, ScopeGlobal, MaxScope(ScopeGlobal, ScopeSelf))
}

func TestParseScopeRoundTrip(t *testing.T) {
	for _, scope := range []Scope{ScopeSelf, ScopeLocation, ScopeAllLocations, ScopeGlobal} {
		parsed, err := ParseScope(scope.String())
		require.NoError(t, err)
		assert.Equal(t, scope, parsed)
	}
}

func TestParseScopeUnknown(t *testing.T) {
	_, err := ParseScope("REGIONAL")
	require.Error(t, err)
}
