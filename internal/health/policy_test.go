package health

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicies(t *testing.T) {
	require.False(t, AnyHealthy(nil))
	require.True(t, AnyHealthy([]bool{false, true}))
	require.False(t, AnyHealthy([]bool{false, false}))

	require.False(t, AllHealthy(nil))
	require.True(t, AllHealthy([]bool{true, true}))
	require.False(t, AllHealthy([]bool{true, false}))
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	require.True(t, p([]bool{false, true}))

	p, err = PolicyByName("ALL")
	require.NoError(t, err)
	require.False(t, p([]bool{false, true}))

	_, err = PolicyByName("majority")
	require.Error(t, err)
}
