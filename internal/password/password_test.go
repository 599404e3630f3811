package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("rider-secret-1")
	require.NoError(t, err)
	require.NotEqual(t, "rider-secret-1", hash)

	ok, err := Verify("rider-secret-1", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify("rider-secret-2", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same-password")
	require.NoError(t, err)
	b, err := Hash("same-password")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHashRejectsShortPassword(t *testing.T) {
	_, err := Hash("short")
	require.Error(t, err)
}

func TestVerifyRejectsPlaintextStoredValue(t *testing.T) {
	ok, err := Verify("letmein123", "letmein123")
	require.Error(t, err)
	require.False(t, ok)
}
