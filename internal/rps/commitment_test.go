package rps

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSecret(t *testing.T, s string) Secret {
	t.Helper()
	sec, err := SecretFromString(s)
	require.NoError(t, err)
	return sec
}

func TestCommitBindsMoveAndSecret(t *testing.T) {
	s1 := mustSecret(t, "p1-secret")
	s2 := mustSecret(t, "p2-secret")

	c := Commit(Rock, s1)
	assert.Equal(t, c, Commit(Rock, s1))
	assert.False(t, c.IsZero())

	assert.True(t, c.Verify(Rock, s1))
	assert.False(t, c.Verify(Paper, s1))
	assert.False(t, c.Verify(Scissors, s1))
	assert.False(t, c.Verify(Rock, s2))
	assert.NotEqual(t, c, Commit(Rock, s2))
}

func TestZeroCommitmentNeverVerifies(t *testing.T) {
	var zero Commitment
	for _, m := range []Move{None, Rock, Paper, Scissors} {
		assert.False(t, zero.Verify(m, Secret{}))
	}
}

func TestSecretFromStringPadsRight(t *testing.T) {
	sec := mustSecret(t, "s1")
	assert.Equal(t, byte('s'), sec[0])
	assert.Equal(t, byte('1'), sec[1])
	for _, b := range sec[2:] {
		assert.Zero(t, b)
	}

	_, err := SecretFromString(strings.Repeat("x", 33))
	assert.Error(t, err)
}

func TestParseSecretHexAndText(t *testing.T) {
	text := mustSecret(t, "s1")
	fromHex, err := ParseSecret(text.String())
	require.NoError(t, err)
	assert.Equal(t, text, fromHex)

	fromText, err := ParseSecret("s1")
	require.NoError(t, err)
	assert.Equal(t, text, fromText)
}

func TestCommitmentJSONRoundTrip(t *testing.T) {
	c := Commit(Paper, mustSecret(t, "s2"))
	b, err := json.Marshal(struct {
		C Commitment `json:"c"`
	}{c})
	require.NoError(t, err)
	assert.Contains(t, string(b), c.String())

	var out struct {
		C Commitment `json:"c"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, c, out.C)

	require.Error(t, json.Unmarshal([]byte(`{"c":"0x1234"}`), &out))
}
