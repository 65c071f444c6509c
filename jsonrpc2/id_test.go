package jsonrpc2

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_RoundTripsNumberAndString(t *testing.T) {
	var id ID
	require.NoError(t, json.Unmarshal([]byte(`42`), &id))
	out, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "42", string(out))
	assert.False(t, id.IsZero())

	var strID ID
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &strID))
	out, err = json.Marshal(strID)
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(out))
}

func TestID_NullIsZero(t *testing.T) {
	var id ID
	require.NoError(t, json.Unmarshal([]byte(`null`), &id))
	assert.True(t, id.IsZero())

	out, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestID_KeyIsComparable(t *testing.T) {
	a := NewID([]byte(`7`))
	b := NewID([]byte(`7`))
	c := NewID([]byte(`8`))

	m := map[string]bool{}
	m[a.Key()] = true
	assert.True(t, m[b.Key()])
	assert.False(t, m[c.Key()])
}
