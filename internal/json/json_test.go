package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int32  `json:"x"`
	Y string `json:"y"`
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(point{X: 1, Y: "a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":"a"}`, string(data))

	var p point
	require.NoError(t, Unmarshal(data, &p))
	assert.Equal(t, point{X: 1, Y: "a"}, p)

	indented, err := MarshalIndent(p, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n  \"x\"")
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(point{X: 2}))

	var p point
	require.NoError(t, NewDecoder(&buf).Decode(&p))
	assert.Equal(t, int32(2), p.X)
}
