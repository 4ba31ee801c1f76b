package json

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID    int            `json:"id"`
	Name  string         `json:"name"`
	Meta  map[string]any `json:"meta,omitempty"`
	Score float64        `json:"score"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := payload{
		ID:    7,
		Name:  "Befundbericht",
		Meta:  map[string]any{"page": float64(3)},
		Score: 0.91,
	}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestUnmarshalInvalidInput(t *testing.T) {
	var out payload
	assert.Error(t, Unmarshal([]byte("{not json"), &out))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(payload{ID: 1, Name: "x"}))

	var out payload
	require.NoError(t, NewDecoder(strings.NewReader(buf.String())).Decode(&out))
	assert.Equal(t, 1, out.ID)
	assert.Equal(t, "x", out.Name)
}

func TestBackendSelection(t *testing.T) {
	fast := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, fast, IsUsingSonic())
}
