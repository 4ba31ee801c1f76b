package textsplit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentis-ai/mentis/internal/pkg/textsplit"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{name: "valid", chunkSize: 512, overlap: 64, wantErr: false},
		{name: "zero overlap", chunkSize: 100, overlap: 0, wantErr: false},
		{name: "zero chunk size", chunkSize: 0, overlap: 0, wantErr: true},
		{name: "negative overlap", chunkSize: 100, overlap: -1, wantErr: true},
		{name: "overlap equals chunk size", chunkSize: 100, overlap: 100, wantErr: true},
		{name: "overlap exceeds chunk size", chunkSize: 100, overlap: 200, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := textsplit.New(tt.chunkSize, tt.overlap)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, s)
			}
		})
	}
}

func TestSplitShortInput(t *testing.T) {
	s, err := textsplit.New(512, 64)
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "whitespace only", input: "  \n\t  ", expected: nil},
		{name: "short text", input: "A brief clinical note.", expected: []string{"A brief clinical note."}},
		{name: "trims surrounding whitespace", input: "  padded note  \n", expected: []string{"padded note"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.Split(tt.input))
		})
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s, err := textsplit.New(100, 10)
	require.NoError(t, err)

	para1 := strings.Repeat("alpha ", 12) // 72 bytes
	para2 := strings.Repeat("beta ", 20)
	text := para1 + "\n\n" + para2

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	// The first window covers the paragraph break, so the first chunk
	// must end at it rather than cut inside para2.
	assert.Equal(t, strings.TrimSpace(para1), chunks[0])
}

func TestSplitAdvancesPastBoundaryInOverlap(t *testing.T) {
	s, err := textsplit.New(100, 10)
	require.NoError(t, err)

	// After the first cut at the paragraph break, the break sits inside
	// the overlap region of the second window. Taking it again would
	// reset the window to where it already was; the splitter must skip
	// it and keep moving.
	text := strings.Repeat("alpha ", 12) + "\n\n" + strings.Repeat("beta ", 60)

	chunks := s.Split(text)
	require.Greater(t, len(chunks), 2)

	// Consecutive chunks start at strictly increasing offsets.
	prev := -1
	for i, c := range chunks {
		pos := strings.Index(text[prev+1:], c)
		require.GreaterOrEqual(t, pos, 0, "chunk %d does not advance", i)
		prev += pos + 1
	}
}

func TestSplitChunkBounds(t *testing.T) {
	s, err := textsplit.New(120, 20)
	require.NoError(t, err)

	text := strings.Repeat("The patient reported improved sleep. ", 40)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 120, "chunk %d too long", i)
		assert.GreaterOrEqual(t, len(c), textsplit.MinChunkLen, "chunk %d below floor", i)
	}
}

func TestSplitCoversAllContent(t *testing.T) {
	s, err := textsplit.New(100, 20)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Sentence number ")
		sb.WriteString(strings.Repeat("x", i%7))
		sb.WriteString(" ends here. ")
	}
	text := strings.TrimSpace(sb.String())

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)

	// Every chunk is a verbatim span of the input, and consecutive
	// chunks advance through the text.
	last := 0
	for i, c := range chunks {
		pos := strings.Index(text[last:], c)
		require.GreaterOrEqual(t, pos, 0, "chunk %d not found after offset %d", i, last)
		last += pos + 1
	}
}

func TestSplitDeterministic(t *testing.T) {
	s, err := textsplit.New(256, 32)
	require.NoError(t, err)

	text := strings.Repeat("Anamnese: unauffällig. Befund: stabil.\n\n", 30)
	first := s.Split(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Split(text))
	}
}

func TestSplitDropsShortTail(t *testing.T) {
	s, err := textsplit.New(100, 0)
	require.NoError(t, err)

	// 100 bytes of body, then a remainder far below the floor.
	body := strings.Repeat("a", 98) + ". "
	text := body + "tail"

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotEqual(t, "tail", c)
	}
}

func TestSplitMultibyteSafe(t *testing.T) {
	s, err := textsplit.New(65, 8)
	require.NoError(t, err)

	// No separators at all forces raw cuts through multi-byte runes.
	text := strings.Repeat("äöüß", 100)
	for _, c := range s.Split(text) {
		assert.True(t, strings.ToValidUTF8(c, "") == c, "chunk contains an invalid rune boundary")
	}
}
