package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crateslsp/internal/source"
)

const uri = "file:///project/Cargo.toml"

func rangeAt(startLine, startChar, endLine, endChar int) *source.Range {
	return &source.Range{
		Start: source.Position{Line: startLine, Character: startChar},
		End:   source.Position{Line: endLine, Character: endChar},
	}
}

func TestOpenGetClose(t *testing.T) {
	store := NewStore()
	store.Open(uri, "[dependencies]\n", 1)

	text, version, ok := store.Get(uri)
	require.True(t, ok)
	assert.Equal(t, "[dependencies]\n", text)
	assert.Equal(t, int32(1), version)

	assert.True(t, store.Close(uri))
	_, _, ok = store.Get(uri)
	assert.False(t, ok)
	assert.False(t, store.Close(uri))
}

func TestApplyFullReplacement(t *testing.T) {
	store := NewStore()
	store.Open(uri, "old text", 1)

	text, err := store.ApplyChanges(uri, []Change{{Text: "new text"}}, 2)
	require.NoError(t, err)
	assert.Equal(t, "new text", text)

	_, version, _ := store.Get(uri)
	assert.Equal(t, int32(2), version)
}

func TestIncrementalChangesMatchFullReplacement(t *testing.T) {
	initial := "[dependencies]\nserde = \"1.0\"\n"
	final := "[dependencies]\nserde = \"1.0.219\"\ntokio = \"1\"\n"

	incremental := NewStore()
	incremental.Open(uri, initial, 1)

	// Replace "1.0" with "1.0.219" inside the quotes.
	_, err := incremental.ApplyChanges(uri, []Change{
		{Range: rangeAt(1, 9, 1, 12), Text: "1.0.219"},
	}, 2)
	require.NoError(t, err)

	// Append a line at end-of-file.
	_, err = incremental.ApplyChanges(uri, []Change{
		{Range: rangeAt(2, 0, 2, 0), Text: "tokio = \"1\"\n"},
	}, 3)
	require.NoError(t, err)

	full := NewStore()
	full.Open(uri, initial, 1)
	_, err = full.ApplyChanges(uri, []Change{{Text: final}}, 3)
	require.NoError(t, err)

	gotIncremental, _, _ := incremental.Get(uri)
	gotFull, _, _ := full.Get(uri)
	assert.Equal(t, gotFull, gotIncremental)
}

func TestMultiLineDeletion(t *testing.T) {
	store := NewStore()
	store.Open(uri, "one\ntwo\nthree\nfour\n", 1)

	text, err := store.ApplyChanges(uri, []Change{
		{Range: rangeAt(1, 0, 3, 0), Text: ""},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, "one\nfour\n", text)
}

func TestChangeSpanningLineBoundary(t *testing.T) {
	store := NewStore()
	store.Open(uri, "ab\ncd\n", 1)

	text, err := store.ApplyChanges(uri, []Change{
		{Range: rangeAt(0, 1, 1, 1), Text: "X"},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, "aXd\n", text)
}

func TestOutOfBoundsChangeIsAnError(t *testing.T) {
	store := NewStore()
	store.Open(uri, "short\n", 1)

	_, err := store.ApplyChanges(uri, []Change{
		{Range: rangeAt(5, 0, 5, 1), Text: "x"},
	}, 2)
	assert.Error(t, err)

	// The tracked version still advances for full-sync recovery.
	_, version, _ := store.Get(uri)
	assert.Equal(t, int32(2), version)
}

func TestApplyChangesUnknownDocument(t *testing.T) {
	store := NewStore()
	_, err := store.ApplyChanges(uri, []Change{{Text: "x"}}, 1)
	assert.Error(t, err)
}

func TestApplySave(t *testing.T) {
	store := NewStore()
	store.Open(uri, "tracked", 3)

	// Save without text keeps the tracked content.
	text, version, ok := store.ApplySave(uri, nil)
	require.True(t, ok)
	assert.Equal(t, "tracked", text)
	assert.Equal(t, int32(3), version)

	// Save with synchronized text replaces it.
	saved := "from disk"
	text, _, ok = store.ApplySave(uri, &saved)
	require.True(t, ok)
	assert.Equal(t, "from disk", text)

	_, _, ok = store.ApplySave("file:///other/Cargo.toml", nil)
	assert.False(t, ok)
}

func TestUTF16AwareEdit(t *testing.T) {
	store := NewStore()
	// The emoji occupies two UTF-16 units, so "end" starts at unit 2.
	store.Open(uri, "\U0001F642end", 1)

	text, err := store.ApplyChanges(uri, []Change{
		{Range: rangeAt(0, 2, 0, 5), Text: "start"},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, "\U0001F642start", text)
}
