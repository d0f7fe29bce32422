package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"string passes", "hello", "hello"},
		{"int passes", 42, 42},
		{"float passes", 3.14, 3.14},
		{"bool passes", true, true},
		{"nil becomes empty string", nil, ""},
		{"string list passes", []string{"a", "b"}, []string{"a", "b"}},
		{"mixed list becomes string list", []any{"a", 1, true}, []string{"a", "1", "true"}},
		{"map becomes string", map[string]int{"x": 1}, "map[x:1]"},
		{"struct becomes string", struct{ A int }{7}, "{7}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(Metadata{"key": tt.in})
			assert.Equal(t, tt.want, got["key"])
		})
	}
}

func TestSanitize_AllValuesWellTyped(t *testing.T) {
	md := Sanitize(Metadata{
		"a": nil,
		"b": []byte("raw"),
		"c": []any{1, 2},
		"d": "ok",
		"e": 1.5,
	})

	for key, v := range md {
		switch v.(type) {
		case string, bool, int, int64, float64, []string:
		default:
			t.Errorf("key %q has disallowed type %T", key, v)
		}
	}
}

func TestNormalize(t *testing.T) {
	items := []RawItem{
		{
			Content:  "  First document body.  ",
			Title:    "First",
			FilePath: "/tmp/first.txt",
			FileName: "first.txt",
			FileSize: 21,
			FileType: ".txt",
			MimeType: "text/plain",
			Extra:    Metadata{"source": "file_upload", "tags": []any{"a", 2}},
		},
		{
			Content: "Second.",
			Title:   "Second",
		},
	}

	docs := Normalize(items)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "First document body.", first.Content)
	assert.Equal(t, "First", first.Metadata["title"])
	assert.Equal(t, "first.txt", first.Metadata["file_name"])
	assert.Equal(t, first.ID, first.Metadata["document_id"])
	assert.Equal(t, "file_upload", first.Metadata["source"])
	assert.Equal(t, []string{"a", "2"}, first.Metadata["tags"])
	assert.NotEmpty(t, first.Metadata["ingestion_timestamp"])

	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}
