package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONC(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{
			name: "comments and trailing commas",
			input: `{
  // pick the stream recorder
  "audio": { "recorder": "stream", /* keep */ },
  "subjects": ["math", "science",],
}`,
			want: map[string]any{
				"audio":    map[string]any{"recorder": "stream"},
				"subjects": []any{"math", "science"},
			},
		},
		{
			name:  "comment markers inside strings survive",
			input: `{"base_url": "http://localhost:3001/api//v1", "note": "a /* b */ c, ]",}`,
			want: map[string]any{
				"base_url": "http://localhost:3001/api//v1",
				"note":     "a /* b */ c, ]",
			},
		},
		{
			name:  "escaped quote does not end the string",
			input: `{"voice": "say \"hi\" // now"}`,
			want:  map[string]any{"voice": `say "hi" // now`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := normalizeJSONC(tc.input)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal([]byte(normalized), &got))
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeJSONCUnterminatedBlockComment(t *testing.T) {
	_, err := normalizeJSONC(`{"speech": { /* engine`)
	require.ErrorContains(t, err, "unterminated block comment")
}

func TestEnsureSingleJSONValue(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"speech":{}} {"audio":{}}`))
	var first map[string]any
	require.NoError(t, decoder.Decode(&first))
	require.ErrorContains(t, ensureSingleJSONValue(decoder), "multiple JSON values")

	decoder = json.NewDecoder(strings.NewReader(`{"speech":{}}  `))
	require.NoError(t, decoder.Decode(&first))
	require.NoError(t, ensureSingleJSONValue(decoder))
}

func TestOffsetToLineCol(t *testing.T) {
	content := "{\n  \"audio\": 1,\n}"
	tests := []struct {
		offset int64
		line   int
		col    int
	}{
		{offset: 1, line: 1, col: 1},
		{offset: 5, line: 2, col: 3},
		{offset: 999, line: 3, col: 1},
	}
	for _, tc := range tests {
		line, col := offsetToLineCol(content, tc.offset)
		require.Equal(t, tc.line, line, "offset %d", tc.offset)
		require.Equal(t, tc.col, col, "offset %d", tc.offset)
	}
}
