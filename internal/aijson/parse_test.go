package aijson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
		ok   bool
	}{
		{
			name: "plain json",
			raw:  `{"k":1}`,
			want: map[string]any{"k": float64(1)},
			ok:   true,
		},
		{
			name: "fenced with language tag",
			raw:  "```json\n{\"k\":1}\n```",
			want: map[string]any{"k": float64(1)},
			ok:   true,
		},
		{
			name: "fenced without language tag",
			raw:  "Here you go:\n```\n[{\"q\":\"x\"}]\n```\nEnjoy",
			want: []any{map[string]any{"q": "x"}},
			ok:   true,
		},
		{
			name: "brace scan with trailing comma repair",
			raw:  `prefix {"a":[1,2,],} suffix`,
			want: map[string]any{"a": []any{float64(1), float64(2)}},
			ok:   true,
		},
		{
			name: "brace scan nested",
			raw:  "Sure! {\"sections\": [{\"title\": \"Intro\", \"points\": [\"a\",]},]} hope this helps",
			want: map[string]any{"sections": []any{map[string]any{"title": "Intro", "points": []any{"a"}}}},
			ok:   true,
		},
		{
			name: "no json",
			raw:  "no json here",
			ok:   false,
		},
		{
			name: "empty",
			raw:  "   ",
			ok:   false,
		},
		{
			name: "unbalanced braces",
			raw:  "} oops {",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SafeParse(tt.raw)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestSafeParseDirectWinsOverFence(t *testing.T) {
	got, ok := SafeParse(`"plain string"`)
	require.True(t, ok)
	assert.Equal(t, "plain string", got)
}

func TestDecode(t *testing.T) {
	var out struct {
		Cards []struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		} `json:"cards"`
	}
	ok := Decode("```json\n{\"cards\":[{\"question\":\"Q\",\"answer\":\"A\"}]}\n```", &out)
	require.True(t, ok)
	require.Len(t, out.Cards, 1)
	assert.Equal(t, "A", out.Cards[0].Answer)

	assert.False(t, Decode("nothing", &out))
}
