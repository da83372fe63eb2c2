package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{name: "bare object", text: `{"a":1}`, want: `{"a":1}`},
		{name: "surrounded by prose", text: "Here you go:\n{\"a\":1}\nThanks!", want: `{"a":1}`},
		{name: "json fence", text: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "plain fence", text: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "nested objects", text: `x {"a":{"b":{}}} y`, want: `{"a":{"b":{}}}`},
		{name: "braces inside strings", text: `{"a":"}{","b":"\"}"}`, want: `{"a":"}{","b":"\"}"}`},
		{name: "first object wins", text: `{"a":1} {"b":2}`, want: `{"a":1}`},
		{name: "unclosed brace before object", text: `{ oops {"a":1}`, want: `{"a":1}`},
		{name: "empty", text: "", wantErr: ErrNoJSONObject},
		{name: "prose only", text: "no json here", wantErr: ErrNoJSONObject},
		{name: "array", text: `[1, 2, 3]`, wantErr: ErrNoJSONObject},
		{name: "invalid object", text: `{title: T}`, wantErr: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestParsePayloadCoercion(t *testing.T) {
	payload, err := ParsePayload(`{
		"title": "  T  ",
		"description": 5,
		"tasks": [
			{"id": 7, "title": "A", "files": "main.go", "dependencies": [1, "", null, "t0"], "priority": "HIGH"},
			"Write docs",
			42,
			null,
			{"title": "B", "status": "completed"}
		]
	}`)
	require.NoError(t, err)

	assert.Equal(t, "T", payload.Title)
	assert.Equal(t, "5", payload.Description)
	require.Len(t, payload.Tasks, 5)

	first := payload.Tasks[0]
	assert.Equal(t, RawObject, first.Kind)
	assert.Equal(t, "7", first.ID)
	assert.Equal(t, []string{"main.go"}, first.Files)
	assert.True(t, first.HasFiles)
	assert.Equal(t, []string{"1", "t0"}, first.Dependencies)
	assert.Equal(t, "high", first.Priority)

	assert.Equal(t, RawTask{Kind: RawText, Title: "Write docs"}, payload.Tasks[1])
	assert.Equal(t, RawOther, payload.Tasks[2].Kind)
	assert.Equal(t, RawOther, payload.Tasks[3].Kind)

	last := payload.Tasks[4]
	assert.Equal(t, "completed", last.Status)
	assert.False(t, last.HasDeps)
	assert.Nil(t, last.Dependencies)
}

func TestParsePayloadTasksNotArray(t *testing.T) {
	for _, text := range []string{`{"title":"T"}`, `{"tasks":{"id":"t1"}}`, `{"tasks":"t1"}`, `{"tasks":null}`} {
		t.Run(text, func(t *testing.T) {
			payload, err := ParsePayload(text)
			require.NoError(t, err)
			assert.Empty(t, payload.Tasks)
		})
	}
}
