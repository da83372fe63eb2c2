package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoJSONObject is returned when generated text contains no brace-delimited object.
	ErrNoJSONObject = errors.New("no JSON object found in response")
	// ErrMalformedPayload is returned when the extracted object cannot be decoded.
	ErrMalformedPayload = errors.New("malformed plan payload")
)

// RawKind tags what shape a raw task entry had in the payload.
type RawKind int

const (
	RawObject RawKind = iota // JSON object with task fields
	RawText                  // bare string, used as the title
	RawOther                 // anything else; cannot become a task
)

// RawTask is a task candidate taken from untrusted generated JSON. Every
// field has already been coerced to a Go type; presence is tracked so the
// builder can tell "missing" from "empty".
type RawTask struct {
	Kind          RawKind
	ID            string
	Title         string
	Description   string
	Files         []string
	Dependencies  []string
	EstimatedTime string
	Priority      string
	Status        string
	HasFiles      bool
	HasDeps       bool
}

// RawPayload is the coerced top-level document.
type RawPayload struct {
	Title       string
	Description string
	Tasks       []RawTask
}

// ParsePayload extracts the first top-level JSON object from text and
// coerces it into a RawPayload. A missing or non-array "tasks" field yields
// an empty task list, not an error.
func ParsePayload(text string) (RawPayload, error) {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return RawPayload{}, err
	}

	var fields map[string]json.RawMessage
	if err := decode(obj, &fields); err != nil {
		return RawPayload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	payload := RawPayload{
		Title:       scalarString(fields["title"]),
		Description: scalarString(fields["description"]),
	}

	var entries []json.RawMessage
	if raw, ok := fields["tasks"]; ok && decode(raw, &entries) == nil {
		for _, entry := range entries {
			payload.Tasks = append(payload.Tasks, parseRawTask(entry))
		}
	}

	return payload, nil
}

func parseRawTask(data json.RawMessage) RawTask {
	var fields map[string]json.RawMessage
	if decode(data, &fields) == nil && fields != nil {
		files, hasFiles := stringList(fields["files"])
		deps, hasDeps := stringList(fields["dependencies"])
		return RawTask{
			Kind:          RawObject,
			ID:            scalarString(fields["id"]),
			Title:         scalarString(fields["title"]),
			Description:   scalarString(fields["description"]),
			Files:         files,
			Dependencies:  deps,
			EstimatedTime: scalarString(fields["estimatedTime"]),
			Priority:      strings.ToLower(scalarString(fields["priority"])),
			Status:        scalarString(fields["status"]),
			HasFiles:      hasFiles,
			HasDeps:       hasDeps,
		}
	}

	var text string
	if decode(data, &text) == nil && strings.TrimSpace(text) != "" {
		return RawTask{Kind: RawText, Title: strings.TrimSpace(text)}
	}

	return RawTask{Kind: RawOther}
}

// decode unmarshals using json.Number so numeric ids keep their exact text.
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// scalarString coerces a JSON string or number to a trimmed string.
// Anything else, including absence, becomes "".
func scalarString(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var v any
	if decode(data, &v) != nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	}
	return ""
}

// stringList coerces an array of scalars (or a single scalar) to strings.
// Empty and non-scalar elements are dropped. The boolean reports whether the
// field was present at all.
func stringList(data json.RawMessage) ([]string, bool) {
	if len(data) == 0 {
		return nil, false
	}

	var items []json.RawMessage
	if decode(data, &items) != nil {
		if s := scalarString(data); s != "" {
			return []string{s}, true
		}
		return nil, true
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	return out, true
}

// ExtractJSONObject returns the first top-level brace-delimited substring of
// text that parses as JSON. Markdown code fences are ignored. Braces inside
// JSON strings do not affect matching.
func ExtractJSONObject(text string) ([]byte, error) {
	text = stripMarkdownCodeBlocks(text)

	start := strings.IndexByte(text, '{')
	for start != -1 {
		if end := matchBrace(text, start); end != -1 {
			candidate := []byte(text[start : end+1])
			if json.Valid(candidate) {
				return candidate, nil
			}
			return nil, fmt.Errorf("%w: extracted content is not valid JSON", ErrMalformedPayload)
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}

	return nil, ErrNoJSONObject
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(text string, open int) int {
	depth := 0
	inString := false
	escaped := false

	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripMarkdownCodeBlocks removes a surrounding ``` or ```json fence.
func stripMarkdownCodeBlocks(s string) string {
	s = strings.TrimSpace(s)
	if cut, found := strings.CutPrefix(s, "```json"); found {
		s = cut
	} else if cut, found := strings.CutPrefix(s, "```"); found {
		s = cut
	}
	if cut, found := strings.CutSuffix(s, "```"); found {
		s = cut
	}
	return strings.TrimSpace(s)
}
