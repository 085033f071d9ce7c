// Package extraction turns free-form inference output into validated JSON.
//
// Every stage goes through the same steps: decode the text directly, and if
// that fails, slice from the first opening bracket of the expected shape to
// the last closing one and decode that. The slice is a heuristic for JSON
// wrapped in prose. It is not a parser: a bracket inside a string value
// before the payload starts or after it ends can defeat it, in which case the
// call fails with an ExtractionError rather than guessing.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/validation"
)

// Shape is the top-level JSON kind a stage expects.
type Shape int

const (
	Object Shape = iota
	Array
)

func (s Shape) String() string {
	if s == Array {
		return "array"
	}
	return "object"
}

func (s Shape) brackets() (open, close byte) {
	if s == Array {
		return '[', ']'
	}
	return '{', '}'
}

// Extracted is a successfully recovered payload in compact form.
type Extracted struct {
	Payload json.RawMessage
	// Recovered is true when the payload had to be sliced out of
	// surrounding text.
	Recovered bool
}

// Extract recovers a payload of the given shape from raw and validates it
// against schema (nil skips validation). It returns *errors.ExtractionError
// when no payload can be found and *errors.ValidationError when the payload
// breaks the schema.
func Extract(stage, raw string, shape Shape, schema *validation.Schema) (Extracted, error) {
	text := stripFence(strings.TrimSpace(raw))

	payload, ok := decode(text, shape)
	recovered := false
	if !ok {
		open, close := shape.brackets()
		start := strings.IndexByte(text, open)
		end := strings.LastIndexByte(text, close)
		if start < 0 || end <= start {
			return Extracted{}, &apperrors.ExtractionError{
				Stage:   stage,
				Reason:  fmt.Sprintf("no JSON %s found in output", shape),
				RawText: raw,
			}
		}
		payload, ok = decode(text[start:end+1], shape)
		if !ok {
			return Extracted{}, &apperrors.ExtractionError{
				Stage:   stage,
				Reason:  fmt.Sprintf("recovered %s is not valid JSON", shape),
				RawText: raw,
			}
		}
		recovered = true
	}

	if schema != nil {
		if err := check(stage, raw, payload, schema); err != nil {
			return Extracted{}, err
		}
	}
	return Extracted{Payload: payload, Recovered: recovered}, nil
}

// ItemDiagnostic records why one array element was dropped.
type ItemDiagnostic struct {
	Index  int             `json:"index"`
	Reason string          `json:"reason"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// Item is one element that passed validation, with its position in the
// original array.
type Item struct {
	Index int
	Raw   json.RawMessage
}

// Items is the result of an array extraction with per-element validation.
type Items struct {
	Elements  []Item
	Dropped   []ItemDiagnostic
	Recovered bool
}

// ExtractItems recovers an array and validates each element against
// itemSchema on its own. Invalid elements are dropped with a diagnostic; only
// a missing or undecodable array fails the call. An empty array is valid.
func ExtractItems(stage, raw string, itemSchema *validation.Schema) (Items, error) {
	ex, err := Extract(stage, raw, Array, nil)
	if err != nil {
		return Items{}, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(ex.Payload, &elements); err != nil {
		return Items{}, &apperrors.ExtractionError{Stage: stage, Reason: err.Error(), RawText: raw}
	}

	out := Items{Recovered: ex.Recovered, Elements: make([]Item, 0, len(elements))}
	for i, el := range elements {
		if itemSchema != nil {
			if res := itemSchema.Validate(el); !res.Valid {
				out.Dropped = append(out.Dropped, ItemDiagnostic{
					Index:  i,
					Reason: strings.Join(res.GetErrorMessages(), "; "),
					Raw:    el,
				})
				continue
			}
		}
		out.Elements = append(out.Elements, Item{Index: i, Raw: el})
	}
	return out, nil
}

func decode(text string, shape Shape) (json.RawMessage, bool) {
	open, _ := shape.brackets()
	if len(text) == 0 || text[0] != open || !json.Valid([]byte(text)) {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func check(stage, raw string, payload []byte, schema *validation.Schema) error {
	res := schema.Validate(payload)
	if res.Valid {
		return nil
	}
	problems := make([]apperrors.FieldProblem, len(res.Errors))
	for i, e := range res.Errors {
		problems[i] = apperrors.FieldProblem{Field: e.Field, Message: e.Message}
	}
	return &apperrors.ValidationError{Stage: stage, Problems: problems, RawText: raw}
}

// stripFence removes a surrounding markdown code fence such as ```json.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
