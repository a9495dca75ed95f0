// Package decode turns raw queue payloads into client records.
//
// Payloads arrive in several shapes: a JSON object wrapped under "client"
// (or "form"), a bare JSON object, a JSON scalar, or plain text. Each shape
// is handled by a Strategy; strategies are tried in order and the first one
// that applies wins. The text strategy always applies, so decoding never
// fails.
package decode

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lusohub/expressions-maker-a22311749/internal/model"
)

// Payload is the input handed to every strategy.
type Payload struct {
	Raw []byte

	// Doc holds the parsed JSON document when Parsed is true.
	Doc    any
	Parsed bool
}

// Strategy extracts a field map from a payload. It reports false when the
// payload does not have the shape it handles. Strategies must not panic.
type Strategy struct {
	Name    string
	Extract func(p Payload) (map[string]any, bool)
}

// Result is a decoded record plus the strategy that produced it.
type Result struct {
	Record   model.ClientRecord
	Strategy string
}

type Decoder struct {
	strategies []Strategy
}

// New returns a decoder using the given strategies, or the default ladder
// when none are passed. A text fallback is always appended.
func New(strategies ...Strategy) *Decoder {
	if len(strategies) == 0 {
		strategies = []Strategy{Wrapped(), Object(), Scalar()}
	}
	s := make([]Strategy, 0, len(strategies)+1)
	s = append(s, strategies...)
	s = append(s, Text())
	return &Decoder{strategies: s}
}

var defaultDecoder = New()

// Decode decodes raw with the default strategy ladder.
func Decode(raw []byte) model.ClientRecord {
	return defaultDecoder.Decode(raw).Record
}

func (d *Decoder) Decode(raw []byte) Result {
	p := parse(raw)

	for _, s := range d.strategies {
		fields, ok := s.Extract(p)
		if !ok {
			continue
		}
		return Result{Record: buildRecord(fields), Strategy: s.Name}
	}

	// unreachable: Text always applies
	return Result{Record: buildRecord(nil), Strategy: "none"}
}

func parse(raw []byte) Payload {
	p := Payload{Raw: raw}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return p
	}
	// trailing data after the first document means this is not JSON
	if len(bytes.TrimSpace(raw[dec.InputOffset():])) > 0 {
		return p
	}

	p.Doc = doc
	p.Parsed = true
	return p
}

// Wrapped handles {"client": {...}} and the looser {"form": {...}}.
func Wrapped() Strategy {
	return Strategy{
		Name: "wrapped",
		Extract: func(p Payload) (map[string]any, bool) {
			if !p.Parsed {
				return nil, false
			}
			doc, ok := p.Doc.(map[string]any)
			if !ok {
				return nil, false
			}
			for _, key := range []string{"client", "form"} {
				if inner, ok := doc[key].(map[string]any); ok {
					return inner, true
				}
			}
			return nil, false
		},
	}
}

// Object handles a bare JSON object. A JSON null is treated as an empty one.
func Object() Strategy {
	return Strategy{
		Name: "object",
		Extract: func(p Payload) (map[string]any, bool) {
			if !p.Parsed {
				return nil, false
			}
			if p.Doc == nil {
				return map[string]any{}, true
			}
			doc, ok := p.Doc.(map[string]any)
			return doc, ok
		},
	}
}

// Scalar handles any other JSON value by using its text as notes. Arrays
// holding only nulls and empty values give empty notes, like an empty object.
func Scalar() Strategy {
	return Strategy{
		Name: "scalar",
		Extract: func(p Payload) (map[string]any, bool) {
			if !p.Parsed {
				return nil, false
			}
			if blank(p.Doc) {
				return map[string]any{"notes": ""}, true
			}
			return map[string]any{"notes": stringify(p.Doc)}, true
		},
	}
}

// Text uses the raw bytes as notes, replacing invalid UTF-8.
func Text() Strategy {
	return Strategy{
		Name: "text",
		Extract: func(p Payload) (map[string]any, bool) {
			return map[string]any{"notes": strings.ToValidUTF8(string(p.Raw), "�")}, true
		},
	}
}

func buildRecord(fields map[string]any) model.ClientRecord {
	rec := model.ClientRecord{
		Name:             field(fields, "name"),
		Email:            field(fields, "email"),
		Phone:            field(fields, "phone"),
		Company:          field(fields, "company"),
		Address:          field(fields, "address"),
		PreferredContact: field(fields, "preferred_contact"),
		Notes:            field(fields, "notes"),
	}

	if rec.Name == "" {
		if rec.Notes == "" {
			rec.Notes = dump(fields)
			rec.NotesSynthesized = true
			rec.SourceBlank = blank(fields)
		}
		rec.Name = model.PlaceholderName
		rec.NamePlaceholder = true
	}
	return rec
}

func field(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// dump renders every key of the resolved mapping, known or not, so content
// in unexpected fields still reaches the webhook.
func dump(fields map[string]any) string {
	if len(fields) == 0 {
		return "{}"
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// blank reports whether v holds nothing but nulls, whitespace and empty
// containers.
func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		for _, e := range t {
			if !blank(e) {
				return false
			}
		}
		return true
	case []any:
		for _, e := range t {
			if !blank(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
