package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Matcher extracts a text fragment from one decoded payload.  matched
// reports whether the matcher recognized the payload's shape; the first
// matcher that recognizes it decides the fragment, even when it is empty.
type Matcher func(v any) (fragment string, matched bool)

// Chain is an ordered list of matchers.
type Chain []Matcher

// DefaultChain tries delta, output, choices, text and finally falls back to
// the stringified value.
var DefaultChain = Chain{MatchDelta, MatchOutput, MatchChoices, MatchText, MatchFallback}

// Extract decodes payload and runs the chain over it.  A payload that is
// not JSON, or is JSON null, is returned unchanged.
func (c Chain) Extract(payload string) string {
	if !json.Valid([]byte(payload)) {
		return payload
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || v == nil {
		return payload
	}
	for _, m := range c {
		if f, ok := m(v); ok {
			return f
		}
	}
	return ""
}

// MatchDelta handles {"delta": "..."} and {"delta": {"content"|"text": ...}}.
func MatchDelta(v any) (string, bool) {
	d := field(v, "delta")
	if !truthy(d) {
		return "", false
	}
	if s, ok := d.(string); ok {
		return s, true
	}
	if c := field(d, "content"); truthy(c) {
		return stringify(c), true
	}
	if t := field(d, "text"); truthy(t) {
		return stringify(t), true
	}
	return "", true
}

// MatchOutput concatenates an output array.  Entries contribute their own
// string value, the text of each content segment, or content.text.
func MatchOutput(v any) (string, bool) {
	out, ok := field(v, "output").([]any)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, o := range out {
		if s, ok := o.(string); ok {
			b.WriteString(s)
			continue
		}
		content := field(o, "content")
		if !truthy(content) {
			continue
		}
		if segs, ok := content.([]any); ok {
			for _, seg := range segs {
				if t := field(seg, "text"); truthy(t) {
					b.WriteString(stringify(t))
				} else {
					b.WriteString(stringify(seg))
				}
			}
			continue
		}
		if t := field(content, "text"); truthy(t) {
			b.WriteString(stringify(t))
		}
	}
	return b.String(), true
}

// MatchChoices concatenates choices[].delta.content or message.content.
func MatchChoices(v any) (string, bool) {
	choices, ok := field(v, "choices").([]any)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for _, ch := range choices {
		if c := field(field(ch, "delta"), "content"); truthy(c) {
			b.WriteString(stringify(c))
		} else if c := field(field(ch, "message"), "content"); truthy(c) {
			b.WriteString(stringify(c))
		}
	}
	return b.String(), true
}

func MatchText(v any) (string, bool) {
	t := field(v, "text")
	if !truthy(t) {
		return "", false
	}
	return stringify(t), true
}

// MatchFallback always matches.  Falsy values yield an empty fragment.
func MatchFallback(v any) (string, bool) {
	if !truthy(v) {
		return "", true
	}
	return stringify(v), true
}

func field(v any, name string) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return obj[name]
}

// truthy follows JavaScript truthiness for decoded JSON values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

// stringify renders scalars as text and anything structured as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
