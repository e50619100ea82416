package client

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// FetchRequest identifies one logical fetch: a resource path plus query
// parameters. It is a value object; the executor and the pagination layer
// derive new requests instead of mutating an existing one.
type FetchRequest struct {
	Resource string
	Params   url.Values
}

// WithParam returns a copy of the request with one parameter overwritten.
func (r FetchRequest) WithParam(key, value string) FetchRequest {
	params := cloneValues(r.Params)
	params.Set(key, value)
	return FetchRequest{Resource: r.Resource, Params: params}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, vals := range v {
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// PageEnvelope is the parsed result of one fetch: the page's records in
// order plus the pagination metadata used to decide termination.
type PageEnvelope struct {
	Items       []json.RawMessage
	CurrentPage int
	TotalPages  int
}

// LastPage reports whether this envelope marks the final page.
func (e *PageEnvelope) LastPage() bool {
	return e.CurrentPage == e.TotalPages
}

// Shape selects how response bodies map onto a PageEnvelope. Which endpoint
// uses which shape is per-integration configuration, not inferred from the
// body.
type Shape struct {
	namespace string
	flat      bool
}

// NestedShape decodes the nested-envelope form
// {"<namespace>": {"pages": P, "currentPage": C, "results": [...]}}.
func NestedShape(namespace string) Shape {
	return Shape{namespace: namespace}
}

// FlatShape decodes a bare JSON array with no pagination metadata as a
// single-page result.
func FlatShape() Shape {
	return Shape{flat: true}
}

// Decode parses body according to the shape. Malformed structure yields a
// decode error, which is never retried.
func (s Shape) Decode(body []byte) (*PageEnvelope, error) {
	if s.flat {
		return decodeFlat(body)
	}
	return decodeNested(body, s.namespace)
}

func decodeFlat(body []byte) (*PageEnvelope, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "expected flat JSON array", Err: err}
	}
	return &PageEnvelope{Items: items, CurrentPage: 1, TotalPages: 1}, nil
}

func decodeNested(body []byte, namespace string) (*PageEnvelope, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "expected JSON object", Err: err}
	}

	raw, ok := doc[namespace]
	if !ok {
		return nil, &Error{
			Kind:    KindDecode,
			Message: fmt.Sprintf("namespace %q missing from response", namespace),
		}
	}

	var page struct {
		Pages       int               `json:"pages"`
		CurrentPage int               `json:"currentPage"`
		Results     []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "malformed page envelope", Err: err}
	}

	if page.CurrentPage < 1 || page.Pages < page.CurrentPage {
		return nil, &Error{
			Kind:    KindDecode,
			Message: fmt.Sprintf("inconsistent pagination metadata: currentPage=%d pages=%d", page.CurrentPage, page.Pages),
		}
	}

	// Results may be absent on an empty page.
	return &PageEnvelope{
		Items:       page.Results,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.Pages,
	}, nil
}
