package extract

import (
	"strings"

	"github.com/brunobiangulo/goontology/ontology"
)

// detailsListKeys are the wrapper keys accepted around a details array.
var detailsListKeys = []string{"details", "relationships", "items", "results"}

// ExtractDetails locates a JSON array of detail objects in raw. Arrays with
// no object element, such as a "[2]" in prose, are skipped. An object
// wrapping such an array, or a single detail object, is accepted too.
// Elements that are not objects, or carry no detail fields, yield nil.
func ExtractDetails(raw string) ([]*ontology.Details, error) {
	cands := append(candidates(raw, '[', ']'), candidates(raw, '{', '}')...)
	v, ok := firstValue(cands, func(v any) bool {
		switch x := v.(type) {
		case []any:
			return hasObject(x)
		case map[string]any:
			return true
		}
		return false
	})
	if !ok {
		return nil, &Error{Kind: KindNoJSONFound, Message: "no JSON array found in generator output", Raw: raw}
	}

	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case map[string]any:
		if err := reportedError(x, raw); err != nil {
			return nil, err
		}
		items = unwrapDetails(x)
		if items == nil {
			return nil, &Error{Kind: KindInvalidShape, Message: "object does not contain a details array", Raw: raw}
		}
	}

	out := make([]*ontology.Details, len(items))
	for i, item := range items {
		out[i] = normalizeDetails(item)
	}
	return out, nil
}

func hasObject(items []any) bool {
	for _, item := range items {
		if _, ok := item.(map[string]any); ok {
			return true
		}
	}
	return false
}

func unwrapDetails(obj map[string]any) []any {
	for _, k := range detailsListKeys {
		if list, ok := obj[k].([]any); ok {
			return list
		}
	}
	if d := normalizeDetails(obj); d != nil {
		return []any{obj}
	}
	return nil
}

// normalizeDetails accepts snake_case and camelCase keys. Anything that is
// not an object, or has no non-empty field, yields nil.
func normalizeDetails(v any) *ontology.Details {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	d := &ontology.Details{
		FromDefinition:          strings.TrimSpace(scalarString(lookup(m, "from_definition", "fromDefinition"))),
		ToDefinition:            strings.TrimSpace(scalarString(lookup(m, "to_definition", "toDefinition"))),
		RelationshipExplanation: strings.TrimSpace(scalarString(lookup(m, "relationship_explanation", "relationshipExplanation"))),
		Examples:                examples(m["examples"]),
		Significance:            strings.TrimSpace(scalarString(m["significance"])),
	}
	if d.IsZero() {
		return nil
	}
	return d
}

// examples accepts an array of scalars or a single string.
func examples(v any) []string {
	var out []string
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if s := strings.TrimSpace(scalarString(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, s)
		}
	case nil:
	default:
		if s := scalarString(x); s != "" {
			out = append(out, s)
		}
	}
	return out
}
