// Package extract turns unreliable generator output into a canonical
// ontology. Extraction is pure: the same input always yields the same
// result, and no input causes a panic.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/brunobiangulo/goontology/ontology"
)

// Extract locates the JSON object in raw, checks for a generator-reported
// error and normalizes every relationship.
func Extract(raw string) (*ontology.Ontology, error) {
	v, ok := firstValue(candidates(raw, '{', '}'), isObject)
	if !ok {
		return nil, &Error{Kind: KindNoJSONFound, Message: "no JSON object found in generator output", Raw: raw}
	}
	obj := v.(map[string]any)

	if err := reportedError(obj, raw); err != nil {
		return nil, err
	}

	o := ontology.New(ontology.NormalizeName(scalarString(obj["domain"]), ontology.UnknownDomain))

	switch rels := obj["relationships"].(type) {
	case nil:
	case []any:
		o.Relationships = make([]ontology.Relationship, 0, len(rels))
		for i, item := range rels {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &Error{
					Kind:    KindInvalidShape,
					Message: "relationship " + strconv.Itoa(i) + " is not an object",
					Raw:     raw,
				}
			}
			o.Relationships = append(o.Relationships, normalizeRelationship(m))
		}
	default:
		return nil, &Error{Kind: KindInvalidShape, Message: "relationships is not an array", Raw: raw}
	}

	return o, nil
}

// reportedError returns a GeneratorReportedError when obj carries a
// non-null "error" value.
func reportedError(obj map[string]any, raw string) error {
	v, ok := obj["error"]
	if !ok || v == nil {
		return nil
	}
	msg := scalarString(v)
	if msg == "" {
		if data, err := json.Marshal(v); err == nil && string(data) != `""` {
			msg = string(data)
		}
	}
	if strings.TrimSpace(msg) == "" {
		msg = "generator reported an error"
	}
	return &Error{Kind: KindGeneratorReportedError, Message: msg, Raw: raw}
}

func normalizeRelationship(m map[string]any) ontology.Relationship {
	return ontology.Relationship{
		From:            ontology.NormalizeName(scalarString(m["from"]), ontology.UnknownSource),
		Relationship:    ontology.NormalizeName(scalarString(m["relationship"]), ontology.DefaultRelationship),
		To:              ontology.NormalizeName(scalarString(m["to"]), ontology.UnknownTarget),
		Category:        ontology.NormalizeCategory(scalarString(m["category"])),
		FromCardinality: ontology.NormalizeCardinality(scalarString(lookup(m, "fromCardinality", "from_cardinality"))),
		ToCardinality:   ontology.NormalizeCardinality(scalarString(lookup(m, "toCardinality", "to_cardinality"))),
		Details:         normalizeDetails(m["details"]),
	}
}

// lookup returns the first non-null value among keys.
func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// scalarString renders strings, numbers and booleans as text. Objects,
// arrays and null yield "".
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
