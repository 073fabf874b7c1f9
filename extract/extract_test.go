package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/goontology/ontology"
)

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind)
	return e
}

func TestExtractEmptyRelationships(t *testing.T) {
	o, err := Extract(`{"domain":"pets","relationships":[]}`)
	require.NoError(t, err)
	assert.Equal(t, "pets", o.Domain)
	assert.NotNil(t, o.Relationships)
	assert.Empty(t, o.Relationships)
}

func TestExtractSingleRelationship(t *testing.T) {
	o, err := Extract(`{"domain":"pets","relationships":[{"from":"dog","relationship":"is-a","to":"animal"}]}`)
	require.NoError(t, err)
	require.Len(t, o.Relationships, 1)

	r := o.Relationships[0]
	assert.Equal(t, "dog", r.From)
	assert.Equal(t, "is-a", r.Relationship)
	assert.Equal(t, "animal", r.To)
	assert.Equal(t, ontology.DefaultCategory, r.Category)
	assert.Equal(t, "1", r.FromCardinality)
	assert.Equal(t, "1", r.ToCardinality)
	assert.Nil(t, r.Details)
}

func TestExtractFromProse(t *testing.T) {
	o, err := Extract(`Sure! Here is the ontology: {"domain":"x","relationships":[]} Hope that helps.`)
	require.NoError(t, err)
	assert.Equal(t, "x", o.Domain)
}

func TestExtractNoJSON(t *testing.T) {
	for _, raw := range []string{"not json at all", "", "   ", "[1,2,3]", `"just a string"`, "{ unterminated"} {
		t.Run(raw, func(t *testing.T) {
			e := requireKind(t, errOnly(Extract(raw)), KindNoJSONFound)
			assert.Equal(t, raw, e.Raw)
		})
	}
}

func errOnly(_ *ontology.Ontology, err error) error { return err }

func TestExtractGeneratorReportedError(t *testing.T) {
	e := requireKind(t, errOnly(Extract(`{"error":"model overloaded"}`)), KindGeneratorReportedError)
	assert.Contains(t, e.Message, "model overloaded")

	e = requireKind(t, errOnly(Extract(`{"error":{"code":503}}`)), KindGeneratorReportedError)
	assert.Contains(t, e.Message, "503")

	// A null error is not a reported error.
	o, err := Extract(`{"error":null,"domain":"x","relationships":[]}`)
	require.NoError(t, err)
	assert.Equal(t, "x", o.Domain)
}

func TestExtractSentinels(t *testing.T) {
	o, err := Extract(`{"domain":"x","relationships":[{"to":"y"}]}`)
	require.NoError(t, err)
	require.Len(t, o.Relationships, 1)
	assert.Equal(t, ontology.UnknownSource, o.Relationships[0].From)
	assert.Equal(t, ontology.DefaultRelationship, o.Relationships[0].Relationship)
	assert.Equal(t, "y", o.Relationships[0].To)

	o, err = Extract(`{"relationships":[{"from":"  ","to":""}]}`)
	require.NoError(t, err)
	assert.Equal(t, ontology.UnknownDomain, o.Domain)
	assert.Equal(t, ontology.UnknownSource, o.Relationships[0].From)
	assert.Equal(t, ontology.UnknownTarget, o.Relationships[0].To)
}

func TestExtractRelationshipsShape(t *testing.T) {
	o, err := Extract(`{"domain":"x"}`)
	require.NoError(t, err)
	assert.NotNil(t, o.Relationships)
	assert.Empty(t, o.Relationships)

	o, err = Extract(`{"domain":"x","relationships":null}`)
	require.NoError(t, err)
	assert.Empty(t, o.Relationships)

	requireKind(t, errOnly(Extract(`{"domain":"x","relationships":"none"}`)), KindInvalidShape)
	requireKind(t, errOnly(Extract(`{"domain":"x","relationships":{"from":"a"}}`)), KindInvalidShape)
	requireKind(t, errOnly(Extract(`{"domain":"x","relationships":[{"from":"a"}, 7]}`)), KindInvalidShape)
}

func TestExtractNormalizesFields(t *testing.T) {
	raw := `{"domain":" University ","relationships":[
		{"from":"Professor","relationship":"teaches","to":"Course","category":"Performs","fromCardinality":"1","toCardinality":"1..*"},
		{"from":"Course","relationship":"belongs to","to":"Department","category":"part_of","from_cardinality":"0..*","to_cardinality":"ONE"},
		{"from":42,"relationship":true,"to":["x"],"category":"depends-on"}
	]}`
	o, err := Extract(raw)
	require.NoError(t, err)
	require.Len(t, o.Relationships, 3)

	assert.Equal(t, "University", o.Domain)
	assert.Equal(t, ontology.CategoryPerforms, o.Relationships[0].Category)
	assert.Equal(t, "1..*", o.Relationships[0].ToCardinality)

	assert.Equal(t, ontology.CategoryPartOf, o.Relationships[1].Category)
	assert.Equal(t, "0..*", o.Relationships[1].FromCardinality)
	assert.Equal(t, "1", o.Relationships[1].ToCardinality)

	assert.Equal(t, "42", o.Relationships[2].From)
	assert.Equal(t, "true", o.Relationships[2].Relationship)
	assert.Equal(t, ontology.UnknownTarget, o.Relationships[2].To)
	assert.Equal(t, ontology.CategoryAssociatesWith, o.Relationships[2].Category)
}

func TestExtractPreservesOrder(t *testing.T) {
	o, err := Extract(`{"domain":"x","relationships":[{"from":"c","to":"d"},{"from":"a","to":"b"},{"from":"c","to":"d"}]}`)
	require.NoError(t, err)
	require.Len(t, o.Relationships, 3)
	assert.Equal(t, "c", o.Relationships[0].From)
	assert.Equal(t, "a", o.Relationships[1].From)
	assert.Equal(t, "c", o.Relationships[2].From)
}

func TestExtractCandidates(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		domain string
	}{
		{"fenced", "```json\n{\"domain\":\"fenced\",\"relationships\":[]}\n```", "fenced"},
		{"fence after stray braces", "Template: {name}\n```json\n{\"domain\":\"f2\",\"relationships\":[]}\n```\nUse {it}.", "f2"},
		{"stray braces around payload", `Use {braces} like: {"domain":"scan","relationships":[]} and {more}`, "scan"},
		{"unclosed brace before payload", `note { then {"domain":"late","relationships":[]}`, "late"},
		{"first of several objects", `{"domain":"a","relationships":[]} {"domain":"b","relationships":[]}`, "a"},
		{"braces inside strings", `prefix {"domain":"br}ace{s","relationships":[]} suffix`, "br}ace{s"},
		{"comments and trailing commas", "{\n\"domain\": \"c\", // the domain\n\"relationships\": [],\n}", "c"},
		{"url survives comment stripping", "{\"domain\": \"http://x.org\", // note\n\"relationships\": []}", "http://x.org"},
		{"leading whitespace", "\n\n  {\"domain\":\"ws\",\"relationships\":[]}  \n", "ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Extract(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.domain, o.Domain)
		})
	}
}

func TestExtractDetailsField(t *testing.T) {
	o, err := Extract(`{"domain":"x","relationships":[
		{"from":"a","to":"b","details":{"fromDefinition":" A thing ","examples":["e1",""," e2 "],"significance":"big"}},
		{"from":"a","to":"b","details":"nope"},
		{"from":"a","to":"b","details":{}}
	]}`)
	require.NoError(t, err)
	require.Len(t, o.Relationships, 3)

	d := o.Relationships[0].Details
	require.NotNil(t, d)
	assert.Equal(t, "A thing", d.FromDefinition)
	assert.Equal(t, []string{"e1", "e2"}, d.Examples)
	assert.Equal(t, "big", d.Significance)
	assert.Nil(t, o.Relationships[1].Details)
	assert.Nil(t, o.Relationships[2].Details)
}

func TestExtractRoundTrip(t *testing.T) {
	inputs := []string{
		`{"domain":"pets","relationships":[]}`,
		`{"relationships":[{"to":"y"}]}`,
		`Sure: {"domain":" x ","relationships":[{"from":7,"relationship":"","to":"b","category":"IS A","fromCardinality":"MANY","toCardinality":"2..n"}]} bye`,
		`{"domain":"u","relationships":[{"from":"a","to":"b","details":{"toDefinition":"B","examples":"one"}}]}`,
		"```json\n{\"domain\":\"f\",\"relationships\":[{\"from\":\"a\",\"to\":\"b\",\"category\":\"has\"},]}\n```",
	}
	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			first, err := Extract(raw)
			require.NoError(t, err)

			data, err := json.Marshal(first)
			require.NoError(t, err)

			second, err := Extract(string(data))
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestExtractNeverPanics(t *testing.T) {
	inputs := []string{
		"{", "}", "}{", "{{{{", "\"", `{"a":"\`, "```", "```json", strings.Repeat("{", 5000),
		`{"relationships":[[]]}`, `{"domain":{},"relationships":[{"from":{},"to":null}]}`,
	}
	for _, raw := range inputs {
		assert.NotPanics(t, func() { _, _ = Extract(raw) }, raw)
	}
}
