package ontology

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"is-a", CategoryIsA},
		{"IS-A", CategoryIsA},
		{"is a", CategoryIsA},
		{" part_of ", CategoryPartOf},
		{"has", CategoryHas},
		{"performs", CategoryPerforms},
		{"associates-with", CategoryAssociatesWith},
		{"", CategoryAssociatesWith},
		{"depends-on", CategoryAssociatesWith},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.in))
		})
	}
}

func TestNormalizeCardinality(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"0..1", "0..1"},
		{"0..*", "0..*"},
		{"1..*", "1..*"},
		{"*", "*"},
		{"Many", "many"},
		{"0..n", "0..n"},
		{"", "1"},
		{"lots", "1"},
		{"1-*", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeCardinality(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeCardinality(got), "normalization must be idempotent")
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "dog", NormalizeName("  dog ", UnknownSource))
	assert.Equal(t, UnknownSource, NormalizeName("   ", UnknownSource))
}

func TestNewEncodesEmptyArray(t *testing.T) {
	data, err := json.Marshal(New("pets"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"domain":"pets","relationships":[]}`, string(data))
}

func TestCloneIsDeep(t *testing.T) {
	o := &Ontology{
		Domain: "pets",
		Relationships: []Relationship{{
			From: "dog", To: "animal", Relationship: "is-a",
			Details: &Details{Examples: []string{"a beagle"}},
		}},
	}

	c := o.Clone()
	c.Relationships[0].From = "cat"
	c.Relationships[0].Details.Examples[0] = "a tabby"

	assert.Equal(t, "dog", o.Relationships[0].From)
	assert.Equal(t, "a beagle", o.Relationships[0].Details.Examples[0])
}

func TestEntitiesFirstAppearanceOrder(t *testing.T) {
	o := &Ontology{Relationships: []Relationship{
		{From: "University", To: "Department"},
		{From: "Professor", To: "Course"},
		{From: "Department", To: "Professor"},
	}}
	assert.Equal(t, []string{"University", "Department", "Professor", "Course"}, o.Entities())
}

func TestDetailsIsZero(t *testing.T) {
	var nilDetails *Details
	assert.True(t, nilDetails.IsZero())
	assert.True(t, (&Details{}).IsZero())
	assert.False(t, (&Details{Significance: "core"}).IsZero())
	assert.False(t, (&Details{Examples: []string{"x"}}).IsZero())
}
