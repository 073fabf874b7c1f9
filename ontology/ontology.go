// Package ontology defines the canonical result of an extraction: a domain
// label plus an ordered list of typed, labeled relationships between named
// entities.
package ontology

// Category is the closed set of relationship kinds.
type Category string

// Relationship categories understood by the extractor. Anything else
// normalizes to CategoryAssociatesWith.
const (
	CategoryIsA            Category = "is-a"
	CategoryPartOf         Category = "part-of"
	CategoryHas            Category = "has"
	CategoryPerforms       Category = "performs"
	CategoryAssociatesWith Category = "associates-with"
)

// Categories lists every valid category in prompt order.
var Categories = []Category{
	CategoryIsA,
	CategoryPartOf,
	CategoryHas,
	CategoryPerforms,
	CategoryAssociatesWith,
}

// Sentinel values substituted for missing generator output.
const (
	UnknownDomain       = "Unknown Domain"
	UnknownSource       = "Unknown Source"
	UnknownTarget       = "Unknown Target"
	DefaultRelationship = "is related to"
	DefaultCategory     = CategoryAssociatesWith
	DefaultCardinality  = "1"
)

// Cardinalities is the multiplicity vocabulary the prompt asks for.
var Cardinalities = []string{"1", "0..1", "0..*", "1..*", "*"}

// Ontology is the validated result for one domain. Values are never mutated
// after extraction; transformations return a copy.
type Ontology struct {
	Domain        string         `json:"domain"`
	Relationships []Relationship `json:"relationships"`
}

// Relationship is a directed, labeled edge between two entities.
type Relationship struct {
	From            string   `json:"from"`
	Relationship    string   `json:"relationship"`
	To              string   `json:"to"`
	Category        Category `json:"category"`
	FromCardinality string   `json:"from_cardinality"`
	ToCardinality   string   `json:"to_cardinality"`
	Details         *Details `json:"details,omitempty"`
}

// Details is optional elaboration attached to a relationship.
type Details struct {
	FromDefinition          string   `json:"from_definition,omitempty"`
	ToDefinition            string   `json:"to_definition,omitempty"`
	RelationshipExplanation string   `json:"relationship_explanation,omitempty"`
	Examples                []string `json:"examples,omitempty"`
	Significance            string   `json:"significance,omitempty"`
}

// IsZero reports whether no field of d carries content.
func (d *Details) IsZero() bool {
	if d == nil {
		return true
	}
	return d.FromDefinition == "" &&
		d.ToDefinition == "" &&
		d.RelationshipExplanation == "" &&
		len(d.Examples) == 0 &&
		d.Significance == ""
}

// New returns an empty ontology for domain. Relationships is non-nil so the
// JSON encoding is always an array.
func New(domain string) *Ontology {
	return &Ontology{Domain: domain, Relationships: []Relationship{}}
}

// Clone returns a deep copy of o.
func (o *Ontology) Clone() *Ontology {
	if o == nil {
		return nil
	}
	c := &Ontology{
		Domain:        o.Domain,
		Relationships: make([]Relationship, len(o.Relationships)),
	}
	for i, r := range o.Relationships {
		c.Relationships[i] = r.clone()
	}
	return c
}

func (r Relationship) clone() Relationship {
	if r.Details != nil {
		d := *r.Details
		if r.Details.Examples != nil {
			d.Examples = append([]string(nil), r.Details.Examples...)
		}
		r.Details = &d
	}
	return r
}

// Entities returns the unique entity names of o in first-appearance order,
// visiting From before To for each relationship.
func (o *Ontology) Entities() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range o.Relationships {
		for _, n := range [2]string{r.From, r.To} {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
