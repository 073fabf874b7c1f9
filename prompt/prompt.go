// Package prompt builds the instructions sent to the generator. Templates
// are fixed strings; the same inputs always yield the same prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/goontology/ontology"
)

// TemplateVersion identifies the current template set. Bump it whenever
// ontologyPrompt or detailsPrompt change shape so cached results are not
// reused across incompatible prompts.
const TemplateVersion = "v2"

// System is the system prompt for ontology generation.
const System = "You are an expert in knowledge representation, ontology design, and formal modeling. " +
	"Your task is to create domain ontologies with explicit directional relationships and cardinality constraints. " +
	"Provide ONLY valid JSON with no explanations or additional text."

// DetailsSystem is the system prompt for relationship enrichment.
const DetailsSystem = "You are an expert ontology analyst who provides comprehensive definitions " +
	"and detailed explanations of relationships between entities, focusing on depth and clarity."

// ontologyPrompt takes: domain, categories, cardinalities, domain.
const ontologyPrompt = `Create an ontology for the domain of "%s" with explicit directional relationships and cardinality.

Return a single JSON object with exactly these keys:
  "domain"        : the domain name as a string
  "relationships" : an array of objects, each with:
      "from"            : the source concept
      "relationship"    : the action or relation that goes FROM source TO target
      "to"              : the target concept
      "category"        : one of %s
      "fromCardinality" : cardinality at the source, one of %s
      "toCardinality"   : cardinality at the target, same vocabulary

Cardinality notation:
  "1"    exactly one
  "0..1" zero or one
  "0..*" or "*" zero or many
  "1..*" one or many

EXAMPLE (domain "university"):
{"domain": "university", "relationships": [{"from": "University", "relationship": "contains", "to": "Department", "category": "part-of", "fromCardinality": "1", "toCardinality": "1..*"}, {"from": "Professor", "relationship": "teaches", "to": "Course", "category": "performs", "fromCardinality": "1", "toCardinality": "1..*"}]}

Rules:
- All entities must be connected in a single graph; avoid isolated entities.
- Create 10-15 meaningful relationships for the domain of "%s".
- Do NOT include any text, markdown, or explanation outside the JSON object.`

// detailsPrompt takes: domain, numbered relationship list, domain.
const detailsPrompt = `For the domain of "%s", provide in-depth information about the following relationships:

%s

For EACH relationship, in the same order, return an object with:
  "from_definition"          : a thorough definition of the source entity (2-3 sentences)
  "to_definition"            : a thorough definition of the target entity (2-3 sentences)
  "relationship_explanation" : how the entities interact and the constraints involved (3-4 sentences)
  "examples"                 : 2-3 real-world examples as an array of strings
  "significance"             : why this relationship matters in the %s domain (1-2 sentences)

Return ONLY a JSON array with one object per relationship. No text outside the array.`

// Build returns the ontology generation prompt for domain. The caller is
// responsible for rejecting empty domains.
func Build(domain string) string {
	return fmt.Sprintf(ontologyPrompt,
		domain,
		quoteList(categoryStrings()),
		quoteList(ontology.Cardinalities),
		domain,
	)
}

// BuildDetails returns the enrichment prompt for rels.
func BuildDetails(domain string, rels []ontology.Relationship) string {
	var sb strings.Builder
	for i, r := range rels {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. Relationship: %s %s %s", i+1, r.From, r.Relationship, r.To)
	}
	return fmt.Sprintf(detailsPrompt, domain, sb.String(), domain)
}

func categoryStrings() []string {
	out := make([]string, len(ontology.Categories))
	for i, c := range ontology.Categories {
		out[i] = string(c)
	}
	return out
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
