package extract

import "fmt"

// Kind classifies an extraction failure.
type Kind string

const (
	// KindNoJSONFound means no candidate in the output parsed as the
	// expected JSON shape.
	KindNoJSONFound Kind = "NoJsonFound"
	// KindGeneratorReportedError means the output parsed and carried a
	// top-level "error" value.
	KindGeneratorReportedError Kind = "GeneratorReportedError"
	// KindInvalidShape means the output parsed but the structure is unusable.
	KindInvalidShape Kind = "InvalidShape"
)

// Error is returned by Extract and ExtractDetails.
type Error struct {
	Kind    Kind
	Message string
	// Raw is the generator output that failed to extract.
	Raw string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract: %s: %s", e.Kind, e.Message)
}
