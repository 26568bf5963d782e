// Package surface defines output rendering for pipeline results.
// Implementations handle different output targets: terminal, JSON, CSV.
package surface

import (
	"io"

	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

// Renderer produces formatted output from a pipeline Result.
type Renderer interface {
	// Render writes the formatted result to the writer.
	Render(w io.Writer, result *pipeline.Result) error
}
