package surface

import (
	"encoding/json"
	"io"

	"github.com/ishlunc/ishlunc/pkg/pipeline"
)

// JSONRenderer marshals the result to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, result *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
