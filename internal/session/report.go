package session

import (
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// WriteReport renders the summary as YAML.
func (s *Summary) WriteReport(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return eris.Wrap(err, "encode report")
	}
	return eris.Wrap(enc.Close(), "encode report")
}
