package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/muw-verify/verify-cli/internal/verify"
	"github.com/muw-verify/verify-cli/pkg/geocode"
)

// Format selects the output encoding.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user-supplied format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want text, json or yaml)", s)
	}
}

// Document is the structured form of a verification outcome.
type Document struct {
	Found  bool           `json:"found" yaml:"found"`
	Result *verify.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string         `json:"error,omitempty" yaml:"error,omitempty"`
	Lines  []string       `json:"summary" yaml:"summary"`
}

// NewDocument builds the Document for a Verify outcome. err is the error
// Verify returned, if any. A not-found outcome carries only the provider's
// reason, never the underlying cause.
func NewDocument(res *verify.Result, err error) Document {
	if err != nil {
		var nf *geocode.NotFoundError
		switch {
		case errors.As(err, &nf):
			return Document{Error: "address not found: " + nf.Reason, Lines: []string{NotFoundLine}}
		case errors.Is(err, geocode.ErrAddressNotFound):
			return Document{Error: "address not found", Lines: []string{NotFoundLine}}
		default:
			return Document{Error: err.Error(), Lines: []string{err.Error()}}
		}
	}
	return Document{Found: true, Result: res, Lines: Lines(res)}
}

// Write renders doc to w in the given format.
func Write(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatText, "":
		for _, line := range doc.Lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return eris.Wrap(err, "report: write text")
			}
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(doc), "report: write json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "report: write yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}
