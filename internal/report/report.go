// Package report turns per-contour descriptor results into serialized
// documents. Computation is finished before a Document is built; the
// formatters only read it.
package report

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/MeKo-Tech/shapectx/internal/chaincode"
	"github.com/MeKo-Tech/shapectx/internal/descriptor"
	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/tracer"
)

// Supported output formats.
const (
	FormatXML  = "xml"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatText = "text"
)

// DefaultPrecision is the number of significant digits written for floats.
const DefaultPrecision = 17

// ErrUnsupportedFormat is returned for unknown format names.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatXML, FormatJSON, FormatYAML, FormatCSV, FormatText}
}

// ValidFormat reports whether f names a supported format.
func ValidFormat(f string) bool { return slices.Contains(Formats(), f) }

// Document is the analysis of one silhouette image.
type Document struct {
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	Width     int       `json:"width" yaml:"width"`
	Height    int       `json:"height" yaml:"height"`
	Threshold int       `json:"threshold" yaml:"threshold"`
	Contours  []Contour `json:"contours" yaml:"contours"`
}

// Contour is one traced border with its hierarchy links (0-based, -1 when
// absent) and either its descriptor or the reason it could not be analyzed.
type Contour struct {
	Index      int                    `json:"index" yaml:"index"`
	Hierarchy  tracer.Link            `json:"hierarchy" yaml:"hierarchy"`
	Vertices   int                    `json:"vertices" yaml:"vertices"`
	Chain      string                 `json:"chain,omitempty" yaml:"chain,omitempty"`
	ChainError string                 `json:"chain_error,omitempty" yaml:"chain_error,omitempty"`
	Descriptor *descriptor.Descriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Error      string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

// New assembles a document. contours, links and results are parallel slices
// indexed by contour.
func New(source string, width, height int, contours []geom.Contour, links []tracer.Link,
	results []descriptor.Result,
) *Document {
	doc := &Document{
		Source:   source,
		Width:    width,
		Height:   height,
		Contours: make([]Contour, len(contours)),
	}
	for i, c := range contours {
		rc := Contour{
			Index:     i,
			Hierarchy: tracer.Link{Next: -1, Previous: -1, FirstChild: -1, Parent: -1},
			Vertices:  len(c),
		}
		if i < len(links) {
			rc.Hierarchy = links[i]
		}
		var r descriptor.Result
		if i < len(results) {
			r = results[i]
		}
		switch {
		case r.Err != nil:
			rc.Error = r.Err.Error()
			if ch, err := chaincode.Encode(c); err == nil {
				rc.Chain = ch.String()
			}
		case r.Descriptor != nil:
			rc.Descriptor = r.Descriptor
			rc.Chain = r.Descriptor.ChainString()
			if r.Descriptor.ChainErr != nil {
				rc.ChainError = r.Descriptor.ChainErr.Error()
			}
		default:
			rc.Error = "not analyzed"
		}
		doc.Contours[i] = rc
	}
	return doc
}

// OuterContours returns the indices of contours without parent.
func (d *Document) OuterContours() []int {
	var out []int
	for _, c := range d.Contours {
		if c.Hierarchy.Parent < 0 {
			out = append(out, c.Index)
		}
	}
	return out
}

// Failed returns the number of contours that could not be analyzed.
func (d *Document) Failed() int {
	n := 0
	for _, c := range d.Contours {
		if c.Error != "" {
			n++
		}
	}
	return n
}

// Options controls formatting.
type Options struct {
	Format    string
	Precision int
}

// DefaultOptions writes the XML layout at full precision.
func DefaultOptions() Options {
	return Options{Format: FormatXML, Precision: DefaultPrecision}
}

// Format serializes a single document.
func Format(doc *Document, opts Options) ([]byte, error) {
	if opts.Precision <= 0 {
		opts.Precision = DefaultPrecision
	}
	switch opts.Format {
	case FormatXML:
		return formatXML(doc, opts.Precision)
	case FormatJSON:
		return formatJSON(doc)
	case FormatYAML:
		return formatYAML(doc)
	case FormatCSV:
		return formatCSV([]*Document{doc}, opts.Precision)
	case FormatText:
		return []byte(formatText([]*Document{doc}, opts.Precision)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

// FormatBatch serializes several documents into one output. XML is written
// per image and is not accepted here.
func FormatBatch(docs []*Document, opts Options) ([]byte, error) {
	if opts.Precision <= 0 {
		opts.Precision = DefaultPrecision
	}
	switch opts.Format {
	case FormatJSON:
		return formatJSON(struct {
			Images []*Document `json:"images"`
		}{docs})
	case FormatYAML:
		return formatYAML(struct {
			Images []*Document `yaml:"images"`
		}{docs})
	case FormatCSV:
		return formatCSV(docs, opts.Precision)
	case FormatText:
		return []byte(formatText(docs, opts.Precision)), nil
	default:
		return nil, fmt.Errorf("%w for batch output: %q", ErrUnsupportedFormat, opts.Format)
	}
}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch format {
	case FormatXML:
		return ".ctx"
	case FormatText:
		return ".txt"
	default:
		return "." + strings.ToLower(format)
	}
}

// WriteFileAtomic writes data to path.part and renames it to path, so a
// reader never sees a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	part := path + ".part"
	if err := os.WriteFile(part, data, 0o644); err != nil { //nolint:gosec // G306: reports are meant to be readable
		return fmt.Errorf("write %s: %w", part, err)
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("rename %s: %w", part, err)
	}
	return nil
}
