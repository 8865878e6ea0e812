package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// formatJSON formats v as indented JSON.
func formatJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// formatYAML formats v as YAML with two-space indentation.
func formatYAML(v any) ([]byte, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return []byte(sb.String()), nil
}

var csvHeader = []string{
	"file", "contour", "parent", "vertices", "area", "perimeter", "compactness",
	"cx", "cy", "convex", "frame_angle", "frame_major", "frame_minor", "chain", "error",
}

// formatCSV writes one row per contour.
func formatCSV(docs []*Document, prec int) ([]byte, error) {
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', prec, 64) }

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, c := range doc.Contours {
			row := []string{
				doc.Source,
				strconv.Itoa(c.Index),
				strconv.Itoa(c.Hierarchy.Parent),
				strconv.Itoa(c.Vertices),
			}
			if d := c.Descriptor; d != nil {
				row = append(row,
					ff(d.Area), ff(d.Perimeter), ff(d.Compactness),
					ff(d.Centroid.X), ff(d.Centroid.Y), strconv.FormatBool(d.Convex),
					ff(d.Frame.Angle), ff(d.Frame.Size[0]), ff(d.Frame.Size[1]),
				)
			} else {
				row = append(row, "", "", "", "", "", "", "", "", "")
			}
			row = append(row, c.Chain, c.Error)
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// formatText renders a human readable summary.
func formatText(docs []*Document, prec int) string {
	digits := min(prec, 6)
	var sb strings.Builder
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		if doc.Source != "" {
			fmt.Fprintf(&sb, "# %s\n", doc.Source)
		}
		fmt.Fprintf(&sb, "canvas %dx%d, threshold %d, %d contour(s)\n",
			doc.Width, doc.Height, doc.Threshold, len(doc.Contours))
		for _, c := range doc.Contours {
			fmt.Fprintf(&sb, "contour %d (parent %d, %d vertices)", c.Index, c.Hierarchy.Parent, c.Vertices)
			if c.Error != "" {
				fmt.Fprintf(&sb, ": error: %s\n", c.Error)
				continue
			}
			d := c.Descriptor
			fmt.Fprintf(&sb, ": area=%.*g perimeter=%.*g compactness=%.*g centroid=(%.*g, %.*g) convex=%t\n",
				digits, d.Area, digits, d.Perimeter, digits, d.Compactness,
				digits, d.Centroid.X, digits, d.Centroid.Y, d.Convex)
			fmt.Fprintf(&sb, "  frame: angle=%.*g size=%.*gx%.*g\n",
				digits, d.Frame.Angle, digits, d.Frame.Size[0], digits, d.Frame.Size[1])
		}
	}
	return sb.String()
}
