package report

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/shapectx/internal/descriptor"
)

const xmlHeader = `<?xml version="1.0" standalone="yes"?>` + "\n"

type xmlCtx struct {
	XMLName    xml.Name      `xml:"ctx"`
	Canvas     xmlCanvas     `xml:"canvas"`
	Silhouette xmlSilhouette `xml:"silhouette"`
}

type xmlCanvas struct {
	Width  int `xml:"width,attr"`
	Height int `xml:"height,attr"`
}

type xmlSilhouette struct {
	Contours  int          `xml:"contours,attr"`
	OuterList string       `xml:"outer-contour-list,attr,omitempty"`
	Items     []xmlContour `xml:"contour"`
}

// Hierarchy ids are 1-based; zero means absent and is omitted.
type xmlContour struct {
	ID              int       `xml:"id,attr"`
	NextSibling     int       `xml:"next-sibling,attr,omitempty"`
	PreviousSibling int       `xml:"previous-sibling,attr,omitempty"`
	FirstChild      int       `xml:"first-child,attr,omitempty"`
	Parent          int       `xml:"parent,attr,omitempty"`
	Error           string    `xml:"error,attr,omitempty"`
	Shape           *xmlAttrs `xml:"shape"`
	Spatial         *xmlAttrs `xml:"spatial-moments"`
	Central         *xmlAttrs `xml:"central-moments"`
	Normal          *xmlAttrs `xml:"normal-moments"`
	Frame           *xmlAttrs `xml:"frame"`
	BoundingRect    *xmlAttrs `xml:"bounding-rect"`
	MinAreaRect     *xmlAttrs `xml:"min-area-rect"`
	Ellipse         *xmlAttrs `xml:"ellipse"`
	Circle          *xmlAttrs `xml:"circle"`
	Variance        *xmlAttrs `xml:"variance"`
	Path            xmlPath   `xml:"path"`
}

type xmlPath struct {
	Vertices   int    `xml:"vertices,attr"`
	Chain      string `xml:"chain,attr,omitempty"`
	ChainError string `xml:"chain-error,attr,omitempty"`
}

// xmlAttrs is an empty element carrying ordered attributes.
type xmlAttrs struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type attrList struct {
	prec  int
	attrs []xml.Attr
}

func (l *attrList) f(name string, v float64) *attrList {
	l.attrs = append(l.attrs, xml.Attr{Name: xml.Name{Local: name}, Value: strconv.FormatFloat(v, 'g', l.prec, 64)})
	return l
}

func (l *attrList) i(name string, v int) *attrList {
	l.attrs = append(l.attrs, xml.Attr{Name: xml.Name{Local: name}, Value: strconv.Itoa(v)})
	return l
}

func (l *attrList) s(name, v string) *attrList {
	l.attrs = append(l.attrs, xml.Attr{Name: xml.Name{Local: name}, Value: v})
	return l
}

func (l *attrList) el() *xmlAttrs { return &xmlAttrs{Attrs: l.attrs} }

func formatXML(doc *Document, prec int) ([]byte, error) {
	out := xmlCtx{
		Canvas: xmlCanvas{Width: doc.Width, Height: doc.Height},
		Silhouette: xmlSilhouette{
			Contours: len(doc.Contours),
			Items:    make([]xmlContour, len(doc.Contours)),
		},
	}
	if len(doc.Contours) > 1 {
		ids := make([]string, 0, len(doc.Contours))
		for _, i := range doc.OuterContours() {
			ids = append(ids, strconv.Itoa(i+1))
		}
		out.Silhouette.OuterList = strings.Join(ids, " ")
	}

	for i, c := range doc.Contours {
		xc := xmlContour{
			ID:              c.Index + 1,
			NextSibling:     c.Hierarchy.Next + 1,
			PreviousSibling: c.Hierarchy.Previous + 1,
			FirstChild:      c.Hierarchy.FirstChild + 1,
			Parent:          c.Hierarchy.Parent + 1,
			Error:           c.Error,
			Path:            xmlPath{Vertices: c.Vertices, Chain: c.Chain, ChainError: c.ChainError},
		}
		if d := c.Descriptor; d != nil {
			fillXMLMeasures(&xc, d, prec)
		}
		out.Silhouette.Items[i] = xc
	}

	body, err := xml.MarshalIndent(out, "", "\t")
	if err != nil {
		return nil, err
	}
	return append([]byte(xmlHeader), body...), nil
}

func fillXMLMeasures(xc *xmlContour, d *descriptor.Descriptor, prec int) {
	list := func() *attrList { return &attrList{prec: prec} }
	m := d.Moments

	xc.Shape = list().f("area", d.Area).f("perimeter", d.Perimeter).f("compactness", d.Compactness).
		f("cx", d.Centroid.X).f("cy", d.Centroid.Y).s("convex", strconv.FormatBool(d.Convex)).el()
	xc.Spatial = list().f("m00", m.M00).f("m10", m.M10).f("m01", m.M01).f("m20", m.M20).
		f("m11", m.M11).f("m02", m.M02).f("m30", m.M30).f("m21", m.M21).f("m12", m.M12).f("m03", m.M03).el()
	xc.Central = list().f("mu20", m.Mu20).f("mu11", m.Mu11).f("mu02", m.Mu02).f("mu30", m.Mu30).
		f("mu21", m.Mu21).f("mu12", m.Mu12).f("mu03", m.Mu03).el()
	xc.Normal = list().f("nu20", m.Nu20).f("nu11", m.Nu11).f("nu02", m.Nu02).f("nu30", m.Nu30).
		f("nu21", m.Nu21).f("nu12", m.Nu12).f("nu03", m.Nu03).el()
	xc.Frame = list().f("cx", d.Frame.Center.X).f("cy", d.Frame.Center.Y).f("angle", d.Frame.Angle).
		f("major", d.Frame.Size[0]).f("minor", d.Frame.Size[1]).el()
	r := d.BoundingRect
	xc.BoundingRect = list().i("x", r.Min.X).i("y", r.Min.Y).i("width", r.Dx()).i("height", r.Dy()).el()
	mr := d.MinAreaRect
	xc.MinAreaRect = list().f("cx", mr.Center.X).f("cy", mr.Center.Y).f("width", mr.Width).
		f("height", mr.Height).f("angle", mr.Angle).el()
	if e := d.Ellipse; e != nil {
		xc.Ellipse = list().f("cx", e.Center.X).f("cy", e.Center.Y).f("major", e.Major).
			f("minor", e.Minor).f("angle", e.Angle).el()
	}
	xc.Circle = list().f("cx", d.Circle.Center.X).f("cy", d.Circle.Center.Y).f("radius", d.Circle.Radius).el()
	xc.Variance = list().f("vx", d.Variance.VX).f("vy", d.Variance.VY).f("vxy", d.Variance.VXY).el()
}
