package resolver

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/waypoint/placement"
)

// RectAttr carries the layout box of an element in an HTMLDocument, as
// "x,y,width,height".
const RectAttr = "data-rect"

// AnchorAttr marks the injected dummy anchor.
const AnchorAttr = "data-waypoint-anchor"

// HTMLDocument is a Document over a parsed HTML snapshot. There is no
// layout engine: element boxes come from their data-rect attribute, which
// a headless capture or a test fixture fills in.
type HTMLDocument struct {
	mu  sync.Mutex
	doc *goquery.Document
	vp  placement.Viewport
}

// NewHTMLDocument parses r.
func NewHTMLDocument(r io.Reader, vp placement.Viewport) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("resolver: parse html: %w", err)
	}
	return &HTMLDocument{doc: doc, vp: vp}, nil
}

// SetViewport changes the viewport, as a window resize would.
func (d *HTMLDocument) SetViewport(vp placement.Viewport) {
	d.mu.Lock()
	d.vp = vp
	d.mu.Unlock()
}

func (d *HTMLDocument) Query(_ context.Context, selector string) (Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, nil
	}
	return &htmlElement{doc: d, sel: sel}, nil
}

func (d *HTMLDocument) Viewport(context.Context) (placement.Viewport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vp, nil
}

func (d *HTMLDocument) InjectAnchor(_ context.Context, rect placement.Rect) (Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find("[" + AnchorAttr + "]").Remove()

	body := d.doc.Find("body")
	if body.Length() == 0 {
		return nil, fmt.Errorf("resolver: document has no body")
	}
	body.AppendHtml(fmt.Sprintf(`<div %s="" %s="%s" style="position:fixed;width:0;height:0;"></div>`,
		AnchorAttr, RectAttr, formatRect(rect)))
	sel := d.doc.Find("[" + AnchorAttr + "]").First()
	return &htmlElement{doc: d, sel: sel}, nil
}

func (d *HTMLDocument) RemoveAnchor(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find("[" + AnchorAttr + "]").Remove()
	return nil
}

// Count returns the number of elements matching selector.
func (d *HTMLDocument) Count(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).Length()
}

type htmlElement struct {
	doc *HTMLDocument
	sel *goquery.Selection
}

func (e *htmlElement) Rect(context.Context) (placement.Rect, error) {
	e.doc.mu.Lock()
	raw, ok := e.sel.Attr(RectAttr)
	e.doc.mu.Unlock()
	if !ok {
		return placement.Rect{}, nil
	}
	return parseRect(raw)
}

func (e *htmlElement) Attribute(_ context.Context, name string) (string, bool, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func parseRect(s string) (placement.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return placement.Rect{}, fmt.Errorf("resolver: bad %s %q", RectAttr, s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return placement.Rect{}, fmt.Errorf("resolver: bad %s %q: %w", RectAttr, s, err)
		}
		v[i] = f
	}
	return placement.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func formatRect(r placement.Rect) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(r.X) + "," + f(r.Y) + "," + f(r.Width) + "," + f(r.Height)
}
