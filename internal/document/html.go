package document

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"

	"github.com/nao1215/formulagraph/internal/model"
)

// HTML attributes understood by ReadHTML.
const (
	attrSheet   = "data-sheet"
	attrCell    = "data-cell"
	attrFormula = "data-formula"
	attrMarker  = "data-marker"
	attrValue   = "data-value"
	attrName    = "data-name"
	attrRange   = "data-range"
)

// ReadHTML reads an HTML table export. identity names the template in the
// returned document.
//
// Every <table> is a sheet named by its data-sheet attribute, its
// <caption>, or "SheetN". Rows and cells are positioned in document order
// (colspan and rowspan are honoured) unless a cell carries an explicit
// data-cell coordinate. A cell's formula comes from data-formula, its
// marker from data-marker, a bgcolor attribute or an inline background
// colour, and its value from data-value or its text. Elements carrying
// data-name and data-range declare named ranges.
//
// Design decision: We walk the tree produced by golang.org/x/net/html
// rather than scanning the markup, because exported tables are frequently
// malformed (unclosed cells, stray tags) and the HTML5 parser repairs them
// the same way a browser does.
func ReadHTML(r io.Reader, identity string) (*model.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, &ReadError{Path: identity, Err: err}
	}

	doc := &model.Document{Identity: identity}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if name, text := getAttr(n, attrName), getAttr(n, attrRange); name != "" && text != "" {
				if doc.NamedRanges == nil {
					doc.NamedRanges = map[string]string{}
				}
				doc.NamedRanges[name] = text
			}
			if n.Data == "table" {
				doc.Sheets = append(doc.Sheets, readTable(n, len(doc.Sheets)+1))
				// Nested tables are not separate sheets.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	doc.Version = Fingerprint(doc)
	return doc, nil
}

// tableReader tracks cell positions while reading one table.
type tableReader struct {
	sheet model.Sheet
	row   int

	// occupied marks positions covered by an earlier rowspan.
	occupied map[[2]int]bool
}

func readTable(table *html.Node, index int) model.Sheet {
	name := getAttr(table, attrSheet)
	if name == "" {
		if caption := findChild(table, "caption"); caption != nil {
			name = strings.TrimSpace(textContent(caption))
		}
	}
	if name == "" {
		name = "Sheet" + strconv.Itoa(index)
	}

	tr := &tableReader{
		sheet:    model.Sheet{Name: name, Cells: map[string]model.RawCell{}},
		occupied: map[[2]int]bool{},
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "table":
				if n != table {
					return
				}
			case "tr":
				tr.readRow(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)

	return tr.sheet
}

func (tr *tableReader) readRow(row *html.Node) {
	tr.row++
	col := 1

	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		for tr.occupied[[2]int{col, tr.row}] {
			col++
		}

		colspan := spanAttr(c, "colspan")
		rowspan := spanAttr(c, "rowspan")
		for dr := range rowspan {
			for dc := range colspan {
				tr.occupied[[2]int{col + dc, tr.row + dr}] = true
			}
		}

		coord := strings.TrimSpace(getAttr(c, attrCell))
		if coord == "" {
			coord, _ = excelize.CoordinatesToCellName(col, tr.row)
		}
		col += colspan

		if cell, ok := readHTMLCell(c); ok && coord != "" {
			tr.sheet.Cells[model.NormalizeCoord(coord)] = cell
		}
	}
}

func readHTMLCell(n *html.Node) (model.RawCell, bool) {
	var (
		value    model.Literal = model.Empty{}
		hasValue bool
	)
	if v, ok := lookupAttr(n, attrValue); ok {
		value, hasValue = model.ParseLiteral(v), true
	} else if t := strings.TrimSpace(textContent(n)); t != "" {
		value, hasValue = model.ParseLiteral(t), true
	}

	formula := strings.TrimSpace(getAttr(n, attrFormula))
	if formula != "" && !strings.HasPrefix(formula, "=") {
		formula = "=" + formula
	}
	marker := cellMarker(n)

	if !hasValue && formula == "" && marker == "" {
		return model.RawCell{}, false
	}
	return model.RawCell{Value: value, Formula: formula, Marker: marker}, true
}

// cellMarker returns the marker of a cell: data-marker, then bgcolor, then
// an inline background colour.
func cellMarker(n *html.Node) string {
	if m := strings.TrimSpace(getAttr(n, attrMarker)); m != "" {
		return m
	}
	if m := strings.TrimSpace(getAttr(n, "bgcolor")); m != "" {
		return m
	}
	for _, decl := range strings.Split(getAttr(n, "style"), ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(prop)) {
		case "background-color", "background":
			if v := strings.TrimSpace(val); strings.HasPrefix(v, "#") {
				return strings.Fields(v)[0]
			}
		}
	}
	return ""
}

func spanAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(getAttr(n, key)))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

// getAttr returns the value of an attribute, or "".
func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func findChild(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

// textContent concatenates the text below n. <br> becomes a newline.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// tableHTML renders a sheet as an HTML table readable by ReadHTML.
func tableHTML(sheet model.Sheet) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<table %s=\"%s\">\n", attrSheet, html.EscapeString(sheet.Name))
	coords, _ := sheet.OrderedCoords()
	for _, coord := range coords {
		cell := sheet.Cells[coord]
		fmt.Fprintf(&sb, "<tr><td %s=\"%s\"", attrCell, coord)
		if cell.Formula != "" {
			fmt.Fprintf(&sb, " %s=\"%s\"", attrFormula, html.EscapeString(cell.Formula))
		}
		if cell.Marker != "" {
			fmt.Fprintf(&sb, " %s=\"%s\"", attrMarker, html.EscapeString(cell.Marker))
		}
		fmt.Fprintf(&sb, ">%s</td></tr>\n", html.EscapeString(model.OrEmpty(cell.Value).String()))
	}
	sb.WriteString("</table>\n")
	return sb.String()
}

// WriteHTML writes doc as an HTML table export readable by ReadHTML.
// Every cell is written on its own row with an explicit data-cell
// coordinate.
func WriteHTML(w io.Writer, doc *model.Document) error {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><body>\n")
	for _, sheet := range doc.Sheets {
		sb.WriteString(tableHTML(sheet))
	}
	if len(doc.NamedRanges) > 0 {
		names := make([]string, 0, len(doc.NamedRanges))
		for name := range doc.NamedRanges {
			names = append(names, name)
		}
		slices.Sort(names)

		sb.WriteString("<dl>\n")
		for _, name := range names {
			fmt.Fprintf(&sb, "<dt %s=\"%s\" %s=\"%s\">%s</dt>\n",
				attrName, html.EscapeString(name), attrRange, html.EscapeString(doc.NamedRanges[name]), html.EscapeString(name))
		}
		sb.WriteString("</dl>\n")
	}
	sb.WriteString("</body></html>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
