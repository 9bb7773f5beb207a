package document

import (
	"encoding/hex"
	"fmt"
	"io"
	"slices"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/formulagraph/internal/model"
)

// Fingerprint returns the hex SHA3-256 digest of the document grid.
//
// The digest covers sheet names in document order, every cell in row-major
// order with its value, formula and marker, and the named ranges sorted by
// name. The identity and any previous version are not part of it.
func Fingerprint(doc *model.Document) string {
	h := sha3.New256()
	if doc == nil {
		return hex.EncodeToString(h.Sum(nil))
	}

	for _, sheet := range doc.Sheets {
		fmt.Fprintf(h, "sheet\x00%s\n", sheet.Name)
		valid, invalid := sheet.OrderedCoords()
		for _, coord := range append(valid, invalid...) {
			writeCellDigest(h, coord, sheet.Cells[coord])
		}
	}

	names := make([]string, 0, len(doc.NamedRanges))
	for name := range doc.NamedRanges {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(h, "name\x00%s\x00%s\n", name, doc.NamedRanges[name])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeCellDigest(w io.Writer, coord string, cell model.RawCell) {
	var kind byte
	switch model.OrEmpty(cell.Value).(type) {
	case model.Number:
		kind = 'n'
	case model.Text:
		kind = 't'
	default:
		kind = 'e'
	}
	fmt.Fprintf(w, "cell\x00%s\x00%c%s\x00%s\x00%s\n",
		coord, kind, model.OrEmpty(cell.Value).String(), cell.Formula, cell.Marker)
}
