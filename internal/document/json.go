package document

import (
	"encoding/json"
	"io"

	"github.com/nao1215/formulagraph/internal/model"
)

// ReadJSON reads the JSON grid record:
//
//	{
//	  "identity": "quote",
//	  "sheets": [
//	    {"name": "Calc", "cells": {"A1": {"value": 10, "marker": "FFFF00"}}}
//	  ],
//	  "named_ranges": {"Rate": "Calc!$B$1"}
//	}
//
// An identity in the record wins over the identity argument. The version is
// always recomputed from the grid.
func ReadJSON(r io.Reader, identity string) (*model.Document, error) {
	var doc model.Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ReadError{Path: identity, Err: err}
	}

	if doc.Identity == "" {
		doc.Identity = identity
	}
	for i := range doc.Sheets {
		if doc.Sheets[i].Cells == nil {
			doc.Sheets[i].Cells = map[string]model.RawCell{}
		}
		for coord, cell := range doc.Sheets[i].Cells {
			cell.Value = model.OrEmpty(cell.Value)
			doc.Sheets[i].Cells[coord] = cell
		}
	}
	doc.Version = Fingerprint(&doc)
	return &doc, nil
}
