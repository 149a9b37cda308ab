package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	apperrors "poscraper/pkg/errors"
)

// Cell is the rendered content of one table cell
type Cell struct {
	// Text is the cell's innerText
	Text string
	// Bold is the trimmed text of the first <b> inside the cell
	Bold string
}

// Extract parses a snapshot of the resolved frame's markup into records.
// Header fields are read once and repeated on every qualifying row; rows
// that do not qualify are skipped silently. A document without rows yields
// no records and no error.
func (d *DocType) Extract(id int, markup string) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeParsing, err, "parse document markup").WithID(id)
	}

	header, err := d.readHeader(doc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeParsing, err, "read header").WithID(id)
	}
	header[ColumnID] = strconv.Itoa(id)

	var records []Record
	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		fields, ok := d.ParseRow(readCells(row))
		if !ok {
			return
		}
		rec := make(Record, len(header)+len(fields))
		for k, v := range header {
			rec[k] = v
		}
		for k, v := range fields {
			rec[k] = v
		}
		records = append(records, rec)
	})

	return records, nil
}

func (d *DocType) readHeader(doc *goquery.Document) (Record, error) {
	header := make(Record, len(d.Headers)+1)
	for _, h := range d.Headers {
		sel := doc.Find(h.Selector).First()
		if sel.Length() == 0 {
			return nil, fmt.Errorf("header field %s (%s) not found", h.Column, h.Selector)
		}
		header[h.Column] = FieldValue(sel)
	}
	return header, nil
}

func readCells(row *goquery.Selection) []Cell {
	tds := row.Find("td")
	cells := make([]Cell, 0, tds.Length())
	tds.Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, Cell{
			Text: InnerText(td),
			Bold: strings.TrimSpace(InnerText(td.Find("b").First())),
		})
	})
	return cells
}

// parseItemRow handles the plain item tables: name, unit, quantity
func parseItemRow(cells []Cell) (map[string]string, bool) {
	if len(cells) < 3 {
		return nil, false
	}
	return map[string]string{
		"ItemName": cells[0].Text,
		"Unit":     cells[1].Text,
		"Quantity": cells[2].Text,
	}, true
}

const (
	labelUnit      = "Unit :"
	labelPONumber  = "PO Number :"
	labelReqNumber = "Req Number :"
	labelWarehouse = "Warehouse :"
)

// parseHandoverRow handles inventory handover rows, which pack several
// labeled values into each of exactly three cells.
func parseHandoverRow(cells []Cell) (map[string]string, bool) {
	if len(cells) != 3 {
		return nil, false
	}

	unit := ""
	if i := strings.LastIndex(cells[0].Text, labelUnit); i >= 0 {
		unit = strings.TrimSpace(cells[0].Text[i+len(labelUnit):])
	}

	info := strings.Split(cells[1].Text, "\n")

	return map[string]string{
		"ItemName":  cells[0].Bold,
		"Unit":      unit,
		"PONumber":  labeled(info, labelPONumber),
		"ReqNumber": labeled(info, labelReqNumber),
		"Warehouse": labeled(info, labelWarehouse),
		"Quantity":  cells[2].Text,
	}, true
}

// labeled returns the value of the first line carrying label, with every
// occurrence of the label removed. A missing line yields "".
func labeled(lines []string, label string) string {
	for _, l := range lines {
		if strings.Contains(l, label) {
			return strings.TrimSpace(strings.ReplaceAll(l, label, ""))
		}
	}
	return ""
}
