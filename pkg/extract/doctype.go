package extract

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Record is one extracted line item: column name to trimmed string value.
// Every record carries the source document's ID.
type Record map[string]string

// HeaderField is a single labeled form field read once per document
type HeaderField struct {
	Column   string
	Selector string
}

// RowParser maps the cells of one table row to its line-item columns. It
// reports false when the row does not qualify.
type RowParser func(cells []Cell) (map[string]string, bool)

// DocType describes one kind of document served by the legacy application
type DocType struct {
	Name        string
	Description string
	Aliases     []string

	// PathTemplate is joined to the origin; %d is replaced with the document ID
	PathTemplate string

	// Marker is a selector present only inside the document's content region
	Marker string

	Headers    []HeaderField
	RowColumns []string
	ParseRow   RowParser

	// Settle is an extra wait after navigation for pages that build their
	// frames from script
	Settle time.Duration
}

// URL returns the document URL for id under origin
func (d *DocType) URL(origin string, id int) string {
	return strings.TrimRight(origin, "/") + fmt.Sprintf(d.PathTemplate, id)
}

// Columns returns the stable column order of the type's dataset
func (d *DocType) Columns() []string {
	cols := make([]string, 0, 1+len(d.Headers)+len(d.RowColumns))
	cols = append(cols, ColumnID)
	for _, h := range d.Headers {
		cols = append(cols, h.Column)
	}
	return append(cols, d.RowColumns...)
}

// ColumnID is the column every record carries
const ColumnID = "ID"

const (
	TypePOReceive         = "po_receive"
	TypeTLReceive         = "tl_receive"
	TypeInventoryHandover = "inventory_handover"
)

var registry = map[string]*DocType{
	TypePOReceive: {
		Name:         TypePOReceive,
		Description:  "Purchase-order receipt attachments",
		Aliases:      []string{"po"},
		PathTemplate: "/POReceiveAttachment.aspx?mode=view&ID=%d",
		Marker:       "#MainContent_txtReqNumber",
		Headers: []HeaderField{
			{Column: "ReqNumber", Selector: "#MainContent_txtReqNumber"},
			{Column: "PONumber", Selector: "#MainContent_txtPONumber"},
			{Column: "ReceiveDate", Selector: "#MainContent_txtReceiveDate"},
			{Column: "ReceiveBy", Selector: "#MainContent_txtReceiveBy"},
		},
		RowColumns: []string{"ItemName", "Unit", "Quantity"},
		ParseRow:   parseItemRow,
	},
	TypeTLReceive: {
		Name:         TypeTLReceive,
		Description:  "Transfer-list receipts",
		Aliases:      []string{"tl", "transfer"},
		PathTemplate: "/ReceiveTransferItemDetail.aspx?ID=%d",
		Marker:       "#MainContent_txtTransferNumber",
		Headers: []HeaderField{
			{Column: "TransferNumber", Selector: "#MainContent_txtTransferNumber"},
			{Column: "ReceiveDate", Selector: "#MainContent_txtReceiveDate"},
			{Column: "ReceiveBy", Selector: "#MainContent_txtReceiveBy"},
		},
		RowColumns: []string{"ItemName", "Unit", "Quantity"},
		ParseRow:   parseItemRow,
	},
	TypeInventoryHandover: {
		Name:         TypeInventoryHandover,
		Description:  "Inventory handovers",
		Aliases:      []string{"inventory", "handover"},
		PathTemplate: "/InventoryHandoverDetail.aspx?id=%d",
		Marker:       "#MainContent_Label2",
		Headers: []HeaderField{
			{Column: "HandoverDate", Selector: "#MainContent_txtDate"},
			{Column: "CreatedBy", Selector: "#MainContent_txtCreatedBy"},
		},
		RowColumns: []string{"ItemName", "Unit", "PONumber", "ReqNumber", "Warehouse", "Quantity"},
		ParseRow:   parseHandoverRow,
		Settle:     1500 * time.Millisecond,
	},
}

// Lookup returns the document type registered under name or one of its aliases
func Lookup(name string) (*DocType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if d, ok := registry[key]; ok {
		return d, nil
	}
	for _, d := range registry {
		for _, alias := range d.Aliases {
			if alias == key {
				return d, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown document type %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Names returns the registered type names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Types returns all registered document types sorted by name
func Types() []*DocType {
	types := make([]*DocType, 0, len(registry))
	for _, name := range Names() {
		types = append(types, registry[name])
	}
	return types
}
