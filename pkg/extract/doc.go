// Package extract turns the rendered markup of a legacy document page into
// flat records.
//
// Each supported document type is a DocType: a URL template, a marker
// selector that only exists inside the document's content, the header fields
// read once per document, and a row parser applied to every "tbody tr". One
// header crossed with N qualifying rows yields N records, all values kept as
// trimmed strings.
//
//	dt, err := extract.Lookup("po_receive")
//	records, err := dt.Extract(100, frameHTML)
package extract
