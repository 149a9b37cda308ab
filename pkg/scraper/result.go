package scraper

import (
	"time"

	"poscraper/pkg/extract"
)

// Status tags the outcome of one document ID
type Status string

const (
	// StatusSuccess means at least one record was extracted
	StatusSuccess Status = "success"
	// StatusEmpty means the document was read but had nothing to extract,
	// including documents whose content frame could not be found
	StatusEmpty Status = "empty"
	// StatusFailed means processing the ID raised an error and was skipped
	StatusFailed Status = "failed"
)

// Outcome is the per-ID result handed back to the iterator
type Outcome struct {
	ID       int
	Status   Status
	Records  []extract.Record
	Err      error
	Surface  string
	Duration time.Duration
}

// Reason returns a printable description of why the ID produced no records
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Result is what one iteration over an ID range produced
type Result struct {
	Records  []extract.Record
	Outcomes []Outcome
	// Surfaces lists the identity tokens of every surface used, in order
	Surfaces []string
}

// Summary counts outcomes by status
type Summary struct {
	Succeeded int
	Empty     int
	Failed    int
	Records   int
}

// Summary tallies the result's outcomes
func (r *Result) Summary() Summary {
	s := Summary{Records: len(r.Records)}
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusEmpty:
			s.Empty++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// FailedIDs returns the IDs that were skipped because of an error
func (r *Result) FailedIDs() []int {
	var ids []int
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Dataset is the ordered output of one document-type pass
type Dataset struct {
	Type     string
	Columns  []string
	Records  []extract.Record
	Outcomes []Outcome
}

// Summary tallies the dataset's outcomes
func (d *Dataset) Summary() Summary {
	return (&Result{Records: d.Records, Outcomes: d.Outcomes}).Summary()
}

// Rows returns the records as string slices in column order. Missing columns
// are written as empty strings.
func (d *Dataset) Rows() [][]string {
	rows := make([][]string, 0, len(d.Records))
	for _, rec := range d.Records {
		row := make([]string, len(d.Columns))
		for i, col := range d.Columns {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}
	return rows
}
