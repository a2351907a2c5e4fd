package core

import (
	"strconv"
	"strings"

	"camqc-backend/internal/capture"
)

type fieldKind int

const (
	stringField fieldKind = iota
	intField
	listField
)

var captureFields = map[string]fieldKind{
	"camera":     stringField,
	"notes":      stringField,
	"type":       stringField,
	"step_title": stringField,
	"path":       stringField,
	"step":       intField,
	"markers":    listField,
	"barcodes":   listField,
}

// CaptureFields holds the queryable values of one capture. Scalar fields have
// a single value; markers hold one entry per marker (label and note) and
// barcodes one entry per scanned code.
type CaptureFields map[string][]string

func FieldsOf(rec capture.Record) CaptureFields {
	fields := CaptureFields{
		"camera":     {rec.Camera},
		"notes":      {rec.Notes},
		"type":       {rec.Type},
		"step_title": {rec.StepTitle},
		"path":       {rec.Path},
		"step":       {strconv.Itoa(rec.Step)},
	}
	for _, m := range rec.Markers {
		fields["markers"] = append(fields["markers"], strings.TrimSpace(m.Label+" "+m.Note))
	}
	for _, b := range rec.BarcodeScans {
		fields["barcodes"] = append(fields["barcodes"], b.Text)
	}
	return fields
}

type Filter interface {
	Matches(fields CaptureFields) bool
}

// FilterCaptures returns the records matching query. An empty query matches
// everything.
func FilterCaptures(records []capture.Record, query string) ([]capture.Record, error) {
	if strings.TrimSpace(query) == "" {
		return records, nil
	}

	filter, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}

	out := make([]capture.Record, 0, len(records))
	for _, rec := range records {
		if filter.Matches(FieldsOf(rec)) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type AndFilter struct {
	filters []Filter
}

func (f *AndFilter) Matches(fields CaptureFields) bool {
	for _, filter := range f.filters {
		if !filter.Matches(fields) {
			return false
		}
	}
	return true
}

type OrFilter struct {
	filters []Filter
}

func (f *OrFilter) Matches(fields CaptureFields) bool {
	for _, filter := range f.filters {
		if filter.Matches(fields) {
			return true
		}
	}
	return false
}

type NotFilter struct {
	filter Filter
}

func (f *NotFilter) Matches(fields CaptureFields) bool {
	return !f.filter.Matches(fields)
}

// CountFilter bounds are exclusive.
type CountFilter struct {
	field string
	min   int
	max   int
}

func (f *CountFilter) Matches(fields CaptureFields) bool {
	count := len(fields[f.field])
	return f.min < count && count < f.max
}

// SubstringFilter is case insensitive.
type SubstringFilter struct {
	field  string
	substr string
}

func (f *SubstringFilter) Matches(fields CaptureFields) bool {
	substr := strings.ToLower(f.substr)
	for _, v := range fields[f.field] {
		if strings.Contains(strings.ToLower(v), substr) {
			return true
		}
	}
	return false
}

type StringEqFilter struct {
	field string
	value string
}

func (f *StringEqFilter) Matches(fields CaptureFields) bool {
	for _, v := range fields[f.field] {
		if v == f.value {
			return true
		}
	}
	return false
}

type StringLtFilter struct {
	field string
	value string
}

func (f *StringLtFilter) Matches(fields CaptureFields) bool {
	for _, v := range fields[f.field] {
		if v < f.value {
			return true
		}
	}
	return false
}

type StringGtFilter struct {
	field string
	value string
}

func (f *StringGtFilter) Matches(fields CaptureFields) bool {
	for _, v := range fields[f.field] {
		if v > f.value {
			return true
		}
	}
	return false
}

type IntCompareFilter struct {
	field string
	op    string
	value int
}

func (f *IntCompareFilter) Matches(fields CaptureFields) bool {
	for _, v := range fields[f.field] {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		switch f.op {
		case "<":
			if n < f.value {
				return true
			}
		case ">":
			if n > f.value {
				return true
			}
		case "=":
			if n == f.value {
				return true
			}
		}
	}
	return false
}
