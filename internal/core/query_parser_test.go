package core

import (
	"math"
	"testing"

	"camqc-backend/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery_SimpleFilter(t *testing.T) {
	filter, err := ParseQuery(`notes CONTAINS "scratch"`)
	require.NoError(t, err)
	assert.Equal(t, &SubstringFilter{field: "notes", substr: "scratch"}, filter)
}

func TestParseQuery_AndExpression(t *testing.T) {
	filter, err := ParseQuery(`notes CONTAINS "dent" AND camera = "Camera 0"`)
	require.NoError(t, err)
	assert.Equal(t, &AndFilter{
		filters: []Filter{
			&SubstringFilter{field: "notes", substr: "dent"},
			&StringEqFilter{field: "camera", value: "Camera 0"},
		},
	}, filter)
}

func TestParseQuery_OrExpression(t *testing.T) {
	filter, err := ParseQuery(`type = "video" OR step > 2`)
	require.NoError(t, err)
	assert.Equal(t, &OrFilter{
		filters: []Filter{
			&StringEqFilter{field: "type", value: "video"},
			&IntCompareFilter{field: "step", op: ">", value: 2},
		},
	}, filter)
}

func TestParseQuery_NotExpression(t *testing.T) {
	filter, err := ParseQuery(`NOT notes CONTAINS "ok"`)
	require.NoError(t, err)
	assert.Equal(t, &NotFilter{filter: &SubstringFilter{field: "notes", substr: "ok"}}, filter)

	filter, err = ParseQuery(`NOT (type = "video" OR type = "image")`)
	require.NoError(t, err)
	assert.Equal(t, &NotFilter{filter: &OrFilter{
		filters: []Filter{
			&StringEqFilter{field: "type", value: "video"},
			&StringEqFilter{field: "type", value: "image"},
		},
	}}, filter)
}

func TestParseQuery_ComplexExpression(t *testing.T) {
	filter, err := ParseQuery(`camera = "Camera 1" AND (step_title CONTAINS "grip" OR NOT COUNT(markers) > 4)`)
	require.NoError(t, err)
	assert.Equal(t, &AndFilter{
		filters: []Filter{
			&StringEqFilter{field: "camera", value: "Camera 1"},
			&OrFilter{
				filters: []Filter{
					&SubstringFilter{field: "step_title", substr: "grip"},
					&NotFilter{filter: &CountFilter{field: "markers", min: 4, max: math.MaxInt}},
				},
			},
		},
	}, filter)
}

func TestParseQuery_CountFilter(t *testing.T) {
	filter, err := ParseQuery(`COUNT(barcodes) < 10`)
	require.NoError(t, err)
	assert.Equal(t, &CountFilter{field: "barcodes", min: -1, max: 10}, filter)

	filter, err = ParseQuery(`COUNT(markers) = 2`)
	require.NoError(t, err)
	assert.Equal(t, &CountFilter{field: "markers", min: 1, max: 3}, filter)
}

func TestParseQuery_InvalidQuery(t *testing.T) {
	for _, query := range []string{
		`notes CONTAINS`,
		`serial = "x"`,
		`COUNT(notes) > 1`,
		`COUNT(markers) > "1"`,
		`notes = 3`,
		`step CONTAINS 3`,
	} {
		_, err := ParseQuery(query)
		assert.Error(t, err, query)
	}
}

func TestFilterCaptures(t *testing.T) {
	records := []capture.Record{
		{Path: "a.jpg", Camera: "Camera 0", Notes: "Deep scratch", Type: capture.TypeImage, Step: 1,
			Markers: []capture.Marker{{Label: "A", Note: "scratch"}, {Label: "B"}}},
		{Path: "b.jpg", Camera: "Camera 1", Type: capture.TypeImage, Step: 2,
			BarcodeScans: []capture.BarcodeScan{{Text: "SN-1234", Format: "QR_CODE"}}},
		{Path: "c.avi", Camera: "Camera 0", Type: capture.TypeVideo},
	}

	paths := func(recs []capture.Record) []string {
		var out []string
		for _, r := range recs {
			out = append(out, r.Path)
		}
		return out
	}

	all, err := FilterCaptures(records, "  ")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matched, err := FilterCaptures(records, `notes CONTAINS "SCRATCH"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, paths(matched))

	matched, err = FilterCaptures(records, `COUNT(markers) > 1 OR barcodes CONTAINS "SN-"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, paths(matched))

	matched, err = FilterCaptures(records, `camera = "Camera 0" AND NOT type = "video"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, paths(matched))

	matched, err = FilterCaptures(records, `step = 2`)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, paths(matched))

	matched, err = FilterCaptures(records, `markers CONTAINS "a scratch"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, paths(matched))

	_, err = FilterCaptures(records, `bogus = "x"`)
	assert.Error(t, err)
}
