package models

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGlobalTableRoundTrip(t *testing.T) {
	tables := GlobalTables{}
	tables.Set("malicious", "file_type", GlobalTable{
		StartTS:            date("2020-06-17 00:00:00"),
		EndTS:              date("2020-07-12 00:00:00"),
		WindowCount:        25,
		SubCountAvg:        1,
		SubCountMax:        10,
		SampCountAvg:       4,
		SampCountMax:       10,
		SampSubCountAvg:    0,
		SampSubCountMax:    0,
		ThresholdSuggested: 10,
	})
	tables.Set("benign", "PeExeFile", GlobalTable{
		StartTS:            date("2021-01-01 12:30:45"),
		EndTS:              date("2021-01-08 12:30:45"),
		WindowCount:        7,
		SubCountAvg:        812,
		SubCountMax:        1290,
		SampCountAvg:       403,
		SampCountMax:       611,
		SampSubCountAvg:    2,
		SampSubCountMax:    3.4285714285714284,
		ThresholdSuggested: 812,
	})

	var buf bytes.Buffer
	require.NoError(t, EncodeGlobalTables(&buf, tables))

	loaded, err := DecodeGlobalTables(&buf)
	require.NoError(t, err)
	assert.Equal(t, tables, loaded)

	tables.Each(func(d0, d1 string, want GlobalTable) {
		got, ok := loaded.Get(d0, d1)
		require.True(t, ok)
		assert.True(t, want == got, "%s/%s differs after reload", d0, d1)
	})
}

func TestGlobalTableFieldOrder(t *testing.T) {
	table := GlobalTable{
		StartTS:            date("2020-06-17 00:00:00"),
		EndTS:              date("2020-07-12 00:00:00"),
		WindowCount:        25,
		SubCountAvg:        1,
		SubCountMax:        10,
		SampCountAvg:       4,
		SampCountMax:       11,
		SampSubCountAvg:    2,
		SampSubCountMax:    2.5,
		ThresholdSuggested: 90,
	}
	data, err := table.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["2020-06-17 00:00:00","2020-07-12 00:00:00",25,1,10,4,11,2,2.5,90]`, string(data))
}

func TestDecodeGlobalTablesTruncatesTimestamps(t *testing.T) {
	doc := `{
  "benign": {
    "PdfFile": ["2021-08-01 00:00:00.123456", "2021-08-08 10:11:12+00:00", 7, 10.0, 20, 5, 8, 2, 4.0, 500]
  }
}`
	tables, err := DecodeGlobalTables(strings.NewReader(doc))
	require.NoError(t, err)

	got, ok := tables.Get("benign", "PdfFile")
	require.True(t, ok)
	assert.Equal(t, date("2021-08-01 00:00:00"), got.StartTS)
	assert.Equal(t, date("2021-08-08 10:11:12"), got.EndTS)
	assert.Equal(t, 10, got.SubCountAvg)
	assert.Equal(t, 4.0, got.SampSubCountMax)
	assert.Equal(t, 500, got.ThresholdSuggested)
}

func TestDecodeGlobalTablesRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"short":      `{"a": {"b": ["2021-08-01 00:00:00", "2021-08-02 00:00:00", 1]}}`,
		"bad date":   `{"a": {"b": ["yesterday", "2021-08-02 00:00:00", 1, 1, 1, 1, 1, 1, 1, 1]}}`,
		"fractions":  `{"a": {"b": ["2021-08-01 00:00:00", "2021-08-02 00:00:00", 1.5, 1, 1, 1, 1, 1, 1, 1]}}`,
		"no windows": `{"a": {"b": ["2021-08-01 00:00:00", "2021-08-02 00:00:00", 0, 1, 1, 1, 1, 1, 1, 1]}}`,
		"reversed":   `{"a": {"b": ["2021-08-03 00:00:00", "2021-08-02 00:00:00", 1, 1, 1, 1, 1, 1, 1, 1]}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeGlobalTables(strings.NewReader(doc))
			require.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestEncodeEmptyGrids(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePeaks(&buf, nil))
	assert.Equal(t, "{}\n", buf.String())

	peaks, err := DecodePeaks(strings.NewReader("null"))
	require.NoError(t, err)
	assert.Equal(t, 0, peaks.Len())
}

func TestGlobalTableValidate(t *testing.T) {
	valid := GlobalTable{
		StartTS:     date("2021-08-01 00:00:00"),
		EndTS:       date("2021-08-02 00:00:00"),
		WindowCount: 1,
	}
	require.NoError(t, valid.Validate())

	zero := valid
	zero.WindowCount = 0
	assert.Error(t, zero.Validate())

	reversed := valid
	reversed.EndTS = valid.StartTS.Add(-time.Hour)
	assert.Error(t, reversed.Validate())
}
