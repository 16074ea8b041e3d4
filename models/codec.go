package models

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// TimestampLayout is the date-time layout used by the baseline file.
const TimestampLayout = "2006-01-02 15:04:05"

const globalTableFields = 10

// MarshalJSON writes the table as the ordered 10-element sequence
// [start_ts, end_ts, window_count, sub_count_avg, sub_count_max,
// samp_count_avg, samp_count_max, samp_sub_count_avg, samp_sub_count_max,
// threshold_suggested].
func (g GlobalTable) MarshalJSON() ([]byte, error) {
	return json.Marshal([globalTableFields]any{
		g.StartTS.UTC().Format(TimestampLayout),
		g.EndTS.UTC().Format(TimestampLayout),
		g.WindowCount,
		g.SubCountAvg,
		g.SubCountMax,
		g.SampCountAvg,
		g.SampCountMax,
		g.SampSubCountAvg,
		g.SampSubCountMax,
		g.ThresholdSuggested,
	})
}

func (g *GlobalTable) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if len(raw) != globalTableFields {
		return fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidTable, globalTableFields, len(raw))
	}

	var t GlobalTable
	var err error
	if t.StartTS, err = parseTimestamp(raw[0]); err != nil {
		return err
	}
	if t.EndTS, err = parseTimestamp(raw[1]); err != nil {
		return err
	}
	ints := []*int{
		&t.WindowCount,
		&t.SubCountAvg,
		&t.SubCountMax,
		&t.SampCountAvg,
		&t.SampCountMax,
		&t.SampSubCountAvg,
	}
	for i, dst := range ints {
		if err := decodeInt(raw[2+i], dst); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(raw[8], &t.SampSubCountMax); err != nil {
		return fmt.Errorf("%w: samp_sub_count_max: %v", ErrInvalidTable, err)
	}
	if err := decodeInt(raw[9], &t.ThresholdSuggested); err != nil {
		return err
	}

	*g = t
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidTable, err)
	}
	if len(s) > len(TimestampLayout) {
		s = s[:len(TimestampLayout)]
	}
	ts, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return ts, nil
}

// decodeInt accepts integral JSON numbers, including ones written as 3.0.
func decodeInt(raw json.RawMessage, dst *int) error {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("%w: %v is not an integer", ErrInvalidTable, f)
	}
	*dst = int(f)
	return nil
}

// EncodeGlobalTables writes the baseline document with sorted keys and
// two-space indentation.
func EncodeGlobalTables(w io.Writer, tables GlobalTables) error {
	return encodeIndented(w, tables)
}

func DecodeGlobalTables(r io.Reader) (GlobalTables, error) {
	tables := make(GlobalTables)
	if err := json.NewDecoder(r).Decode(&tables); err != nil {
		return nil, fmt.Errorf("decode global tables: %w", err)
	}
	if tables == nil {
		tables = make(GlobalTables)
	}
	var invalid error
	tables.Each(func(dim0, dim1 string, t GlobalTable) {
		if err := t.Validate(); err != nil && invalid == nil {
			invalid = fmt.Errorf("%w: %s/%s: %v", ErrInvalidTable, dim0, dim1, err)
		}
	})
	if invalid != nil {
		return nil, invalid
	}
	return tables, nil
}

func EncodePeaks(w io.Writer, peaks TelemetryPeaks) error {
	return encodeIndented(w, peaks)
}

func DecodePeaks(r io.Reader) (TelemetryPeaks, error) {
	peaks := make(TelemetryPeaks)
	if err := json.NewDecoder(r).Decode(&peaks); err != nil {
		return nil, fmt.Errorf("decode peaks: %w", err)
	}
	if peaks == nil {
		peaks = make(TelemetryPeaks)
	}
	return peaks, nil
}

func encodeIndented[T any](w io.Writer, grid Grid[T]) error {
	if grid == nil {
		grid = make(Grid[T])
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(grid)
}
