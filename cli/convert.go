package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

var severities = []string{"benign", "malicious", "suspicious"}

// csvColumns maps the legacy CSV export columns to record fields.
var csvColumns = map[string]string{
	"vt_label":          "analysis.label",
	"channel":           "customer.channel",
	"installation_type": "customer.installation_type",
	"region":            "customer.region",
	"sector":            "customer.sector",
	"key_type":          "customer.type",
	"file_type":         "file.llfile_type",
	"md5":               "file.md5",
	"mime_type":         "file.mime_type",
	"sha1":              "file.sha1",
	"file_size":         "file.size",
	"access_key_id":     "source.access_key_id",
	"data_center":       "source.data_center",
	"origin":            "source.origin",
	"submitter_ip":      "source.submitter_ip",
	"user_id":           "source.user_id",
	"submission_id":     "submission_id",
	"score":             "task.score",
	"severity":          "task.severity",
	"task_uuid":         "task.uuid",
}

const csvTimestampLayout = "2006-01-02 15:04:05"

func newConvertCmd(a *app) *cobra.Command {
	var input, severity string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a legacy CSV telemetry export into JSON records",
		Long:  "convert reads a CSV export and writes the records next to it as <name>.json, ready for the json backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if severity != "" && !slices.Contains(severities, severity) {
				return fmt.Errorf("unknown severity %q, expected one of %s", severity, strings.Join(severities, ","))
			}
			out, n, err := convertFile(input, severity)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %d records to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input-file", "i", "", "CSV file to convert")
	cmd.Flags().StringVarP(&severity, "severity-filter", "s", "", "keep only this severity ("+strings.Join(severities, ",")+")")
	_ = cmd.MarkFlagRequired("input-file")
	return cmd
}

func convertFile(path, severity string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	records, err := convertCSV(f, severity)
	if err != nil {
		return "", 0, fmt.Errorf("convert %s: %w", path, err)
	}
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if out == path {
		return "", 0, errors.New("input already has a .json extension")
	}
	if err := writeRecords(out, records); err != nil {
		return "", 0, err
	}
	return out, len(records), nil
}

func convertCSV(r io.Reader, severity string) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range append(sortedColumns(), "ts") {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	records := []map[string]any{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if severity != "" && row[index["severity"]] != severity {
			continue
		}
		ts, err := time.ParseInLocation(csvTimestampLayout, row[index["ts"]], time.UTC)
		if err != nil {
			line, _ := reader.FieldPos(index["ts"])
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		record := map[string]any{
			"file.magic":                  nil,
			"file.name":                   nil,
			"file.sha256":                 nil,
			"source.geo.country_iso_code": nil,
			"source.geo.location":         "0.00,0.00",
			"task.portal_url":             nil,
			"utc_timestamp":               ts.UnixMilli(),
		}
		for col, field := range csvColumns {
			record[field] = row[index[col]]
		}
		records = append(records, record)
	}
	return records, nil
}

func sortedColumns() []string {
	cols := make([]string, 0, len(csvColumns))
	for col := range csvColumns {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	return cols
}

// writeRecords writes records as an indented JSON array with sorted keys.
func writeRecords(path string, records []map[string]any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
