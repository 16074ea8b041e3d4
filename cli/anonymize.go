package cli

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newAnonymizeCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Strip identifying fields from a JSON telemetry file",
		Long:  "anonymize hashes file digests, blanks customer and submitter fields and writes the result as <name>.anonymized.json.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, n, err := anonymizeFile(input)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %d records to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input-file", "i", "", "JSON telemetry file (array of records)")
	_ = cmd.MarkFlagRequired("input-file")
	return cmd
}

// scrubbed holds the replacement of every field that is overwritten
// regardless of its value.
var scrubbed = map[string]any{
	"customer.channel":            nil,
	"customer.installation_type":  nil,
	"customer.type":               nil,
	"file.name":                   nil,
	"file.size":                   0,
	"source.access_key_id":        0,
	"source.data_center":          nil,
	"source.geo.country_iso_code": nil,
	"source.geo.location":         "0.00,0.00",
	"source.submitter_ip":         "0.0.0.0",
	"source.user_id":              0,
	"submission_id":               0,
	"task.portal_url":             nil,
	"task.uuid":                   strings.Repeat("a", 32),
}

func anonymizeFile(path string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return "", 0, fmt.Errorf("decode %s: %w", path, err)
	}
	for i, record := range records {
		if err := anonymize(record); err != nil {
			return "", 0, fmt.Errorf("record %d: %w", i, err)
		}
	}

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".anonymized.json"
	if err := writeRecords(out, records); err != nil {
		return "", 0, err
	}
	return out, len(records), nil
}

func anonymize(record map[string]any) error {
	for field, value := range scrubbed {
		record[field] = value
	}
	for _, d := range []struct {
		field    string
		h        func() hash.Hash
		optional bool
	}{
		{"file.md5", md5.New, false},
		{"file.sha1", sha1.New, false},
		{"file.sha256", sha256.New, true},
	} {
		v, ok := record[d.field].(string)
		if !ok || v == "" {
			if d.optional {
				continue
			}
			return fmt.Errorf("%s is not a string", d.field)
		}
		h := d.h()
		h.Write([]byte(v))
		record[d.field] = hex.EncodeToString(h.Sum(nil))
	}
	return nil
}
