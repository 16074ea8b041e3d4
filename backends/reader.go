package backends

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
	"unicode"

	"github.com/tidwall/gjson"
)

var ErrMalformedRecord = errors.New("malformed telemetry record")

// fieldSet resolves a fixed list of record fields in one lookup. Field names
// such as "file.sha1" are flat keys, not nested paths, so they are escaped.
type fieldSet struct {
	names []string
	paths []string
}

func newFieldSet(names ...string) fieldSet {
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = gjson.Escape(name)
	}
	return fieldSet{names: names, paths: paths}
}

// record is a single undecoded telemetry document.
type record struct {
	raw     json.RawMessage
	file    string
	ordinal int
}

func (r record) lookup(fs fieldSet) []gjson.Result {
	return gjson.GetManyBytes(r.raw, fs.paths...)
}

func (r record) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s record %d: %s", ErrMalformedRecord, r.file, r.ordinal, fmt.Sprintf(format, args...))
}

// timestamp reads the epoch-millisecond field. A missing or non-numeric
// timestamp is a data contract violation.
func (r record) timestamp(field string, res gjson.Result) (time.Time, error) {
	if res.Type != gjson.Number {
		return time.Time{}, r.errorf("timestamp field %q missing or not a number", field)
	}
	return time.UnixMilli(res.Int()).UTC(), nil
}

// term stringifies a scalar field; ok is false for absent and null values.
func term(res gjson.Result) (string, bool) {
	switch res.Type {
	case gjson.Null:
		return "", false
	case gjson.String:
		return res.Str, true
	default:
		return res.Raw, true
	}
}

// scanFile streams the records of a JSON array file or a JSON Lines file,
// holding one record in memory at a time.
func scanFile(ctx context.Context, path string, fn func(record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	first, err := firstByte(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	dec := json.NewDecoder(br)
	array := first == '['
	if array {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	for ordinal := 0; ; ordinal++ {
		if array && !dec.More() {
			break
		}
		if ordinal%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF && !array {
				break
			}
			return fmt.Errorf("%w: %s record %d: %v", ErrMalformedRecord, path, ordinal, err)
		}
		rec := record{raw: raw, file: path, ordinal: ordinal}
		if !gjson.ParseBytes(raw).IsObject() {
			return rec.errorf("not a JSON object")
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if array {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}
	return nil
}

func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
