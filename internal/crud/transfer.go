package crud

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/filestore"
)

// Format is an import/export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", errs.Newf(errs.ErrKindInvalidInput, "unsupported format %q", s)
}

// ContentType is the MIME type stored with exported objects.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// ImportOptions controls Import.
type ImportOptions struct {
	// NoHeader treats the first CSV line as data. Columns then names the
	// fields in order.
	NoHeader bool
	Columns  []string

	// StopOnError aborts at the first rejected record.
	StopOnError bool
}

// ImportReport summarises an import. Failures lists one message per
// rejected record.
type ImportReport struct {
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// Import reads records from r and inserts them one by one. Rejected records
// are counted, not fatal; read errors and connectivity failures abort.
func (t *Table) Import(ctx context.Context, r io.Reader, f Format, opts ImportOptions) (*ImportReport, error) {
	const feature = "import"
	var (
		records []Row
		err     error
	)
	switch f {
	case FormatCSV:
		records, err = readCSV(r, opts)
	case FormatJSON:
		records, err = readJSON(r)
	default:
		err = errs.Newf(errs.ErrKindInvalidInput, "unsupported format %q", f)
	}
	if err != nil {
		return nil, t.fail(feature, err)
	}

	report := &ImportReport{}
	for i, rec := range records {
		if _, err := t.Insert(ctx, rec); err != nil {
			switch errs.KindOf(err) {
			case errs.ErrKindValidation, errs.ErrKindConflict, errs.ErrKindInvalidInput:
			default:
				return report, err
			}
			report.Failed++
			report.Failures = append(report.Failures, fmt.Sprintf("record %d: %s", i+1, errs.MessageOf(err)))
			if opts.StopOnError {
				break
			}
			continue
		}
		report.Inserted++
	}

	t.log(feature, fmt.Sprintf("import finished: %d inserted, %d failed", report.Inserted, report.Failed))
	return report, nil
}

func readCSV(r io.Reader, opts ImportOptions) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed CSV", err)
	}

	header := opts.Columns
	if !opts.NoHeader {
		if len(lines) == 0 {
			return nil, nil
		}
		header, lines = lines[0], lines[1:]
	}
	if len(header) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "CSV import needs a header line or column names")
	}

	out := make([]Row, 0, len(lines))
	for n, line := range lines {
		if len(line) != len(header) {
			return nil, errs.Newf(errs.ErrKindInvalidInput,
				"CSV line %d has %d fields, expected %d", n+1, len(line), len(header))
		}
		rec := make(Row, len(header))
		for i, col := range header {
			// an empty cell is NULL
			if line[i] == "" {
				rec[strings.TrimSpace(col)] = nil
				continue
			}
			rec[strings.TrimSpace(col)] = line[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

func readJSON(r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out []Row
	if err := dec.Decode(&out); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed JSON: expected an array of objects", err)
	}
	for _, rec := range out {
		for k, v := range rec {
			if n, ok := v.(json.Number); ok {
				rec[k] = fromNumber(n)
			}
		}
	}
	return out, nil
}

func fromNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// Export writes every row of the table to w. columns restricts and orders
// the output; when empty, all columns are written in declaration order.
// It returns the number of records written.
func (t *Table) Export(ctx context.Context, w io.Writer, f Format, columns ...string) (int, error) {
	const feature = "export"
	if _, err := ParseFormat(string(f)); err != nil {
		return 0, t.fail(feature, err)
	}
	cols, err := t.Structure(ctx)
	if err != nil {
		return 0, t.fail(feature, err)
	}

	names := make([]string, 0, len(cols))
	if len(columns) == 0 {
		for _, c := range cols {
			names = append(names, c.Name)
		}
	} else {
		for _, name := range columns {
			col, ok := findColumn(cols, name)
			if !ok {
				return 0, t.fail(feature, unknownColumn(t.Name(), name))
			}
			names = append(names, col.Name)
		}
	}

	q, args, err := database.Select(t.Name(), t.db.Dialect()).Columns(names...).Build()
	if err != nil {
		return 0, t.fail(feature, err)
	}
	rows, err := t.db.Query(ctx, q, args...)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	data, err := database.ScanRows(rows)
	if err != nil {
		return 0, t.fail(feature, err)
	}
	if len(data) == 0 {
		t.journal.WarnWith("no data to export", nil, t.fields(feature))
	}

	if f == FormatJSON {
		err = writeJSON(w, data)
	} else {
		err = writeCSV(w, names, data)
	}
	if err != nil {
		return 0, t.fail(feature, errs.Wrap(errs.ErrKindIO, "write export", err))
	}

	t.log(feature, fmt.Sprintf("%s export of %d records", strings.ToUpper(string(f)), len(data)))
	return len(data), nil
}

func writeCSV(w io.Writer, header []string, data []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	line := make([]string, len(header))
	for _, row := range data {
		for i, col := range header {
			line[i] = cell(row[col])
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return database.Timestamp(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func writeJSON(w io.Writer, data []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// ExportObject exports the table into bucket/key of store, creating the
// bucket when needed.
func (t *Table) ExportObject(ctx context.Context, store filestore.Store, bucket, key string, f Format, columns ...string) (*filestore.ObjectInfo, error) {
	const feature = "export"
	var buf bytes.Buffer
	if _, err := t.Export(ctx, &buf, f, columns...); err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx, bucket); err != nil {
		return nil, t.fail(feature, err)
	}
	info, err := store.PutObject(ctx, bucket, key, &buf, int64(buf.Len()), f.ContentType())
	if err != nil {
		return nil, t.fail(feature, err)
	}
	t.log(feature, fmt.Sprintf("export stored as %s/%s", bucket, key))
	return info, nil
}

// ImportObject imports the object at bucket/key of store.
func (t *Table) ImportObject(ctx context.Context, store filestore.Store, bucket, key string, f Format, opts ImportOptions) (*ImportReport, error) {
	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, t.fail("import", err)
	}
	defer obj.Close()
	return t.Import(ctx, obj, f, opts)
}
