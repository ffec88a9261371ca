package crud

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/koustreak/gardien/internal/database"
	"github.com/koustreak/gardien/internal/database/dbtest"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/filestore"
	"github.com/koustreak/gardien/internal/filestore/local"
	"github.com/koustreak/gardien/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productDDL = `CREATE TABLE %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nom VARCHAR(10) NOT NULL,
	prix DECIMAL(8,2),
	stock INTEGER NOT NULL DEFAULT 0,
	actif BOOLEAN,
	cree DATE
)`

func newTable(t *testing.T, opts ...Option) (*Table, *dbtest.Probe) {
	t.Helper()
	conn := dbtest.OpenMemory(t)
	dbtest.MustExec(t, conn,
		strings.Replace(productDDL, "%s", "produit", 1),
		strings.Replace(productDDL, "%s", "produit_copie", 1),
	)
	probe := dbtest.NewProbe(conn)
	tbl, err := New(probe, "produit", opts...)
	require.NoError(t, err)
	return tbl, probe
}

func seed(t *testing.T, tbl *Table) {
	t.Helper()
	ctx := context.Background()
	for _, r := range []Row{
		{"nom": "vis", "prix": 0.5, "stock": 100, "actif": true},
		{"nom": "ecrou", "prix": 0.25, "stock": 40, "actif": false},
		{"nom": "marteau", "prix": 12.9, "stock": 3, "actif": true, "cree": "2026-01-15"},
	} {
		_, err := tbl.Insert(ctx, r)
		require.NoError(t, err)
	}
}

func TestColumnFamily(t *testing.T) {
	tests := []struct {
		declared string
		family   Family
		length   int
	}{
		{"VARCHAR(255)", FamilyString, 255},
		{"character varying(40)", FamilyString, 40},
		{"TEXT", FamilyString, 0},
		{"int(11) unsigned", FamilyInteger, 0},
		{"BIGINT", FamilyInteger, 0},
		{"DECIMAL(8,2)", FamilyNumber, 0},
		{"double precision", FamilyNumber, 0},
		{"BOOLEAN", FamilyBool, 0},
		{"timestamp without time zone", FamilyDate, 0},
		{"DATETIME", FamilyDate, 0},
		{"blob", FamilyString, 0},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			fam, n := ColumnFamily(tt.declared)
			assert.Equal(t, tt.family, fam)
			assert.Equal(t, tt.length, n)
		})
	}
}

func TestValidateData(t *testing.T) {
	def := "0"
	cols := []database.ColumnInfo{
		{Name: "id", DeclaredType: "INTEGER", AutoIncrement: true},
		{Name: "nom", DeclaredType: "VARCHAR(5)"},
		{Name: "stock", DeclaredType: "INTEGER", Default: &def},
		{Name: "prix", DeclaredType: "DECIMAL(8,2)", Nullable: true},
		{Name: "actif", DeclaredType: "BOOLEAN", Nullable: true},
		{Name: "cree", DeclaredType: "DATE", Nullable: true},
	}

	tests := []struct {
		name    string
		data    Row
		partial bool
		want    []string
	}{
		{"valid", Row{"nom": "vis", "stock": "12", "prix": "1.5", "actif": "1", "cree": "2026-01-02"}, false, nil},
		{"unknown column", Row{"nom": "vis", "poids": 3}, false, []string{"column 'poids' does not exist in table produit"}},
		{"null without default", Row{"nom": nil}, false, []string{"column 'nom' cannot be NULL"}},
		{"null with default", Row{"nom": "vis", "stock": nil}, false, nil},
		{"wrong type", Row{"nom": "vis", "stock": "beaucoup"}, false, []string{"value for 'stock' is not of type integer"}},
		{"fractional integer", Row{"nom": "vis", "stock": 1.5}, false, []string{"value for 'stock' is not of type integer"}},
		{"bad date", Row{"nom": "vis", "cree": "demain"}, false, []string{"value for 'cree' is not of type date"}},
		{"too long", Row{"nom": "tournevis"}, false, []string{"value for 'nom' exceeds maximum length (5)"}},
		{"runes not bytes", Row{"nom": "éèêëà"}, false, nil},
		{"missing required", Row{"prix": 2}, false, []string{"column 'nom' is required"}},
		{"partial skips missing", Row{"prix": 2}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateData("produit", cols, tt.data, tt.partial))
		})
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(nil, "produit")
	assert.True(t, errs.IsConfiguration(err))

	_, err = New(dbtest.OpenMemory(t), "produit; DROP")
	assert.True(t, errs.IsConfiguration(err))
}

func TestTable_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTable(t)

	id, err := tbl.Insert(ctx, Row{"nom": "vis", "stock": 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	row, err := tbl.SelectOne(ctx, database.Eq("NOM", "vis"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), row["stock"])

	_, err = tbl.SelectOne(ctx, database.Eq("nom", "clou"))
	assert.True(t, errs.IsNotFound(err))

	n, err := tbl.Update(ctx, Row{"stock": 7}, database.Eq("id", id))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := tbl.Exists(ctx, database.Cond{Column: "stock", Op: "<", Value: 8})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = tbl.Delete(ctx)
	assert.True(t, errs.IsInvalidInput(err))
	_, err = tbl.Update(ctx, Row{"stock": 1})
	assert.True(t, errs.IsInvalidInput(err))

	n, err = tbl.Delete(ctx, database.Eq("nom", "vis"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := tbl.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInsert_InvalidDataNeverReachesDatabase(t *testing.T) {
	ctx := context.Background()
	tbl, probe := newTable(t)

	_, err := tbl.Structure(ctx)
	require.NoError(t, err)
	probe.Reset()

	_, err = tbl.Insert(ctx, Row{"nom": "beaucoup trop long", "stock": "x"})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Zero(t, probe.Calls())
	assert.Equal(t, []string{
		"value for 'nom' exceeds maximum length (10)",
		"value for 'stock' is not of type integer",
	}, tbl.Errors())

	tbl.ClearErrors()
	assert.Empty(t, tbl.Errors())
}

func TestSelectAll(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTable(t)
	seed(t, tbl)

	rows, err := tbl.SelectAll(ctx, Query{
		Conds: []database.Cond{{Column: "stock", Op: ">", Value: 10}},
		Order: []Order{{Column: "nom", Dir: database.Asc}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ecrou", rows[0]["nom"])
	assert.Equal(t, "vis", rows[1]["nom"])

	rows, err = tbl.SelectAll(ctx, Query{Order: []Order{{Column: "id", Dir: database.Desc}}, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ecrou", rows[0]["nom"])

	_, err = tbl.SelectAll(ctx, Query{Order: []Order{{Column: "poids"}}})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSortAndPaginate(t *testing.T) {
	tbl, _ := newTable(t)
	rows := []Row{
		{"nom": "b", "stock": int64(10)},
		{"nom": "a", "stock": int64(9)},
		{"nom": "c"},
		{"nom": "d", "stock": int64(100)},
	}

	asc := tbl.Sort(rows, "stock", database.Asc)
	assert.Equal(t, []any{"c", "a", "b", "d"}, column(asc, "nom"))
	desc := tbl.Sort(rows, "stock", database.Desc)
	assert.Equal(t, []any{"d", "b", "a", "c"}, column(desc, "nom"))
	assert.Equal(t, "b", rows[0]["nom"], "input is not reordered")

	p := tbl.Paginate(asc, 2, 3)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 2, p.Pages)
	assert.Equal(t, []any{"d"}, column(p.Rows, "nom"))

	p = tbl.Paginate(asc, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.PerPage)
	assert.Len(t, p.Rows, 1)

	assert.Empty(t, tbl.Paginate(asc, 9, 3).Rows)
}

func column(rows []Row, name string) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[name]
	}
	return out
}

func TestValidateQuery(t *testing.T) {
	tbl, _ := newTable(t)
	tests := []struct {
		name  string
		query string
		args  []any
		ok    bool
	}{
		{"select", "SELECT * FROM produit WHERE nom = ? AND stock > ?", []any{"vis", 1}, true},
		{"trailing semicolon", "DELETE FROM produit WHERE id = ?;", []any{1}, true},
		{"placeholder in literal", "SELECT * FROM produit WHERE nom = '?' AND id = ?", []any{1}, true},
		{"keyword in literal", "SELECT * FROM produit WHERE nom = 'DROP'", nil, true},
		{"column containing keyword", "SELECT created_at FROM produit", nil, true},
		{"count mismatch", "SELECT * FROM produit WHERE id = ?", nil, false},
		{"drop", "DELETE FROM produit; DROP TABLE produit", nil, false},
		{"not a data statement", "PRAGMA table_info(produit)", nil, false},
		{"stacked statements", "SELECT 1; SELECT 2", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tbl.ValidateQuery(tt.query, tt.args)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	tbl, probe := newTable(t)
	seed(t, tbl)

	res, err := tbl.Execute(ctx, "SELECT nom FROM produit WHERE stock < ? ORDER BY nom", 50)
	require.NoError(t, err)
	assert.Equal(t, []any{"ecrou", "marteau"}, column(res.Rows, "nom"))

	res, err = tbl.Execute(ctx, "UPDATE produit SET stock = stock + ? WHERE actif = ?", 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	probe.Reset()
	_, err = tbl.Execute(ctx, "DROP TABLE produit")
	assert.True(t, errs.IsInvalidInput(err))
	assert.Zero(t, probe.Calls())
}

func TestExportImport_CSV(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTable(t)
	seed(t, tbl)

	var buf bytes.Buffer
	n, err := tbl.Export(ctx, &buf, FormatCSV, "nom", "prix", "stock")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "nom,prix,stock", lines[0])
	assert.Equal(t, "vis,0.5,100", lines[1])

	require.NoError(t, tbl.SetTable("produit_copie"))
	report, err := tbl.Import(ctx, &buf, FormatCSV, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Inserted)
	assert.Zero(t, report.Failed)

	count, err := tbl.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestImport_JSONCountsRejectedRecords(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTable(t)

	in := `[{"nom":"vis","stock":4},{"nom":"beaucoup trop long"},{"stock":2}]`
	report, err := tbl.Import(ctx, strings.NewReader(in), FormatJSON, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, "record 2: value for 'nom' exceeds maximum length (10)", report.Failures[0])

	report, err = tbl.Import(ctx, strings.NewReader(in), FormatJSON, ImportOptions{StopOnError: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Failed)

	_, err = tbl.Import(ctx, strings.NewReader(`{"nom":`), FormatJSON, ImportOptions{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = tbl.Import(ctx, strings.NewReader("nom\nvis"), "xml", ImportOptions{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestImport_CSVWithoutHeader(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTable(t)

	report, err := tbl.Import(ctx, strings.NewReader("vis,3\nclou,\n"), FormatCSV,
		ImportOptions{NoHeader: true, Columns: []string{"nom", "stock"}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted, "an empty cell falls back to the column default")

	row, err := tbl.SelectOne(ctx, database.Eq("nom", "clou"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), row["stock"])
}

func TestExportObject_LocalStore(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTable(t)
	seed(t, tbl)

	store, err := local.New(&filestore.Config{Root: t.TempDir()})
	require.NoError(t, err)

	info, err := tbl.ExportObject(ctx, store, "exports", "produit.json", FormatJSON, "nom", "stock")
	require.NoError(t, err)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Positive(t, info.Size)

	require.NoError(t, tbl.SetTable("produit_copie"))
	report, err := tbl.ImportObject(ctx, store, "exports", "produit.json", FormatJSON, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Inserted)

	_, err = tbl.ImportObject(ctx, store, "exports", "absent.json", FormatJSON, ImportOptions{})
	assert.True(t, errs.IsNotFound(err))
}

func TestJournal(t *testing.T) {
	var buf bytes.Buffer
	journal := logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf})
	tbl, _ := newTable(t, WithJournal(journal))

	_, err := tbl.Insert(context.Background(), Row{"nom": "vis"})
	require.NoError(t, err)
	_, err = tbl.Insert(context.Background(), Row{"nom": nil})
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"feature":"insert"`)
	assert.Contains(t, out, `"component":"crud"`)
	assert.Contains(t, out, `"request_id"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	assert.Equal(t, "text/csv", FormatCSV.ContentType())

	_, err = ParseFormat("xml")
	assert.True(t, errs.IsInvalidInput(err))
}
