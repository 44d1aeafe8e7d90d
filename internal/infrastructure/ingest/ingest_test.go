package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"EOL Date":          "eol_date",
		" eol-date ":        "eol_date",
		"\ufeffSerial ID":   "serial_id",
		"Product  (Family)": "product_family",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeHeader(in), in)
	}
}

func TestReadAssets_HeaderMappingIsOrderFreeAndCaseInsensitive(t *testing.T) {
	src := "Support Status,SERIAL,Product,Territory,EOL Date,Unused\n" +
		"Warranty Expired,SGH123,ProLiant DL380 Gen9,56012,2015-03-31,x\n" +
		",,,,,\n" +
		"Active,SGH124,Nimble HF20,56013,03/31/2027,y\n"

	assets, issues, err := ReadAssets(strings.NewReader(src))
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, assets, 2)

	a := assets[0]
	assert.Equal(t, "SGH123", a.SerialID)
	assert.Equal(t, "ProLiant DL380 Gen9", a.ProductName)
	assert.Equal(t, "56012", a.TerritoryID)
	assert.Equal(t, "Warranty Expired", a.SupportStatus)
	require.NotNil(t, a.EOLDate)
	assert.Equal(t, time.Date(2015, 3, 31, 0, 0, 0, 0, time.UTC), *a.EOLDate)
	assert.Nil(t, a.EOSLDate)
	assert.Equal(t, 1, a.Row)
	// The blank row is skipped but still counted.
	assert.Equal(t, 3, assets[1].Row)
	assert.Equal(t, time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC), *assets[1].EOLDate)
}

func TestReadAssets_UnparsableDateBecomesIssue(t *testing.T) {
	src := "serial_id,eol_date,eosl_date\nA1,sometime soon,Not Available\n"

	assets, issues, err := ReadAssets(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Nil(t, assets[0].EOLDate)
	assert.Nil(t, assets[0].EOSLDate)

	require.Len(t, issues, 1)
	assert.Equal(t, errors.ErrCodeUnparsableValue, issues[0].Code)
	assert.Equal(t, installbase.TableAssets, issues[0].Table)
	assert.Equal(t, "eol_date", issues[0].Field)
	assert.Equal(t, "sometime soon", issues[0].Value)
	assert.Equal(t, 1, issues[0].Row)
}

func TestReadAssets_ShortRowsAndMissingColumns(t *testing.T) {
	src := "serial_id,product_name,support_status\nA1\nA2,MSA 2040\n"

	assets, _, err := ReadAssets(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "", assets[0].ProductName)
	assert.Equal(t, "MSA 2040", assets[1].ProductName)
	assert.Equal(t, "", assets[1].TerritoryID)
}

func TestReadAssets_EmptyInput(t *testing.T) {
	assets, issues, err := ReadAssets(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, assets)
	assert.Empty(t, issues)
}

func TestReadProjects(t *testing.T) {
	src := "PRJ Siebel ID,Project ID,Territory ID,Practice,PRJ Start Date,PRJ End Date,Project Size,Description\n" +
		"NOT AVAILABLE,P-1,56012,HPS,2021-01-04,2021-06-30,Large,Storage migration\n" +
		"OPP-9,P-2,56013,CLD,bad,,gigantic,\n"

	projects, issues, err := ReadProjects(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, projects, 2)

	p := projects[0]
	assert.Equal(t, "NOT AVAILABLE", p.PrimaryKey)
	assert.Equal(t, "P-1", p.ID)
	assert.Equal(t, "56012", p.SecondaryKey)
	assert.Equal(t, "HPS", p.PracticeCode)
	assert.Equal(t, "Large", p.SizeCategory)
	require.NotNil(t, p.EndDate)

	assert.Nil(t, projects[1].StartDate)
	assert.Equal(t, "gigantic", projects[1].SizeCategory)
	require.Len(t, issues, 2)
	fields := []string{issues[0].Field, issues[1].Field}
	assert.ElementsMatch(t, []string{"size_category", "start_date"}, fields)
}

func TestReadOpportunitiesAndCatalog(t *testing.T) {
	opps, _, err := ReadOpportunities(strings.NewReader("Opportunity ID,Territory,Product Line\nOPP-1,56012,Storage\n"))
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "OPP-1", opps[0].ID)
	assert.Equal(t, "Storage", opps[0].ProductLine)

	cat, _, err := ReadCatalog(strings.NewReader(
		"Practice,Sub Practice,Service Name,SKU,Products\n" +
			"Hybrid Cloud,Storage,Storage Migration Service,H1234,Q8H72A;R0Q76A\n" +
			"Hybrid Cloud,Storage,,H0000,\n" +
			"Advisory,,Proactive Health Check,N/A,\n"))
	require.NoError(t, err)
	require.Len(t, cat, 2)
	assert.Equal(t, "Storage Migration Service", cat[0].ServiceName)
	assert.Equal(t, "H1234", cat[0].SKUCode)
	assert.Equal(t, "Q8H72A;R0Q76A", cat[0].ProductMapping)
	assert.Equal(t, "", cat[1].SKUCode)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSource_Snapshot(t *testing.T) {
	dir := t.TempDir()
	files := Files{
		Assets:   writeFile(t, dir, "assets.csv", "serial_id,eol_date\nA1,2015-01-01\nA2,??\n"),
		Projects: writeFile(t, dir, "projects.csv", "project_id,secondary_key\nP1,56012\n"),
	}

	snap, err := NewSource(files, logging.NewNopLogger()).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Assets, 2)
	assert.Len(t, snap.Projects, 1)
	assert.Empty(t, snap.Opportunities)
	assert.Empty(t, snap.Catalog)
	require.Len(t, snap.Issues, 1)
	assert.Equal(t, errors.ErrCodeUnparsableValue, snap.Issues[0].Code)
}

func TestSource_MissingFileIsFatal(t *testing.T) {
	files := Files{Assets: filepath.Join(t.TempDir(), "nope.csv")}
	_, err := NewSource(files, nil).Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSourceRead))
}

func TestSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSource(Files{}, nil).Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
