package tabular

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

func TestParseCSVInfersKinds(t *testing.T) {
	input := "\ufeffBrand,Year,SalesValue,Date,Channel\n" +
		"Alpha,2023,10.5,2023-01-15,Retail\n" +
		"Beta,2024,NA,2024/02/01,\n" +
		"Gamma,,7,,Online\n"

	table, err := Parse(FormatCSV, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Brand", "Year", "SalesValue", "Date", "Channel"}, table.ColumnNames())
	require.Len(t, table.Rows, 3)

	kinds := map[string]domain.ColumnKind{}
	for _, c := range table.Columns {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, domain.KindText, kinds["Brand"])
	assert.Equal(t, domain.KindInteger, kinds["Year"])
	assert.Equal(t, domain.KindFloat, kinds["SalesValue"])
	assert.Equal(t, domain.KindDate, kinds["Date"])
	assert.Equal(t, domain.KindText, kinds["Channel"])

	assert.True(t, table.Rows[1][2].Missing)
	assert.True(t, table.Rows[1][4].Missing)
	assert.True(t, table.Rows[2][1].Missing)
	assert.Equal(t, "2024-02-01", table.Rows[1][3].Value)
}

func TestParseCSVAllMissingColumnIsFloat(t *testing.T) {
	table, err := Parse(FormatCSV, strings.NewReader("a,b\n1,\n2,null\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.KindInteger, table.Columns[0].Kind)
	assert.Equal(t, domain.KindFloat, table.Columns[1].Kind)
}

func TestParseCSVCanonicalizesNumbers(t *testing.T) {
	table, err := Parse(FormatCSV, strings.NewReader("Brand,SalesValue,Year\nA,10,2024\nB,10.0,02024\nC,1e1,+2024\nD,-0.0,2024\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.KindFloat, table.Columns[1].Kind)
	assert.Equal(t, domain.KindInteger, table.Columns[2].Kind)
	for i, want := range []string{"10", "10", "10", "0"} {
		assert.Equal(t, want, table.Rows[i][1].Value)
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, "2024", table.Rows[i][2].Value)
	}
	assert.Equal(t, "A", table.Rows[0][0].Value)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "10", Canonical(domain.KindFloat, "1e1"))
	assert.Equal(t, "0.5", Canonical(domain.KindFloat, ".50"))
	assert.Equal(t, "7", Canonical(domain.KindInteger, "007"))
	assert.Equal(t, "2024-02-01", Canonical(domain.KindDate, "2024/02/01"))
	assert.Equal(t, "1e1", Canonical(domain.KindText, "1e1"))
	assert.Equal(t, "n/a", Canonical(domain.KindFloat, "n/a"))
}

func TestParseCSVPadsShortRows(t *testing.T) {
	table, err := Parse(FormatCSV, strings.NewReader("Brand,SalesValue,Volume\nA,10,1\nB,20\nC\n"))
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	for _, row := range table.Rows {
		require.Len(t, row, 3)
	}
	assert.True(t, table.Rows[1][2].Missing)
	assert.True(t, table.Rows[2][1].Missing)
	assert.True(t, table.Rows[2][2].Missing)
	assert.Equal(t, "20", table.Rows[1][1].Value)
	assert.Equal(t, domain.KindInteger, table.Columns[2].Kind)
}

func TestParseCSVRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "row longer than header", input: "a,b\n1,2,3\n"},
		{name: "bad quote", input: "a,b\n\"1,2\n"},
		{name: "invalid utf8", input: "a,b\n\xff\xfe,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(FormatCSV, strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.ErrUnparseableFile), err.Error())
		})
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Brand", "Volume"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Alpha", 12}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Beta"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	table, err := Parse(FormatXLSX, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Brand", "Volume"}, table.ColumnNames())
	require.Len(t, table.Rows, 2)
	assert.Equal(t, domain.KindInteger, table.Columns[1].Kind)
	assert.True(t, table.Rows[1][1].Missing)
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := Parse(FormatXLSX, strings.NewReader("not a workbook"))
	assert.True(t, domain.IsKind(err, domain.ErrUnparseableFile))
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatXLSX, DetectFormat("sales.xlsx", ""))
	assert.Equal(t, FormatXLSX, DetectFormat("upload", domain.MimeXLSX))
	assert.Equal(t, FormatCSV, DetectFormat("sales.csv", "text/csv"))
	assert.Equal(t, FormatCSV, DetectFormat("sales", ""))
}

type fakeStorage struct {
	files map[string]string
}

func (s *fakeStorage) Save(_ context.Context, _ string, _ io.Reader) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := s.files[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestLoaderLoadsFromStorage(t *testing.T) {
	loader := NewLoader(&fakeStorage{files: map[string]string{"k/data.csv": "brand\nAlpha\n"}})
	table, err := loader.Load(context.Background(), &domain.Dataset{StoragePath: "k/data.csv", MimeType: "text/csv"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Alpha", table.Rows[0][0].Value)

	_, err = loader.Load(context.Background(), &domain.Dataset{StoragePath: "absent.csv"})
	assert.Error(t, err)
}
