package table

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbookBytes(t *testing.T, fill func(f *excelize.File)) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if fill != nil {
		fill(f)
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestProcessFileCSV(t *testing.T) {
	file := ProcessFile("sales.csv", "text/plain", []byte("category,value\nA,10\n"))

	assert.Equal(t, StatusReady, file.Status)
	assert.Equal(t, CSVMimeType, file.Type)
	assert.Equal(t, "category,value\nA,10\n", file.RawContent)
}

func TestProcessFileUnsupported(t *testing.T) {
	file := ProcessFile("notes.pdf", "application/pdf", []byte("%PDF"))

	assert.Equal(t, StatusError, file.Status)
	assert.Contains(t, file.ErrorMessage, "unsupported file type")
}

func TestProcessFileSpreadsheetFirstSheetOnly(t *testing.T) {
	data := workbookBytes(t, func(f *excelize.File) {
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"category", "value"}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"A", 10}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"B", 20}))

		_, err := f.NewSheet("Other")
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Other", "A1", &[]interface{}{"ignored"}))
	})

	file := ProcessFile("book.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	require.Equal(t, StatusReady, file.Status, file.ErrorMessage)
	assert.Equal(t, "category,value\nA,10\nB,20\n", file.RawContent)
	assert.NotContains(t, file.RawContent, "ignored")

	tbl, err := Parse(file.RawContent, ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, Number(20), tbl.Rows[1]["value"])
}

func TestProcessFileEmptyWorkbook(t *testing.T) {
	data := workbookBytes(t, nil)

	file := ProcessFile("empty.xlsx", "", data)
	assert.Equal(t, StatusError, file.Status)
	assert.Equal(t, EmptySpreadsheetMessage, file.ErrorMessage)
	assert.Empty(t, file.RawContent)
}

func TestProcessFileCorruptWorkbook(t *testing.T) {
	file := ProcessFile("broken.xlsx", "", []byte("not a zip"))
	assert.Equal(t, StatusError, file.Status)
	assert.NotEmpty(t, file.ErrorMessage)
}

func TestSpreadsheetToCSVErrors(t *testing.T) {
	_, err := SpreadsheetToCSV("empty.xlsx", workbookBytes(t, nil))

	var se *SpreadsheetError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "empty.xlsx", se.File)
	assert.ErrorIs(t, err, ErrEmptySpreadsheet)
	assert.Equal(t, `spreadsheet "empty.xlsx": spreadsheet is empty`, err.Error())
}

func TestProcessFileLegacyXLS(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "codes.xls"))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, oleMagic))

	file := ProcessFile("codes.xls", "application/vnd.ms-excel", data)
	require.Equal(t, StatusReady, file.Status, file.ErrorMessage)
	assert.Equal(t, CSVMimeType, file.Type)
	assert.True(t, strings.HasPrefix(file.RawContent, "Code,Name,Description\ncode1,name1,description1\ncode2,name2,description2\n"), file.RawContent)
	assert.True(t, strings.HasSuffix(file.RawContent, "code11,name11,description11\n"), file.RawContent)

	tbl, err := Parse(file.RawContent, ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Code", "Name", "Description"}, tbl.Headers)
	assert.Len(t, tbl.Rows, 11)
}

func TestProcessFileCorruptXLS(t *testing.T) {
	data := append(append([]byte{}, oleMagic...), bytes.Repeat([]byte{0xFF}, 600)...)

	file := ProcessFile("broken.xls", "application/vnd.ms-excel", data)
	assert.Equal(t, StatusError, file.Status)
	assert.Contains(t, file.ErrorMessage, `spreadsheet "broken.xls": not an excel file`)
	assert.Empty(t, file.RawContent)
}

func TestDecodeUploadBadBase64(t *testing.T) {
	file := DecodeUpload("a.csv", "text/csv", "***")
	assert.Equal(t, StatusError, file.Status)
	assert.Contains(t, file.ErrorMessage, ErrFileRead.Error())
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data.csv":
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			_, _ = w.Write([]byte("a,b\n1,2\n"))
		case "/big.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("a,b\n" + strings.Repeat("1,2\n", 1024)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetcher(t *testing.T) {
	server := testServer(t)
	ctx := testContext(t)

	// httptest listens on loopback, which NewFetcher refuses
	f := newFetcher(0, nil)
	f.httpClient.SetRetryCount(0)

	file := f.Fetch(ctx, server.URL+"/data.csv?token=x")
	assert.Equal(t, StatusReady, file.Status)
	assert.Equal(t, "data.csv", file.Name)
	assert.True(t, strings.HasPrefix(file.RawContent, "a,b"))

	missing := f.Fetch(ctx, server.URL+"/missing.csv")
	assert.Equal(t, StatusError, missing.Status)
	assert.Contains(t, missing.ErrorMessage, "status 404")
}

func TestFetcherBodyLimit(t *testing.T) {
	server := testServer(t)
	ctx := testContext(t)

	f := newFetcher(1024, nil)
	f.httpClient.SetRetryCount(0)

	file := f.Fetch(ctx, server.URL+"/big.csv")
	assert.Equal(t, StatusError, file.Status)
	assert.Contains(t, file.ErrorMessage, "response body too large")
	assert.Empty(t, file.RawContent)

	assert.Equal(t, StatusReady, f.Fetch(ctx, server.URL+"/data.csv").Status)
}

func TestFetcherRejectsInternalTargets(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer server.Close()

	ctx := testContext(t)
	f := NewFetcher(0)

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"loopback", server.URL + "/data.csv", "url not allowed: 127.0.0.1"},
		{"localhost name", strings.Replace(server.URL, "127.0.0.1", "localhost", 1) + "/data.csv", "url not allowed"},
		{"file scheme", "file:///etc/passwd", `url not allowed: scheme "file"`},
		{"ftp scheme", "ftp://example.com/data.csv", `url not allowed: scheme "ftp"`},
		{"no host", "http:///data.csv", "url not allowed: missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := f.Fetch(ctx, tt.url)
			assert.Equal(t, StatusError, file.Status)
			assert.Contains(t, file.ErrorMessage, tt.want)
		})
	}
	assert.Zero(t, hits.Load())
}

func TestRejectInternal(t *testing.T) {
	tests := []struct {
		address string
		allowed bool
	}{
		{"127.0.0.1:80", false},
		{"[::1]:443", false},
		{"10.1.2.3:80", false},
		{"172.16.0.1:80", false},
		{"192.168.1.10:8080", false},
		{"169.254.169.254:80", false},
		{"[fe80::1]:80", false},
		{"[fd00::1]:80", false},
		{"0.0.0.0:80", false},
		{"[::ffff:127.0.0.1]:80", false},
		{"93.184.216.34:443", true},
		{"[2606:4700::1111]:443", true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := rejectInternal("tcp", tt.address, nil)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrURLNotAllowed)
		})
	}
}
