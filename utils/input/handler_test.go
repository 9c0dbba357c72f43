package input

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/profile"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"region", "", "units", "units"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"West", "x", 10, 5}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func buildPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV("a.csv", []byte("\xEF\xBB\xBFa,b,a\n1,2\n3,x\"y,4,5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "column_3"}, tbl.Columns)
	assert.Equal(t, [][]string{{"1", "2", ""}, {"3", `x"y`, "4"}}, tbl.Rows)

	_, err = ReadCSV("empty.csv", nil)
	assert.Error(t, err)
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   []string
	}{
		{"blank and repeated", []string{"a", "", "a", " b "}, []string{"a", "column_2", "column_3", "b"}},
		{"generated name already taken", []string{"column_2", ""}, []string{"column_2", "column_2_1"}},
		{"explicit name after a generated one", []string{"", "column_1"}, []string{"column_1", "column_2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeHeader(tt.header))
		})
	}
}

func TestReadExcel(t *testing.T) {
	tbl, err := ReadExcel("book.xlsx", buildXLSX(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "column_2", "units", "column_4"}, tbl.Columns)
	assert.Equal(t, [][]string{{"West", "x", "10", "5"}}, tbl.Rows)

	_, err = ReadExcel("bad.xlsx", []byte("not a workbook"))
	assert.Error(t, err)
}

func TestReadDocx(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>tabbed</w:t></w:r></w:p>`)

	text, err := ReadDocx("brief.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond\ttabbed", text)

	_, err = ReadDocx("bad.docx", []byte("nope"))
	assert.Error(t, err)
}

func TestReadPDFInvalid(t *testing.T) {
	_, err := ReadPDF("bad.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		fileType string
		wantErr  bool
	}{
		{"Sales.CSV", KindTabular, profile.FileTypeTabular, false},
		{"book.xlsx", KindTabular, profile.FileTypeTabular, false},
		{"old.xls", "", "", true},
		{"brief.docx", KindText, profile.FileTypeDocx, false},
		{"paper.pdf", KindText, profile.FileTypePDF, false},
		{"notes.txt", "", "", true},
		{"README", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, fileType, err := DetectKind(tt.name)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.fileType, fileType)
		})
	}
}

func TestProcessUpload(t *testing.T) {
	h := NewHandler(0)

	f, err := h.ProcessUpload(Upload{Name: "dir/sales.csv", Data: []byte("region,units\nWest,10\nEast,\n")})
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", f.Name)
	assert.Equal(t, KindTabular, f.Kind)
	require.NotNil(t, f.Profile)
	assert.Equal(t, []int{2, 2}, f.Profile.Shape)
	assert.Equal(t, 1, f.Profile.NullCounts["units"])

	doc, err := h.ProcessUpload(Upload{Name: "brief.docx", Data: buildDocx(t, `<w:p><w:r><w:t>Text</w:t></w:r></w:p>`)})
	require.NoError(t, err)
	assert.Equal(t, KindText, doc.Kind)
	assert.Equal(t, "Text", doc.Text)
	assert.Equal(t, profile.FileTypeDocx, doc.Profile.FileType)
	assert.Equal(t, 4, doc.Profile.TextLength)

	_, err = h.ProcessUpload(Upload{Name: "legacy.xls", Data: []byte{0xD0, 0xCF, 0x11, 0xE0}})
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Contains(t, err.Error(), "save it as .xlsx or .csv")

	_, err = h.ProcessUpload(Upload{Name: "", Data: []byte("x")})
	assert.Error(t, err)

	small := NewHandler(4)
	_, err = small.ProcessUpload(Upload{Name: "big.csv", Data: []byte("a,b\n1,2\n")})
	assert.True(t, errors.Is(err, fileutil.ErrTooLarge))
}

func TestProcessAllKeepsOrderAndCollectsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>Market</title></head><body><p>Demand is up.</p></body></html>"))
	}))
	defer srv.Close()

	h := NewHandler(0)
	h.SetConcurrency(2)

	batch := h.ProcessAll(context.Background(),
		[]Upload{
			{Name: "sales.csv", Data: []byte("a\n1\n")},
			{Name: "notes.txt", Data: []byte("hello")},
			{Name: "bad.xlsx", Data: []byte("garbage")},
			{Name: "costs.csv", Data: []byte("b\n2\n")},
		},
		[]string{srv.URL + "/market"},
	)

	require.Len(t, batch.Files, 3)
	assert.Equal(t, "sales.csv", batch.Files[0].Name)
	assert.Equal(t, "costs.csv", batch.Files[1].Name)
	assert.Equal(t, profile.FileTypeWeb, batch.Files[2].FileType)
	assert.Equal(t, srv.URL+"/market", batch.Files[2].Source)
	assert.True(t, strings.HasSuffix(batch.Files[2].Name, "/market"))
	assert.Equal(t, "Market\nDemand is up.", batch.Files[2].Text)

	require.Len(t, batch.Errors, 2)
	assert.Equal(t, "notes.txt", batch.Errors[0].Name)
	assert.True(t, batch.Errors[0].Unsupported())
	assert.Equal(t, "bad.xlsx", batch.Errors[1].Name)
	assert.False(t, batch.Errors[1].Unsupported())
}

func TestProcessPlot(t *testing.T) {
	h := NewHandler(0)

	plot, err := h.ProcessPlot(Upload{Name: "chart.png", Data: buildPNG(t, 1024, 256)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", plot.MIME)
	assert.Equal(t, 512, plot.Width)
	assert.Equal(t, 128, plot.Height)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(plot.Data))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)

	small, err := h.ProcessPlot(Upload{Name: "small.png", Data: buildPNG(t, 100, 50)})
	require.NoError(t, err)
	assert.Equal(t, 100, small.Width)

	html, err := h.ProcessPlot(Upload{Name: "plot_output.html", Data: []byte("<div>plot</div>")})
	require.NoError(t, err)
	assert.Equal(t, "text/html", html.MIME)
	assert.Equal(t, "<div>plot</div>", string(html.Data))

	_, err = h.ProcessPlot(Upload{Name: "anim.gif", Data: []byte("GIF89a")})
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	_, err = h.ProcessPlot(Upload{Name: "broken.jpg", Data: []byte("nope")})
	assert.Error(t, err)
}
