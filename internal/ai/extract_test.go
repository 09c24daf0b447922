package ai

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/open-sun/software/internal/apperr"
)

func docx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText("notes.MD", []byte("# 投喂记录\n上午投喂两次"))
	require.NoError(t, err)
	require.Equal(t, "# 投喂记录\n上午投喂两次", text)

	html := `<html><head><style>p{color:red}</style><script>alert(1)</script></head>
		<body><h1>水质周报</h1><p>溶解氧偏低</p></body></html>`
	text, err = ExtractText("report.html", []byte(html))
	require.NoError(t, err)
	require.Equal(t, "水质周报\n溶解氧偏低", text)

	doc := docx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>第一段</w:t></w:r></w:p><w:p><w:r><w:t>第二</w:t></w:r><w:r><w:t>段</w:t></w:r></w:p></w:body>
</w:document>`)
	text, err = ExtractText("plan.docx", doc)
	require.NoError(t, err)
	require.Equal(t, "第一段\n第二段", text)
}

func TestExtractTextRejects(t *testing.T) {
	_, err := ExtractText("photo.png", []byte{0x89, 'P', 'N', 'G'})
	require.True(t, apperr.Is(err, apperr.Validation))

	_, err = ExtractText("empty.txt", []byte("   \n"))
	require.True(t, apperr.Is(err, apperr.Validation))

	_, err = ExtractText("broken.docx", []byte("not a zip"))
	require.True(t, apperr.Is(err, apperr.Validation))
}

func TestExtractTextTruncates(t *testing.T) {
	long := strings.Repeat("鱼", MaxDocumentRunes+50)
	text, err := ExtractText("long.txt", []byte(long))
	require.NoError(t, err)
	require.Equal(t, MaxDocumentRunes, utf8.RuneCountInString(text))
}

func TestExtractDocxStopsAtSizeCap(t *testing.T) {
	filler := strings.Repeat("<w:r></w:r>", maxDocumentXML/len("<w:r></w:r>")+1024)
	doc := docx(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t>开头</w:t></w:r></w:p>`+filler+
		`<w:p><w:r><w:t>结尾</w:t></w:r></w:p></w:body></w:document>`)
	require.Less(t, len(doc), 1<<20)

	text, err := ExtractText("bomb.docx", doc)
	require.NoError(t, err)
	require.Equal(t, "开头", text)
}
