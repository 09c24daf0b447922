package ai

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/open-sun/software/internal/apperr"
)

// MaxDocumentRunes caps how much extracted text is sent to the model.
const MaxDocumentRunes = 20000

// maxDocumentXML caps how much of word/document.xml is decompressed.
const maxDocumentXML = 8 << 20

// ExtractText returns the readable text of an uploaded document. The
// type is decided by the file extension.
func ExtractText(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md", ".csv", ".json":
		if !utf8.Valid(data) {
			return "", apperr.New(apperr.Validation, "file is not UTF-8 text")
		}
		text = string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	case ".html", ".htm":
		text, err = htmlText(data)
	case ".docx":
		text, err = docxText(data)
	default:
		return "", apperr.New(apperr.Validation, fmt.Sprintf("unsupported file type %q", ext))
	}
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "could not read document", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.Validation, "document contains no text")
	}
	return truncateRunes(text, MaxDocumentRunes), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("p, div, br, li, tr, h1, h2, h3, h4, h5, h6, section, article").AppendHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// docxText pulls the paragraph text out of word/document.xml.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()

		lr := &io.LimitedReader{R: rc, N: maxDocumentXML}
		text, err := wordXMLText(lr)
		if err != nil && lr.N <= 0 {
			// Cut off mid-element; keep what was read.
			return text, nil
		}
		return text, err
	}
	return "", fmt.Errorf("word/document.xml not found")
}

func wordXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.String(), err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
		if b.Len() >= MaxDocumentRunes*utf8.UTFMax {
			break
		}
	}
	return b.String(), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
