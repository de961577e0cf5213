package engine

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DocumentTitle — заголовок документа, создаваемого из текста.
const DocumentTitle = "Extracted Text Document"

var blankLine = regexp.MustCompile(`\n\s*\n`)

type docxPart struct {
	name string
	body string
}

// docxParts — статические части минимального WordprocessingML пакета.
var docxParts = []docxPart{
	{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/><Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/></Types>`},
	{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
	{"word/_rels/document.xml.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`},
	{"word/styles.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:spacing w:after="160"/></w:pPr><w:rPr><w:sz w:val="22"/></w:rPr></w:style><w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:spacing w:after="240"/></w:pPr><w:rPr><w:b/><w:sz w:val="56"/></w:rPr></w:style></w:styles>`},
}

// SplitParagraphs делит текст на абзацы по пустым строкам; пустые абзацы отбрасываются.
func SplitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WriteDOCX записывает DOCX по пути output: заголовок DocumentTitle и по
// одному абзацу на блок текста, разделённый пустой строкой. Переводы строк
// внутри абзаца становятся разрывами строки.
func WriteDOCX(text, output string) error {
	var doc bytes.Buffer
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	writeParagraph(&doc, DocumentTitle, "Title")
	for _, p := range SplitParagraphs(text) {
		writeParagraph(&doc, p, "")
	}
	doc.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`)
	doc.WriteString(`</w:body></w:document>`)

	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка создания DOCX: %w", err)
	}

	zw := zip.NewWriter(f)
	parts := append(docxParts[:len(docxParts):len(docxParts)], docxPart{"word/document.xml", doc.String()})

	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			f.Close()
			os.Remove(output)
			return fmt.Errorf("ошибка записи части %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			f.Close()
			os.Remove(output)
			return fmt.Errorf("ошибка записи части %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(output)
		return fmt.Errorf("ошибка завершения DOCX: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(output)
		return fmt.Errorf("ошибка закрытия DOCX: %w", err)
	}
	return nil
}

func writeParagraph(buf *bytes.Buffer, text, style string) {
	buf.WriteString("<w:p>")
	if style != "" {
		buf.WriteString(`<w:pPr><w:pStyle w:val="` + style + `"/></w:pPr>`)
	}
	buf.WriteString("<w:r>")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			buf.WriteString("<w:br/>")
		}
		buf.WriteString(`<w:t xml:space="preserve">`)
		xml.EscapeText(buf, []byte(strings.TrimRight(line, "\r")))
		buf.WriteString("</w:t>")
	}
	buf.WriteString("</w:r></w:p>")
}
