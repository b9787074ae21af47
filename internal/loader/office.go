package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	docxDefaultPath     = "word/document.xml"
	docxContentTypes    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
	openDocumentContent = "content.xml"
)

var (
	// <w:t> runs in WordprocessingML, with any attributes.
	wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// <a:t> runs in DrawingML slides.
	drawingText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// text:p, text:span and text:h elements in OpenDocument content, in document order.
	openDocumentText = regexp.MustCompile(`<text:(?:p|span|h)(?:\s[^>]*)?>([^<]*)</text:(?:p|span|h)>`)
	// Override entries naming the main document part; attribute order varies.
	overrideTag  = regexp.MustCompile(`<Override[^>]*>`)
	partNameAttr = regexp.MustCompile(`PartName="([^"]+)"`)
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipFile returns the contents of name, or nil when the archive has no such entry.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// joinMatches joins the first capture group of every match with single spaces.
func joinMatches(re *regexp.Regexp, xml []byte, parts []string) []string {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		if s := strings.TrimSpace(string(m[1])); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// docxMainPart locates the main document part from [Content_Types].xml.
func docxMainPart(zr *zip.Reader) string {
	types, err := readZipFile(zr, docxContentTypes)
	if err != nil || types == nil {
		return ""
	}
	for _, tag := range overrideTag.FindAll(types, -1) {
		if !bytes.Contains(tag, []byte(`ContentType="`+docxMainContentType+`"`)) {
			continue
		}
		if m := partNameAttr.FindSubmatch(tag); m != nil {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return ""
}

func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	part := docxMainPart(zr)
	if part == "" {
		part = docxDefaultPath
	}
	xml, err := readZipFile(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}
	return strings.Join(joinMatches(wordText, xml, nil), " "), nil
}

func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Strings(slides)
	var parts []string
	for _, name := range slides {
		xml, err := readZipFile(zr, name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		parts = joinMatches(drawingText, xml, parts)
	}
	return strings.Join(parts, " "), nil
}

// extractOpenDocument handles presentations and spreadsheets (.odp, .ods).
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	xml, err := readZipFile(zr, openDocumentContent)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", openDocumentContent)
	}
	return strings.Join(joinMatches(openDocumentText, xml, nil), " "), nil
}
