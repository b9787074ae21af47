package loader

import (
	"strings"
	"unicode/utf8"

	"github.com/lu4p/cat"
)

var builtins = map[string]ExtractFunc{
	".txt":      extractPlain,
	".md":       extractPlain,
	".markdown": extractPlain,
	".rst":      extractPlain,
	".pdf":      extractPDF,
	".docx":     extractDOCX,
	".pptx":     extractPPTX,
	".xlsx":     extractExcel,
	".odp":      extractOpenDocument,
	".ods":      extractOpenDocument,
	".odt":      extractRichText,
	".rtf":      extractRichText,
}

// Builtin returns the built-in extractor for ext.
func Builtin(ext string) (ExtractFunc, bool) {
	fn, ok := builtins[normalizeExt(ext)]
	return fn, ok
}

// BuiltinExtensions lists every extension with a built-in extractor.
func BuiltinExtensions() []string {
	out := make([]string, 0, len(builtins))
	for ext := range builtins {
		out = append(out, ext)
	}
	return out
}

// extractPlain returns content as text, replacing invalid UTF-8 with U+FFFD.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "�"), nil
	}
	return string(content), nil
}

// extractRichText handles RTF and ODT through cat's format sniffing.
func extractRichText(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
