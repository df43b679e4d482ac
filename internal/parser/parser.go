package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"document-qa/internal/models"
)

const defaultPageNumber = 1

// Parser loads a stored document into ordered pages.
type Parser interface {
	LoadPages(filePath string) ([]models.Page, error)
}

// FileParser picks the extractor from the file extension.
type FileParser struct{}

func (FileParser) LoadPages(filePath string) ([]models.Page, error) {
	return LoadPages(filePath)
}

// SupportedExtension reports whether LoadPages can read files with ext.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".xltx", ".xltm", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func LoadPages(filePath string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		pages []models.Page
		err   error
	)
	switch ext {
	case ".pdf":
		return ParsePDF(filePath)
	case ".docx":
		pages, err = parseDOCX(filePath)
	case ".pptx":
		pages, err = parsePPTX(filePath)
	case ".xlsx":
		pages, err = parseXLSX(filePath)
	case ".xlsm", ".xltx", ".xltm":
		pages, err = parseExcelize(filePath)
	case ".md", ".markdown":
		pages, err = parseMarkdown(filePath)
	case ".txt":
		pages, err = parseText(filePath)
	default:
		return nil, models.Errorf(models.ErrIngest, "load "+filePath, "unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, models.NewError(models.ErrIngest, "load "+filePath, err)
	}
	return pages, nil
}

// ParsePDF extracts the plain text of every page, in page order.
func ParsePDF(filePath string) ([]models.Page, error) {
	op := "parse pdf " + filePath
	f, err := os.Open(filePath)
	if err != nil {
		return nil, models.NewError(models.ErrIngest, op, err)
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return nil, models.NewError(models.ErrIngest, op, err)
	}

	pages, err := readPDF(f, stat.Size())
	if err != nil {
		return nil, models.NewError(models.ErrIngest, op, err)
	}
	log.Debug().Str("file", filePath).Int("pages", len(pages)).Msg("Parsed PDF")
	return pages, nil
}

func readPDF(r io.ReaderAt, size int64) (pages []models.Page, err error) {
	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.Page{Number: i})
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pages = append(pages, models.Page{Number: i, Text: pageText})
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// DOCX has no page numbers; paragraphs are rejoined as one page
	content := r.Editable().GetContent()
	text := extractTextFromXML(content, "w")
	if strings.TrimSpace(text) == "" {
		text = content
	}
	return []models.Page{{Number: defaultPageNumber, Text: text}}, nil
}

func parsePPTX(filePath string) ([]models.Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var slides []*zip.File
	for _, file := range f.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i].Name) < slideNumber(slides[j].Name) })

	var pages []models.Page
	for i, file := range slides {
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		// Treat each slide as a page, 1-based
		pages = append(pages, models.Page{
			Number: i + 1,
			Text:   extractTextFromXML(string(data), "a"),
		})
	}
	return pages, nil
}

func slideNumber(name string) int {
	var n int
	fmt.Sscanf(strings.TrimPrefix(name, "ppt/slides/slide"), "%d", &n)
	return n
}

func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			text.WriteString(strings.Join(cells, "\t") + "\n")
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Text: text.String()})
	}
	return pages, nil
}

func parseExcelize(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t") + "\n")
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Text: text.String()})
	}
	return pages, nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	// TXT has no pages
	return []models.Page{{Number: defaultPageNumber, Text: string(data)}}, nil
}

// extractTextFromXML pulls the text runs (<ns:t>) out of Office XML; every
// paragraph (<ns:p>) starts a new line.
func extractTextFromXML(xmlContent, ns string) string {
	re := xmlPatterns(ns)
	var text strings.Builder
	for _, para := range re.paragraph.Split(xmlContent, -1) {
		var line strings.Builder
		for _, m := range re.run.FindAllStringSubmatch(para, -1) {
			line.WriteString(html.UnescapeString(m[1]))
		}
		if line.Len() == 0 {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(line.String())
	}
	return text.String()
}

type xmlPattern struct {
	paragraph *regexp.Regexp
	run       *regexp.Regexp
}

// Word paragraphs live under "w", DrawingML (slides) under "a".
var patterns = map[string]xmlPattern{
	"w": newXMLPattern("w"),
	"a": newXMLPattern("a"),
}

func xmlPatterns(ns string) xmlPattern {
	if p, ok := patterns[ns]; ok {
		return p
	}
	return newXMLPattern(ns)
}

func newXMLPattern(ns string) xmlPattern {
	return xmlPattern{
		paragraph: regexp.MustCompile(`<` + ns + `:p(?:\s[^>]*)?>`),
		run:       regexp.MustCompile(`<` + ns + `:t(?:\s[^>]*)?>([^<]*)</` + ns + `:t>`),
	}
}
