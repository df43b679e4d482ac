package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"document-qa/internal/models"
)

func parseMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []models.Page{{Number: defaultPageNumber, Text: markdownToText(data)}}, nil
}

// markdownToText drops markdown syntax and keeps the readable text, one blank
// line between blocks so the chunker can still break on paragraphs.
func markdownToText(source []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var buf strings.Builder
	endBlock := func() {
		if buf.Len() > 0 && !strings.HasSuffix(buf.String(), "\n\n") {
			buf.WriteString("\n\n")
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				switch {
				case node.HardLineBreak():
					buf.WriteString("\n")
				case node.SoftLineBreak():
					buf.WriteString(" ")
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.Label(source))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				return ast.WalkSkipChildren, nil
			}
			endBlock()
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *east.TableCell:
			if !entering {
				buf.WriteString("\t")
			}
		case *east.TableHeader, *east.TableRow:
			if !entering {
				buf.WriteString("\n")
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *east.Table:
			if !entering {
				endBlock()
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
