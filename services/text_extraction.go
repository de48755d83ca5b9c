package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"document-query-platform/internal/config"
	"document-query-platform/internal/logger"
	"document-query-platform/models"

	"github.com/ledongthuc/pdf"
)

// maxExtractionBytes caps in-memory extraction to avoid OOM on oversized
// uploads.
const maxExtractionBytes = 200 << 20

// paragraphGapFactor is the vertical gap, in multiples of the current font
// size, that separates two paragraphs on a page.
const paragraphGapFactor = 1.8

// TextExtractor turns uploaded files into positioned page/paragraph text.
// PDFs are parsed directly; images go through the OCR service when one is
// configured.
type TextExtractor struct {
	config *config.Config
	ocr    *OCRClient
}

func NewTextExtractor(cfg *config.Config, ocr *OCRClient) *TextExtractor {
	return &TextExtractor{config: cfg, ocr: ocr}
}

// ExtractPages extracts positioned text from the file at filePath.
func (e *TextExtractor) ExtractPages(ctx context.Context, filePath, contentType string) ([]models.DocumentPage, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() > maxExtractionBytes {
		return nil, fmt.Errorf("file too large for in-memory extraction")
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	switch {
	case contentType == "application/pdf":
		return e.extractPDF(ctx, content)
	case strings.HasPrefix(contentType, "image/"):
		if e.ocr == nil || !e.config.OCRServiceEnabled {
			return nil, fmt.Errorf("OCR is not enabled, cannot process %s", contentType)
		}
		return e.ocr.ExtractPages(ctx, content, contentType)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// extractPDF walks each page's content stream, groups fragments into lines
// by baseline and lines into paragraphs by vertical gap, and records the
// bounding rect of every paragraph.
func (e *TextExtractor) extractPDF(ctx context.Context, content []byte) ([]models.DocumentPage, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	pages := make([]models.DocumentPage, 0, reader.NumPage())
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		paragraphs := paragraphsFromFragments(page.Content().Text, pageNum)
		if len(paragraphs) == 0 {
			logger.Warn("No text extracted from page", "page", pageNum)
			continue
		}

		texts := make([]string, 0, len(paragraphs))
		for _, p := range paragraphs {
			texts = append(texts, p.Text)
		}
		pages = append(pages, models.DocumentPage{
			PageNumber: pageNum,
			Paragraphs: paragraphs,
			FullText:   strings.Join(texts, "\n\n"),
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted from PDF")
	}
	return pages, nil
}

// textLine is one reconstructed line of a page, ordered fragments with a
// shared baseline.
type textLine struct {
	y        float64
	fontSize float64
	minX     float64
	maxX     float64
	text     string
}

func paragraphsFromFragments(fragments []pdf.Text, pageNum int) []models.DocumentParagraph {
	lines := groupIntoLines(fragments)
	if len(lines) == 0 {
		return nil
	}

	var paragraphs []models.DocumentParagraph
	var current []textLine
	flush := func() {
		if len(current) == 0 {
			return
		}
		paragraphs = append(paragraphs, buildParagraph(current, pageNum, len(paragraphs)))
		current = nil
	}

	for i, line := range lines {
		if i > 0 {
			gap := lines[i-1].y - line.y
			if gap > line.fontSize*paragraphGapFactor {
				flush()
			}
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}

// groupIntoLines buckets fragments by baseline, top of page first, reading
// order within each line.
func groupIntoLines(fragments []pdf.Text) []textLine {
	sorted := make([]pdf.Text, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []textLine
	for _, fragment := range sorted {
		if fragment.S == "" {
			continue
		}
		if n := len(lines); n > 0 && sameBaseline(lines[n-1].y, fragment.Y, fragment.FontSize) {
			line := &lines[n-1]
			line.text += fragment.S
			if fragment.X < line.minX {
				line.minX = fragment.X
			}
			if right := fragment.X + fragment.W; right > line.maxX {
				line.maxX = right
			}
			continue
		}
		lines = append(lines, textLine{
			y:        fragment.Y,
			fontSize: fragment.FontSize,
			minX:     fragment.X,
			maxX:     fragment.X + fragment.W,
			text:     fragment.S,
		})
	}

	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line.text) != "" {
			kept = append(kept, line)
		}
	}
	return kept
}

func sameBaseline(lineY, y, fontSize float64) bool {
	tolerance := fontSize * 0.3
	if tolerance < 1 {
		tolerance = 1
	}
	diff := lineY - y
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func buildParagraph(lines []textLine, pageNum, index int) models.DocumentParagraph {
	texts := make([]string, 0, len(lines))
	minX, maxX := lines[0].minX, lines[0].maxX
	topY := lines[0].y + lines[0].fontSize
	bottomY := lines[len(lines)-1].y
	for _, line := range lines {
		texts = append(texts, strings.TrimSpace(line.text))
		if line.minX < minX {
			minX = line.minX
		}
		if line.maxX > maxX {
			maxX = line.maxX
		}
	}

	return models.DocumentParagraph{
		Text: strings.Join(texts, " "),
		Position: models.TextPosition{
			Page:           pageNum,
			ParagraphIndex: index,
			Rect:           []float64{minX, bottomY, maxX, topY},
		},
	}
}
