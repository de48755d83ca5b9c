package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"document-query-platform/internal/config"
	"document-query-platform/internal/logger"
	"document-query-platform/models"
)

// OCRClient talks to the external OCR service used for image uploads.
type OCRClient struct {
	httpClient *http.Client
	baseURL    string
}

type ocrRegion struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Page       int       `json:"page"`
	Bbox       []float64 `json:"bbox"`
}

type ocrResponse struct {
	Success bool        `json:"success"`
	Pages   int         `json:"pages"`
	Regions []ocrRegion `json:"regions"`
	Error   string      `json:"error,omitempty"`
}

type ocrHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func NewOCRClient(cfg *config.Config) *OCRClient {
	baseURL := cfg.OCRServiceURL
	if baseURL == "" {
		baseURL = "http://localhost:8001"
	}

	timeout := time.Duration(cfg.OCRTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &OCRClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// IsHealthy probes the OCR service.
func (c *OCRClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("OCR service unhealthy: status %d", resp.StatusCode)
	}

	var health ocrHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}

	return health.Status == "healthy" && health.ModelLoaded, nil
}

// ExtractPages sends image bytes to the OCR service and converts the
// recognized regions into positioned pages. Regions arriving out of page
// order are grouped back under their page number.
func (c *OCRClient) ExtractPages(ctx context.Context, content []byte, contentType string) ([]models.DocumentPage, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "upload")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}
	writer.WriteField("content_type", contentType)
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/ocr/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if !ocrResp.Success {
		return nil, fmt.Errorf("OCR processing failed: %s", ocrResp.Error)
	}

	pages := regionsToPages(ocrResp.Regions)
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text recognized by OCR service")
	}
	logger.Info("OCR extraction completed", "pages", len(pages), "regions", len(ocrResp.Regions))
	return pages, nil
}

func regionsToPages(regions []ocrRegion) []models.DocumentPage {
	byPage := make(map[int][]ocrRegion)
	var pageNums []int
	for _, region := range regions {
		if strings.TrimSpace(region.Text) == "" {
			continue
		}
		page := region.Page
		if page < 1 {
			page = 1
		}
		if _, seen := byPage[page]; !seen {
			pageNums = append(pageNums, page)
		}
		byPage[page] = append(byPage[page], region)
	}

	var pages []models.DocumentPage
	for _, pageNum := range pageNums {
		pageRegions := byPage[pageNum]
		paragraphs := make([]models.DocumentParagraph, 0, len(pageRegions))
		texts := make([]string, 0, len(pageRegions))
		for i, region := range pageRegions {
			paragraphs = append(paragraphs, models.DocumentParagraph{
				Text: region.Text,
				Position: models.TextPosition{
					Page:           pageNum,
					ParagraphIndex: i,
					Rect:           region.Bbox,
					IsOCR:          true,
				},
			})
			texts = append(texts, region.Text)
		}
		pages = append(pages, models.DocumentPage{
			PageNumber: pageNum,
			Paragraphs: paragraphs,
			FullText:   strings.Join(texts, "\n\n"),
		})
	}
	return pages
}
