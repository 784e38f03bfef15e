package server

import (
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/docent-ai/docent/internal/generation"
)

// StatusResponse is the body for GET /.
type StatusResponse struct {
	Status    string `json:"status"`
	DocsCount int    `json:"docs_count"`
}

// CrawlRequest is the body for POST /crawl. MaxDepth is a pointer so an
// explicit 0 (seed-only crawl) is distinguishable from an omitted field,
// which selects the configured default.
type CrawlRequest struct {
	URL      string `json:"url"`
	MaxDepth *int   `json:"max_depth"`
}

// CrawlResponse is the body for POST /crawl.
type CrawlResponse struct {
	Message       string `json:"message"`
	DatabaseCount int    `json:"database_count"`
}

// ChatRequest is the body for POST /chat. FileContext carries the text of a
// just-uploaded file so it can be prioritized over the stored corpus.
type ChatRequest struct {
	Query       string            `json:"query"`
	History     []generation.Turn `json:"history"`
	FileContext string            `json:"file_context,omitempty"`
}

// ChatResponse is the body for POST /chat.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// UploadResponse is the body for POST /upload.
type UploadResponse struct {
	Message       string `json:"message"`
	Filename      string `json:"filename"`
	ExtractedText string `json:"extracted_text"`
}

// handleStatus reports service liveness and the corpus size.
func (s *Server) handleStatus(c echo.Context) error {
	count, err := s.pipeline.Count(c.Request().Context())
	if err != nil {
		s.logger.Error("corpus count failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "corpus unavailable")
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Status:    "RAG System Online",
		DocsCount: count,
	})
}

// handleCrawl runs a bounded-depth crawl from the requested seed URL.
func (s *Server) handleCrawl(c echo.Context) error {
	var req CrawlRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url field is required")
	}
	depth := s.config.MaxCrawlDepth
	if req.MaxDepth != nil {
		if *req.MaxDepth < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "max_depth cannot be negative")
		}
		depth = *req.MaxDepth
	}

	ctx := c.Request().Context()
	count, err := s.pipeline.Crawl(ctx, req.URL, depth)
	if err != nil {
		s.logger.Error("crawl failed", "url", req.URL, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "crawl failed")
	}

	total, err := s.pipeline.Count(ctx)
	if err != nil {
		s.logger.Error("corpus count failed", "error", err)
		total = count
	}

	return c.JSON(http.StatusOK, CrawlResponse{
		Message:       fmt.Sprintf("Crawled %d pages.", count),
		DatabaseCount: total,
	})
}

// handleChat answers a query against the corpus. Pipeline-internal failures
// degrade the answer rather than the response: this endpoint stays 200 for
// every well-formed request.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	answer := s.pipeline.Answer(c.Request().Context(), req.Query, req.History, req.FileContext)

	return c.JSON(http.StatusOK, ChatResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
	})
}

// handleUpload ingests an uploaded text file into the corpus. Binary formats
// are rejected; extraction quality for rich formats is out of scope.
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file")
	}

	text := string(data)
	if !utf8.ValidString(text) {
		return echo.NewHTTPError(http.StatusBadRequest, "only UTF-8 text files are supported")
	}

	if _, err := s.pipeline.IngestFile(c.Request().Context(), fileHeader.Filename, text); err != nil {
		s.logger.Error("upload ingestion failed", "filename", fileHeader.Filename, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "no text could be extracted")
	}

	return c.JSON(http.StatusOK, UploadResponse{
		Message:       "File indexed successfully",
		Filename:      fileHeader.Filename,
		ExtractedText: text,
	})
}
