package rag_service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"

	"github.com/serisow/policybot/pipeline_type"
)

// DocumentLoader turns a folder of PDFs into page-level document units.
type DocumentLoader struct {
	logger *slog.Logger

	extractPages func(path string) ([]string, error)
	fallback     func(path string) (string, error)
}

func NewDocumentLoader(logger *slog.Logger) *DocumentLoader {
	l := &DocumentLoader{logger: logger}
	l.extractPages = l.ExtractPagesFromPDF
	l.fallback = l.ConvertPDF
	return l
}

// LoadFolder reads every PDF in dir. A missing folder yields no files, and a
// file that cannot be parsed is logged and skipped.
func (l *DocumentLoader) LoadFolder(ctx context.Context, dir string) ([]pipeline_type.LoadedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Documents folder not found, skipping document loading",
				slog.String("folder", dir))
			return nil, nil
		}
		return nil, pipeline_type.NewRAGError(pipeline_type.IngestionError, "read documents folder", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		names = append(names, entry.Name())
	}

	l.logger.Info("Found PDF files to process",
		slog.String("folder", dir),
		slog.Int("total_files", len(names)))

	var files []pipeline_type.LoadedFile
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		path := filepath.Join(dir, name)
		file, err := l.LoadFile(path)
		if err != nil {
			l.logger.Error("Error loading document",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}

		l.logger.Info("Processed document",
			slog.String("file", name),
			slog.Int("file_index", i+1),
			slog.Int("total_files", len(names)),
			slog.Int("pages", len(file.Units)),
			slog.Float64("elapsed_seconds", time.Since(start).Seconds()))
		files = append(files, file)
	}

	return files, nil
}

// LoadFile parses one PDF into one unit per non-empty page. Pages are numbered
// sequentially from 1 in reading order.
func (l *DocumentLoader) LoadFile(path string) (pipeline_type.LoadedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return pipeline_type.LoadedFile{}, pipeline_type.NewRAGError(pipeline_type.IngestionError, "stat document", err)
	}

	name := filepath.Base(path)
	pages, err := l.extractPages(path)
	if err != nil {
		l.logger.Warn("Primary PDF extraction failed, trying converter",
			slog.String("file", name),
			slog.String("error", err.Error()))

		text, convErr := l.fallback(path)
		if convErr != nil {
			return pipeline_type.LoadedFile{}, pipeline_type.NewRAGError(pipeline_type.IngestionError,
				"parse "+name, fmt.Errorf("%w (converter: %v)", err, convErr))
		}
		pages = []string{text}
	}

	file := pipeline_type.LoadedFile{
		Name: name,
		Path: path,
		Size: info.Size(),
	}
	for _, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		file.Units = append(file.Units, pipeline_type.DocumentUnit{
			Text:   text,
			Source: name,
			Page:   len(file.Units) + 1,
		})
	}

	if len(file.Units) == 0 {
		return pipeline_type.LoadedFile{}, pipeline_type.NewRAGError(pipeline_type.IngestionError,
			"parse "+name, fmt.Errorf("no text content extracted from PDF"))
	}

	return file, nil
}

// ExtractPagesFromPDF returns the plain text of every page, in page order.
func (l *DocumentLoader) ExtractPagesFromPDF(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	defer f.Close()

	totalPage := reader.NumPage()
	l.logger.Debug("Starting PDF text extraction",
		slog.String("file", filepath.Base(path)),
		slog.Int("total_pages", totalPage))

	pages := make([]string, 0, totalPage)
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			l.logger.Warn("Null page encountered",
				slog.Int("page_number", pageIndex))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", pageIndex, err)
		}
		pages = append(pages, text)
	}

	return pages, nil
}

// ConvertPDF extracts the whole document as a single text body. It is used
// when the page-level parser rejects a file.
func (l *DocumentLoader) ConvertPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	result, err := docconv.Convert(f, "application/pdf", false)
	if err != nil {
		return "", fmt.Errorf("failed to convert PDF document: %w", err)
	}
	if strings.TrimSpace(result.Body) == "" {
		return "", fmt.Errorf("no text content extracted from PDF")
	}
	return result.Body, nil
}
