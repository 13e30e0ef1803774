// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/kraklabs/rie/pkg/records"
)

// DefaultPageWorkers returns the default size of the per-PDF page
// worker pool: roughly 85% of the logical cores, at least 1.
func DefaultPageWorkers() int {
	workers := runtime.NumCPU() * 85 / 100
	if workers < 1 {
		workers = 1
	}
	return workers
}

// The reader reports font and encoding noise straight through the
// stdlib log package. extractMu serializes extraction so that chatter
// can be discarded for the duration of a call without losing anyone
// else's log output.
var extractMu sync.Mutex

func silenceReaderLogs() func() {
	extractMu.Lock()
	prev := log.Writer()
	log.SetOutput(io.Discard)
	return func() {
		log.SetOutput(prev)
		extractMu.Unlock()
	}
}

// PageExtractor extracts per-page text from PDF documents.
type PageExtractor struct {
	logger *slog.Logger
}

// NewPageExtractor creates an extractor. A nil logger falls back to
// slog.Default().
func NewPageExtractor(logger *slog.Logger) *PageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageExtractor{logger: logger}
}

// ExtractPages returns one PDFPage per page of the document, ordered
// by page number starting at 1. A page whose text cannot be decoded is
// kept with empty text so that a document with N pages always yields N
// records; a document that cannot be opened at all returns an error
// and an empty list.
//
// The underlying reader panics on some malformed files; that panic is
// converted into the document-level error.
func (x *PageExtractor) ExtractPages(path string) (pages []records.PDFPage, err error) {
	defer silenceReaderLogs()()
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("extract %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	total := reader.NumPage()
	pages = make([]records.PDFPage, 0, total)
	for num := 1; num <= total; num++ {
		text := x.pageText(reader, num, path)
		pages = append(pages, records.PDFPage{
			PageNumber: num,
			Text:       text,
			CharCount:  len(text),
			WordCount:  len(strings.Fields(text)),
		})
	}

	x.logger.Debug("ingest.pdf.extract.complete", "path", path, "pages", total)
	return pages, nil
}

// pageText decodes one page, swallowing per-page panics. Font and
// encoding noise from the reader is not fatal: the page stays in the
// list with empty text.
func (x *PageExtractor) pageText(reader *pdf.Reader, num int, path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Warn("ingest.pdf.page.error", "path", path, "page", num, "error", fmt.Sprint(r))
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		x.logger.Warn("ingest.pdf.page.error", "path", path, "page", num, "error", err)
		return ""
	}
	return content
}
