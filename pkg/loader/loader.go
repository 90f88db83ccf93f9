package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/time/rate"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
)

type LoaderConfig struct {
	RateLimit float64 // remote requests per second
	Timeout   time.Duration
	MaxBytes  int64
}

// Loader turns a local file or an http(s) URL into ordered page text.
type Loader struct {
	config  LoaderConfig
	client  *http.Client
	limiter *rate.Limiter
}

var _ types.Loader = (*Loader)(nil)

func NewWithConfig(config LoaderConfig) *Loader {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 50 << 20
	}

	return &Loader{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

// Load reads the document at path. A document without pages yields an empty
// slice and no error.
func (l *Loader) Load(ctx context.Context, path string) ([]models.Page, error) {
	var (
		pages []models.Page
		err   error
	)
	if isRemote(path) {
		pages, err = l.loadRemote(ctx, path)
	} else {
		pages, err = l.loadFile(path)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrDocumentLoad, "load "+path, err)
	}
	return pages, nil
}

func isRemote(path string) bool {
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (l *Loader) loadFile(path string) ([]models.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := l.readLimited(f)
	if err != nil {
		return nil, err
	}
	return parse(data, strings.ToLower(filepath.Ext(path)))
}

// readLimited reads r fully, failing instead of truncating when r holds more
// than MaxBytes.
func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.config.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.config.MaxBytes {
		return nil, fmt.Errorf("document larger than %d bytes", l.config.MaxBytes)
	}
	return data, nil
}

func (l *Loader) loadRemote(ctx context.Context, urlStr string) ([]models.Page, error) {
	// Apply rate limiting
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	data, err := l.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	return parse(data, extForResponse(resp, urlStr))
}

func extForResponse(resp *http.Response, urlStr string) string {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "application/pdf"):
		return ".pdf"
	case strings.Contains(contentType, "text/html"):
		return ".html"
	case strings.HasPrefix(contentType, "text/"):
		return ".txt"
	}
	if u, err := url.Parse(urlStr); err == nil {
		if ext := strings.ToLower(filepath.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	return ".html"
}

func parse(data []byte, ext string) ([]models.Page, error) {
	switch ext {
	case ".pdf":
		return parsePDF(data)
	case ".html", ".htm":
		return parseHTML(data)
	case ".txt", ".md", ".text", "":
		return parseText(string(data)), nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

func parsePDF(data []byte) (pages []models.Page, err error) {
	// The pdf package panics on some malformed object tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if reader.Trailer().Key("Root").Key("Pages").IsNull() {
		return nil, errors.New("malformed pdf: missing page tree")
	}

	numPages := reader.NumPage()
	pages = make([]models.Page, 0, numPages)
	found := 0
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		var text string
		if !page.V.IsNull() {
			found++
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("extract page %d: %w", i, err)
			}
		}
		pages = append(pages, models.Page{Number: i, Text: sanitizeUTF8(text)})
	}
	if numPages > 0 && found == 0 {
		return nil, fmt.Errorf("malformed pdf: none of %d pages could be resolved", numPages)
	}
	return pages, nil
}

func parseHTML(data []byte) ([]models.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	content := extractMainContent(doc)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []models.Page{{Number: 1, Text: content}}, nil
}

// parseText treats form feeds as page breaks.
func parseText(text string) []models.Page {
	text = sanitizeUTF8(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, "\f")
	pages := make([]models.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, models.Page{Number: i + 1, Text: part})
	}
	return pages
}

func extractMainContent(doc *goquery.Document) string {
	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	doc.Find("script, style, nav, header, footer").Remove()

	var selection *goquery.Selection
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			selection = selected.First()
			break
		}
	}

	// Fallback to body if no main content found
	if selection == nil {
		selection = doc.Find("body")
	}

	return sanitizeUTF8(cleanContent(blockText(selection)))
}

// blockText keeps one line per block element so headings stay on their own line.
func blockText(sel *goquery.Selection) string {
	var lines []string
	blocks := sel.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td")
	if blocks.Length() == 0 {
		return sel.Text()
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return
		}
		lines = append(lines, strings.Join(strings.Fields(s.Text()), " "))
	})
	return strings.Join(lines, "\n")
}

func cleanContent(content string) string {
	lines := strings.Split(content, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
