package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/studentdocs/profile-service/internal/records"
	"github.com/studentdocs/profile-service/pkg/logger"
)

var (
	ErrTemplateRead    = errors.New("template read failed")
	ErrTemplateExecute = errors.New("template execution failed")
	ErrCompilation     = errors.New("document compilation failed")
)

const defaultFilenameBase = "Student"

// documentDate is stamped into every PDF as creation and modification date.
var documentDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var configDirOnce sync.Once

// Document is a rendered profile. It is never cached or persisted.
type Document struct {
	Filename string
	Content  []byte
}

type Options struct {
	TemplateFile string
	// DisplayField names the record field used in the filename.
	DisplayField string
	// HTTPClient fetches images referenced by the template. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Renderer turns records into PDF profiles. It holds no mutable state and is
// safe for concurrent use.
type Renderer struct {
	templateFile string
	displayField string
	client       *http.Client
}

func New(opts Options) *Renderer {
	field := opts.DisplayField
	if field == "" {
		field = "Full Name"
	}
	return &Renderer{templateFile: opts.TemplateFile, displayField: field, client: opts.HTTPClient}
}

// Render binds rec into the template, read from disk on every call, and
// compiles the result to PDF. The filename carries recordID, the id the row
// was fetched by, not the row's own id field.
func (r *Renderer) Render(ctx context.Context, recordID int64, rec records.Record) (*Document, error) {
	log := logger.With("record_id", recordID)

	page, err := r.HTML(rec)
	if err != nil {
		return nil, err
	}

	content, err := compile(ctx, page, newImageLoader(r.client), documentDate, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompilation, err)
	}
	if err := validate(content); err != nil {
		return nil, fmt.Errorf("%w: invalid pdf: %w", ErrCompilation, err)
	}
	log.Debugf("rendered profile: %d bytes", len(content))

	return &Document{
		Filename: Filename(rec.Text(r.displayField, defaultFilenameBase), recordID),
		Content:  content,
	}, nil
}

// HTML executes the template against rec, exposed to the template as "student".
func (r *Renderer) HTML(rec records.Record) ([]byte, error) {
	src, err := os.ReadFile(r.templateFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateRead, err)
	}
	tmpl, err := template.New(filepath.Base(r.templateFile)).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateExecute, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{"student": map[string]any(rec)}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateExecute, err)
	}
	return buf.Bytes(), nil
}

func pdfConfig() *model.Configuration {
	configDirOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func validate(pdf []byte) error {
	n, err := api.PageCount(bytes.NewReader(pdf), pdfConfig())
	if err != nil {
		return err
	}
	if n < 1 {
		return errors.New("no pages")
	}
	return nil
}

// Filename returns "{name}_{id}.pdf" with name reduced to letters, digits,
// space, dot, underscore and dash.
func Filename(name string, id int64) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == ' ', c == '.', c == '_', c == '-':
			b.WriteRune(c)
		}
	}
	base := strings.Trim(strings.TrimSpace(b.String()), ".")
	if base == "" {
		base = defaultFilenameBase
	}
	return base + "_" + strconv.FormatInt(id, 10) + ".pdf"
}
