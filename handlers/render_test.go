package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentdocs/profile-service/internal/records"
	"github.com/studentdocs/profile-service/internal/render"
	"github.com/studentdocs/profile-service/pkg/metrics"
)

// fakeBaserow serves rows of table 7 keyed by id.
func fakeBaserow(t *testing.T, rows map[int64]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for id, body := range rows {
			if r.URL.Path == fmt.Sprintf("/7/%d/", id) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"ERROR_ROW_DOES_NOT_EXIST"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProfileRouter(t *testing.T, rows map[int64]string, tmpl string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := fakeBaserow(t, rows)
	path := filepath.Join(t.TempDir(), "profile.html")
	require.NoError(t, os.WriteFile(path, []byte(tmpl), 0o644))

	h := NewProfileHandler(
		records.NewClient(srv.URL, "tok", srv.Client()),
		render.New(render.Options{TemplateFile: path}),
		"7",
	)
	g := gin.New()
	h.Register(g)
	return g
}

func get(g *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRender_ExistingRecord(t *testing.T) {
	g := newProfileRouter(t, map[int64]string{42: `{"id":42,"Full Name":"Ada Lovelace"}`},
		`<h1>{{index .student "Full Name"}}</h1>`)
	before := testutil.ToFloat64(metrics.RenderRequests.WithLabelValues("ok"))

	w := get(g, "/student-details/42")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="Ada Lovelace_42.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RenderRequests.WithLabelValues("ok")))
}

func TestRender_SameRecordSameBytes(t *testing.T) {
	g := newProfileRouter(t, map[int64]string{42: `{"id":42,"Full Name":"Ada Lovelace"}`},
		`<h1>{{index .student "Full Name"}}</h1>`)

	first := get(g, "/student-details/42")
	second := get(g, "/student-details/42")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestRender_FilenameUsesRequestedID(t *testing.T) {
	g := newProfileRouter(t, map[int64]string{42: `{"Full Name":"Ada Lovelace"}`},
		`<h1>{{index .student "Full Name"}}</h1>`)

	w := get(g, "/student-details/42")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `inline; filename="Ada Lovelace_42.pdf"`, w.Header().Get("Content-Disposition"))
}

func TestRender_MissingRecordIs404(t *testing.T) {
	g := newProfileRouter(t, map[int64]string{42: `{"id":42}`}, `<p>x</p>`)

	w := get(g, "/student-details/999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestRender_InvalidIDIs404(t *testing.T) {
	g := newProfileRouter(t, nil, `<p>x</p>`)
	for _, p := range []string{"/student-details/abc", "/student-details/0", "/student-details/-3", "/student-details/1.5"} {
		assert.Equal(t, http.StatusNotFound, get(g, p).Code, p)
	}
}

func TestRender_TemplateMissingIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := fakeBaserow(t, map[int64]string{42: `{"id":42}`})
	h := NewProfileHandler(
		records.NewClient(srv.URL, "tok", srv.Client()),
		render.New(render.Options{TemplateFile: filepath.Join(t.TempDir(), "gone.html")}),
		"7",
	)
	g := gin.New()
	h.Register(g)

	w := get(g, "/student-details/42")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type stubFetcher struct {
	rec records.Record
	err error
}

func (s stubFetcher) Fetch(ctx context.Context, tableID string, recordID int64) (records.Record, error) {
	return s.rec, s.err
}

type stubRenderer struct {
	doc *render.Document
	err error
}

func (s stubRenderer) Render(ctx context.Context, recordID int64, rec records.Record) (*render.Document, error) {
	return s.doc, s.err
}

func TestRender_CompilationErrorIs500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewProfileHandler(
		stubFetcher{rec: records.Record{"id": 1}},
		stubRenderer{err: fmt.Errorf("%w: boom", render.ErrCompilation)},
		"7",
	)
	g := gin.New()
	h.Register(g)

	w := get(g, "/student-details/1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "boom"), "internal errors are not echoed")
}

func TestRender_FetchErrorIs404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewProfileHandler(stubFetcher{err: errors.New("dial tcp: refused")}, stubRenderer{}, "7")
	g := gin.New()
	h.Register(g)

	assert.Equal(t, http.StatusNotFound, get(g, "/student-details/5").Code)
}
