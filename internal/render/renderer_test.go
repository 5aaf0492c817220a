package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentdocs/profile-service/internal/records"
)

const testTemplate = `<html><head><title>{{index .student "Full Name"}}</title><style>p{}</style></head>
<body>
<h1>{{index .student "Full Name"}}</h1>
<p>Bio: {{index .student "Bio"}} <b>bold</b> <i>italic</i> <u>under</u></p>
<ul><li>one</li><li>two <a href="https://example.org">link</a></li></ul>
<ol start="3"><li>three</li></ol>
<table><tr><th>School</th><td>{{index .student "School"}}</td></tr></table>
<hr>
</body></html>`

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.html")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testRecord() records.Record {
	r, _ := records.Decode([]byte(`{"id": 42, "Full Name": "Ada Lovelace", "Bio": "Mathematician", "School": "Analytical"}`))
	return r
}

func TestRender_ProducesPDF(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, testTemplate)})

	doc, err := r.Render(context.Background(), 42, testRecord())
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace_42.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF-")))

	n, err := api.PageCount(bytes.NewReader(doc.Content), pdfConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRender_Deterministic(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, testTemplate)})

	first, err := r.Render(context.Background(), 42, testRecord())
	require.NoError(t, err)
	second, err := r.Render(context.Background(), 42, testRecord())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first.Content, second.Content), "identical records must render identical bytes")
}

func TestRender_ConcurrentCallsAgree(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, testTemplate)})
	want, err := r.Render(context.Background(), 42, testRecord())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := r.Render(context.Background(), 42, testRecord())
			if assert.NoError(t, err) {
				results[i] = doc.Content
			}
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.True(t, bytes.Equal(want.Content, got))
	}
}

func TestHTML_MissingFieldsRenderEmpty(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, `<p>[{{index .student "Full Name"}}][{{index .student "Nope"}}][{{.student.id}}]</p>`)})
	rec, err := records.Decode([]byte(`{"id": 7}`))
	require.NoError(t, err)

	out, err := r.HTML(rec)
	require.NoError(t, err)
	assert.Equal(t, "<p>[][][7]</p>", string(out))

	doc, err := r.Render(context.Background(), 7, rec)
	require.NoError(t, err)
	assert.Equal(t, "Student_7.pdf", doc.Filename)
}

func TestHTML_EscapesValues(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, `<p>{{index .student "Full Name"}}</p>`)})
	out, err := r.HTML(records.Record{"Full Name": "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
}

func TestRender_TemplateReloadedOnEachCall(t *testing.T) {
	path := writeTemplate(t, `<p>first {{index .student "Full Name"}}</p>`)
	r := New(Options{TemplateFile: path})

	out, err := r.HTML(testRecord())
	require.NoError(t, err)
	assert.Contains(t, string(out), "first")

	require.NoError(t, os.WriteFile(path, []byte(`<p>second {{index .student "Full Name"}}</p>`), 0o644))
	out, err = r.HTML(testRecord())
	require.NoError(t, err)
	assert.Contains(t, string(out), "second")
}

func TestRender_TemplateMissing(t *testing.T) {
	r := New(Options{TemplateFile: filepath.Join(t.TempDir(), "absent.html")})
	_, err := r.Render(context.Background(), 42, testRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateRead))
}

func TestRender_TemplateSyntaxError(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, `<p>{{index .student "Full Name"</p>`)})
	_, err := r.Render(context.Background(), 42, testRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateExecute))
	assert.False(t, errors.Is(err, ErrCompilation))
}

func TestRender_LongDocumentBreaksPages(t *testing.T) {
	var b strings.Builder
	b.WriteString("<table>")
	for i := 0; i < 120; i++ {
		b.WriteString(`<tr><td>{{index .student "Full Name"}}</td><td>row</td></tr>`)
	}
	b.WriteString("</table>")
	r := New(Options{TemplateFile: writeTemplate(t, b.String())})

	doc, err := r.Render(context.Background(), 42, testRecord())
	require.NoError(t, err)
	n, err := api.PageCount(bytes.NewReader(doc.Content), pdfConfig())
	require.NoError(t, err)
	assert.Greater(t, n, 1)
}

// pageContent returns the decoded content stream of page 1.
func pageContent(t *testing.T, pdf []byte) []byte {
	t.Helper()
	conf := pdfConfig()
	conf.Cmd = model.EXTRACTCONTENT
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	require.NoError(t, err)
	r, err := pdfcpu.ExtractPageContent(ctx, 1)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.Bytes()
}

// utf16be encodes s the way text shown with an Identity-H font is written.
func utf16be(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

func TestRender_KeepsTextOutsideLatin1(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t,
		`<h1>{{index .student "Full Name"}}</h1><p>{{index .student "Arabic Name"}}</p><table><tr><td>{{index .student "Full Name"}}</td></tr></table>`)})
	rec, err := records.Decode([]byte(`{"id": 11, "Full Name": "Ɗanjuma Ƙasim", "Arabic Name": "أحمد"}`))
	require.NoError(t, err)

	doc, err := r.Render(context.Background(), 11, rec)
	require.NoError(t, err)

	content := pageContent(t, doc.Content)
	for _, word := range []string{"Ɗanjuma", "Ƙasim", "أحمد"} {
		assert.True(t, bytes.Contains(content, utf16be(word)), "page text keeps %q", word)
	}
	assert.False(t, bytes.Contains(content, []byte(".anjuma")), "no substitution characters")
}

func TestRender_SupplementaryRunesInTable(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, `<p>{{index .student "Bio"}}</p><table><tr><td>{{index .student "Bio"}}</td></tr></table>`)})
	rec, err := records.Decode([]byte(`{"id": 3, "Bio": "likes \ud83d\ude00 and maths"}`))
	require.NoError(t, err)

	_, err = r.Render(context.Background(), 3, rec)
	require.NoError(t, err)
}

func TestRender_FilenameUsesRequestedID(t *testing.T) {
	r := New(Options{TemplateFile: writeTemplate(t, `<p>{{index .student "Full Name"}}</p>`)})
	rec, err := records.Decode([]byte(`{"Full Name": "Ada Lovelace"}`))
	require.NoError(t, err)

	doc, err := r.Render(context.Background(), 42, rec)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace_42.pdf", doc.Filename)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: uint8(x * 20), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRender_Images(t *testing.T) {
	logo := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/logo.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(logo)
	}))
	defer srv.Close()

	withImage := writeTemplate(t, `<h1>Profile</h1><img src="`+srv.URL+`/logo.png" width="120"><img src="`+srv.URL+`/logo.png">`)
	r := New(Options{TemplateFile: withImage, HTTPClient: srv.Client()})
	doc, err := r.Render(context.Background(), 42, testRecord())
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "an image referenced twice is fetched once per render")

	broken := writeTemplate(t, `<h1>Profile</h1><img src="`+srv.URL+`/missing.png"><img src="data:image/png;base64,AAAA">`)
	r = New(Options{TemplateFile: broken, HTTPClient: srv.Client()})
	skipped, err := r.Render(context.Background(), 42, testRecord())
	require.NoError(t, err, "unreachable images are skipped")
	assert.Less(t, len(skipped.Content), len(doc.Content))
}

func TestFilename(t *testing.T) {
	cases := []struct {
		name string
		id   int64
		want string
	}{
		{"Ada Lovelace", 42, "Ada Lovelace_42.pdf"},
		{"", 3, "Student_3.pdf"},
		{`Evil"; name/..\`, 5, "Evil name_5.pdf"},
		{"José Núñez", 9, "Jos Nez_9.pdf"},
		{"../..", 1, "Student_1.pdf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Filename(tc.name, tc.id), tc.name)
	}
}

func TestBMPOnly(t *testing.T) {
	assert.Equal(t, "Ɗan \uFFFD", bmpOnly("Ɗan \U0001F600"))
	assert.Equal(t, "أحمد", bmpOnly("أحمد"))
}

func TestImageKind(t *testing.T) {
	assert.Equal(t, "png", imageKind("image/png", "/x"))
	assert.Equal(t, "jpg", imageKind("image/jpeg; charset=binary", "/x"))
	assert.Equal(t, "gif", imageKind("application/octet-stream", "/a/b.GIF"))
	assert.Equal(t, "", imageKind("image/webp", "/a.webp"))
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "", collapseSpace(""))
	assert.Equal(t, " ", collapseSpace("\n\t "))
	assert.Equal(t, " a b ", collapseSpace("  a \n b\t"))
	assert.Equal(t, "a b", collapseSpace("a   b"))
}
