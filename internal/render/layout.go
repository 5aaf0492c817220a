package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/studentdocs/profile-service/pkg/logger"
)

const (
	fontFamily   = "DejaVu"
	baseFontSize = 11.0
	pageMargin   = 18.0
	listIndent   = 6.0
	// mm per point, times leading
	lineFactor = 0.3528 * 1.45
	pxToMM     = 25.4 / 96
)

//go:embed fonts/*.ttf
var fontFiles embed.FS

// fontStyles maps fpdf style strings to the embedded DejaVu Sans faces. The
// oblique faces have no Arabic glyphs.
var fontStyles = map[string]string{
	"":   "fonts/DejaVuSansCondensed.ttf",
	"B":  "fonts/DejaVuSansCondensed-Bold.ttf",
	"I":  "fonts/DejaVuSansCondensed-Oblique.ttf",
	"BI": "fonts/DejaVuSansCondensed-BoldOblique.ttf",
}

var headingSizes = map[atom.Atom]float64{
	atom.H1: 20, atom.H2: 16, atom.H3: 13.5, atom.H4: 12, atom.H5: 11, atom.H6: 10,
}

// layout walks a parsed HTML tree and flows it onto PDF pages.
type layout struct {
	pdf    *fpdf.Fpdf
	images *imageLoader
	log    *logger.Entry

	size      float64
	bold      int
	italic    int
	underline int
	link      string
	lineStart bool
	lists     []int // item counters; -1 for unordered
}

// compile lays out src as an A4 PDF. created is used for both the creation and
// modification dates so equal input yields equal bytes.
func compile(ctx context.Context, src []byte, images *imageLoader, created time.Time, log *logger.Entry) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("profile-service", false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	if title := documentTitle(doc); title != "" {
		pdf.SetTitle(title, true)
	}
	if err := addFonts(pdf); err != nil {
		return nil, err
	}
	pdf.AddPage()

	l := &layout{
		pdf:       pdf,
		images:    images,
		log:       log,
		size:      baseFontSize,
		lineStart: true,
	}
	l.applyFont()
	l.walk(ctx, doc)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// addFonts registers every style of the UTF-8 body font so text outside
// cp1252 is embedded rather than replaced.
func addFonts(pdf *fpdf.Fpdf) error {
	for _, style := range []string{"", "B", "I", "BI"} {
		data, err := fontFiles.ReadFile(fontStyles[style])
		if err != nil {
			return fmt.Errorf("read font: %w", err)
		}
		pdf.AddUTF8FontFromBytes(fontFamily, style, data)
	}
	if !pdf.Ok() {
		return fmt.Errorf("load font: %w", pdf.Error())
	}
	return nil
}

func (l *layout) lineHeight() float64 { return l.size * lineFactor }

func (l *layout) applyFont() {
	style := ""
	if l.bold > 0 {
		style += "B"
	}
	if l.italic > 0 {
		style += "I"
	}
	if l.underline > 0 || l.link != "" {
		style += "U"
	}
	l.pdf.SetFont(fontFamily, style, l.size)
	if l.link != "" {
		l.pdf.SetTextColor(20, 60, 200)
	} else {
		l.pdf.SetTextColor(0, 0, 0)
	}
}

// block ends the current line, if any, and adds gap millimetres of spacing.
func (l *layout) block(gap float64) {
	if !l.lineStart {
		l.pdf.Ln(l.lineHeight())
		l.lineStart = true
	}
	if gap > 0 {
		l.pdf.Ln(gap)
	}
}

func (l *layout) walkChildren(ctx context.Context, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.walk(ctx, c)
	}
}

func (l *layout) walk(ctx context.Context, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		l.text(n.Data)
		return
	case html.DocumentNode:
		l.walkChildren(ctx, n)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Title, atom.Noscript, atom.Template:
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		l.block(2)
		prev := l.size
		l.size = headingSizes[n.DataAtom]
		l.bold++
		l.applyFont()
		l.walkChildren(ctx, n)
		l.bold--
		l.size = prev
		l.block(0)
		l.applyFont()
		l.pdf.Ln(1.5)
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main, atom.Blockquote, atom.Address:
		l.block(1)
		l.walkChildren(ctx, n)
		l.block(1)
	case atom.Br:
		l.pdf.Ln(l.lineHeight())
		l.lineStart = true
	case atom.B, atom.Strong, atom.Th:
		l.styled(ctx, n, &l.bold)
	case atom.I, atom.Em, atom.Cite:
		l.styled(ctx, n, &l.italic)
	case atom.U, atom.Ins:
		l.styled(ctx, n, &l.underline)
	case atom.A:
		prev := l.link
		if href := attr(n, "href"); isLinkTarget(href) {
			l.link = href
		}
		l.applyFont()
		l.walkChildren(ctx, n)
		l.link = prev
		l.applyFont()
	case atom.Ul, atom.Ol:
		l.list(ctx, n)
	case atom.Li:
		l.item(ctx, n)
	case atom.Table:
		l.table(n)
	case atom.Hr:
		l.block(1.5)
		w, _ := l.pdf.GetPageSize()
		left, _, right, _ := l.pdf.GetMargins()
		y := l.pdf.GetY()
		l.pdf.SetDrawColor(160, 160, 160)
		l.pdf.Line(left, y, w-right, y)
		l.pdf.SetDrawColor(0, 0, 0)
		l.pdf.Ln(2.5)
	case atom.Img:
		l.image(ctx, n)
	default:
		l.walkChildren(ctx, n)
	}
}

func (l *layout) styled(ctx context.Context, n *html.Node, counter *int) {
	*counter++
	l.applyFont()
	l.walkChildren(ctx, n)
	*counter--
	l.applyFont()
}

func (l *layout) text(raw string) {
	s := bmpOnly(collapseSpace(raw))
	if l.lineStart {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return
	}
	if l.link != "" {
		l.pdf.WriteLinkString(l.lineHeight(), s, l.link)
	} else {
		l.pdf.Write(l.lineHeight(), s)
	}
	l.lineStart = false
}

func (l *layout) list(ctx context.Context, n *html.Node) {
	l.block(1)
	left, _, _, _ := l.pdf.GetMargins()
	l.pdf.SetLeftMargin(left + listIndent)
	start := -1
	if n.DataAtom == atom.Ol {
		start = 0
		if v, err := strconv.Atoi(attr(n, "start")); err == nil {
			start = v - 1
		}
	}
	l.lists = append(l.lists, start)
	l.walkChildren(ctx, n)
	l.lists = l.lists[:len(l.lists)-1]
	l.block(0)
	l.pdf.SetLeftMargin(left)
	l.pdf.SetX(left)
	l.pdf.Ln(1)
}

func (l *layout) item(ctx context.Context, n *html.Node) {
	l.block(0)
	marker := "-"
	if depth := len(l.lists); depth > 0 && l.lists[depth-1] >= 0 {
		l.lists[depth-1]++
		marker = strconv.Itoa(l.lists[depth-1]) + "."
	}
	left, _, _, _ := l.pdf.GetMargins()
	l.pdf.SetX(left - listIndent + 1)
	l.pdf.CellFormat(listIndent-1, l.lineHeight(), marker, "", 0, "L", false, 0, "")
	l.lineStart = true
	l.walkChildren(ctx, n)
}

type tableCell struct {
	text   string
	header bool
}

func (l *layout) table(n *html.Node) {
	var rows [][]tableCell
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		if c.DataAtom == atom.Tr {
			var row []tableCell
			for td := c.FirstChild; td != nil; td = td.NextSibling {
				if td.Type == html.ElementNode && (td.DataAtom == atom.Td || td.DataAtom == atom.Th) {
					row = append(row, tableCell{text: bmpOnly(strings.TrimSpace(collapseSpace(textContent(td)))), header: td.DataAtom == atom.Th})
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			collect(gc)
		}
	}
	collect(n)
	if len(rows) == 0 {
		return
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}

	l.block(1.5)
	pageW, pageH := l.pdf.GetPageSize()
	left, top, right, bottom := l.pdf.GetMargins()
	colW := (pageW - left - right) / float64(cols)
	lh := l.lineHeight()
	const pad = 1.2

	for _, row := range rows {
		lines := 1
		for _, c := range row {
			l.setCellFont(c.header)
			if k := len(l.pdf.SplitText(c.text, colW-2*pad)); k > lines {
				lines = k
			}
		}
		rowH := float64(lines)*lh + 2*pad
		y := l.pdf.GetY()
		if y+rowH > pageH-bottom {
			l.pdf.AddPage()
			y = top
		}
		for i := 0; i < cols; i++ {
			x := left + float64(i)*colW
			l.pdf.Rect(x, y, colW, rowH, "D")
			if i >= len(row) {
				continue
			}
			l.setCellFont(row[i].header)
			l.pdf.SetXY(x+pad, y+pad)
			l.pdf.MultiCell(colW-2*pad, lh, row[i].text, "", "L", false)
		}
		l.pdf.SetXY(left, y+rowH)
	}
	l.applyFont()
	l.pdf.Ln(2)
}

func (l *layout) setCellFont(header bool) {
	style := ""
	if header {
		style = "B"
	}
	l.pdf.SetTextColor(0, 0, 0)
	l.pdf.SetFont(fontFamily, style, l.size)
}

func (l *layout) image(ctx context.Context, n *html.Node) {
	src := attr(n, "src")
	if src == "" {
		return
	}
	img, err := l.images.load(ctx, src)
	if err != nil {
		l.log.Warnf("skipping image %s: %v", src, err)
		return
	}
	info := l.pdf.RegisterImageOptionsReader(src, fpdf.ImageOptions{ImageType: img.kind}, bytes.NewReader(img.data))
	if !l.pdf.Ok() {
		l.log.Warnf("skipping image %s: %v", src, l.pdf.Error())
		l.pdf.ClearError()
		return
	}

	pageW, _ := l.pdf.GetPageSize()
	left, _, right, _ := l.pdf.GetMargins()
	maxW := pageW - left - right
	w, h := info.Width(), info.Height()
	if px, err := strconv.ParseFloat(strings.TrimSuffix(attr(n, "width"), "px"), 64); err == nil && px > 0 && w > 0 {
		h = h * (px * pxToMM) / w
		w = px * pxToMM
	}
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if w <= 0 || h <= 0 {
		return
	}

	l.block(1)
	l.pdf.ImageOptions(src, left, -1, w, h, true, fpdf.ImageOptions{ImageType: img.kind}, 0, "")
	l.pdf.Ln(1)
	l.lineStart = true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isLinkTarget(href string) bool {
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") || strings.HasPrefix(href, "mailto:")
}

// collapseSpace folds whitespace runs into single spaces, keeping one
// leading or trailing space if the input had any.
func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	body := strings.Join(strings.Fields(s), " ")
	if body == "" {
		return " "
	}
	if isSpace(s[0]) {
		body = " " + body
	}
	if isSpace(s[len(s)-1]) {
		body += " "
	}
	return body
}

// bmpOnly replaces runes above U+FFFF, which fpdf cannot measure or encode,
// with U+FFFD.
func bmpOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return unicode.ReplacementChar
		}
		return r
	}, s)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			return
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			b.WriteByte(' ')
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			rec(gc)
		}
	}
	rec(n)
	return b.String()
}

func documentTitle(doc *html.Node) string {
	var title string
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			title = strings.TrimSpace(collapseSpace(textContent(n)))
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	find(doc)
	return title
}
