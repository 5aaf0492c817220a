package render

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const maxImageBytes = 8 << 20

type loadedImage struct {
	data []byte
	kind string // fpdf image type: png, jpg or gif
}

// imageLoader fetches remote images referenced by the template, once per
// compilation and synchronously.
type imageLoader struct {
	client *http.Client
	cache  map[string]*loadedImage
}

func newImageLoader(client *http.Client) *imageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &imageLoader{client: client, cache: map[string]*loadedImage{}}
}

func (il *imageLoader) load(ctx context.Context, src string) (*loadedImage, error) {
	if img, ok := il.cache[src]; ok {
		return img, nil
	}
	u, err := url.Parse(src)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported image source scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := il.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	kind := imageKind(resp.Header.Get("Content-Type"), u.Path)
	if kind == "" {
		return nil, fmt.Errorf("unsupported image type %q", resp.Header.Get("Content-Type"))
	}
	img := &loadedImage{data: data, kind: kind}
	il.cache[src] = img
	return img, nil
}

// imageKind maps a content type, or failing that the file extension, to an
// fpdf image type.
func imageKind(contentType, urlPath string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/png":
			return "png"
		case "image/jpeg", "image/jpg":
			return "jpg"
		case "image/gif":
			return "gif"
		}
	}
	switch strings.ToLower(path.Ext(urlPath)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpg"
	case ".gif":
		return "gif"
	}
	return ""
}
