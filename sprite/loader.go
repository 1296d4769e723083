package sprite

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// maxFetchBytes bounds a single remote image download.
const maxFetchBytes = 8 << 20

var errBadDataURL = errors.New("malformed data url")

// Loader fetches and decodes the image behind a URL.
type Loader interface {
	Load(ctx context.Context, u string) (image.Image, error)
}

// URLLoader understands data URLs, http(s) URLs and paths relative to an
// asset directory.
type URLLoader struct {
	AssetDir string
	Client   *http.Client
}

// NewURLLoader returns a loader reading relative paths from assetDir.
func NewURLLoader(assetDir string) *URLLoader {
	return &URLLoader{
		AssetDir: assetDir,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (l *URLLoader) Load(ctx context.Context, u string) (image.Image, error) {
	data, err := l.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func (l *URLLoader) fetch(ctx context.Context, u string) ([]byte, error) {
	switch {
	case strings.HasPrefix(u, "data:"):
		return DecodeDataURL(u)
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.Client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: %s", u, resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	default:
		p := filepath.FromSlash(strings.TrimPrefix(u, "/"))
		return os.ReadFile(filepath.Join(l.AssetDir, p))
	}
}

// DecodeDataURL returns the payload of an RFC 2397 data URL.
func DecodeDataURL(u string) ([]byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, errBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errBadDataURL
	}
	if strings.HasSuffix(meta, ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
			return b, nil
		}
		b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadDataURL, err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadDataURL, err)
	}
	return []byte(s), nil
}
