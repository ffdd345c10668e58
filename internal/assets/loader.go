package assets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrAssetNotFound = errors.New("asset not found")

type Fetcher interface {
	Fetch(ctx context.Context, key string) (string, error)
}

//go:embed sprites/*.txt
var embeddedSprites embed.FS

// Embedded returns a fetcher over the sprite set compiled into the binary.
func Embedded() *FSFetcher {
	sub, _ := fs.Sub(embeddedSprites, "sprites")
	return &FSFetcher{FS: sub}
}

// FSFetcher reads <key>.txt files from a filesystem.
type FSFetcher struct {
	FS fs.FS
}

func (f *FSFetcher) Fetch(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := key + ".txt"
	if !fs.ValidPath(name) || strings.Contains(key, "/") {
		return "", fmt.Errorf("sprite key %q: %w", key, ErrAssetNotFound)
	}
	raw, err := fs.ReadFile(f.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read sprite %s: %w", key, ErrAssetNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read sprite %s: %w", key, err)
	}
	return string(raw), nil
}

// HTTPFetcher pulls sprites from the office backend's /assets/{key} route.
type HTTPFetcher struct {
	BaseURL string
	HTTP    *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, key string) (string, error) {
	client := f.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	endpoint := strings.TrimRight(f.BaseURL, "/") + "/assets/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("fetch sprite %s: %w", key, ErrAssetNotFound)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch sprite %s: http %s", key, resp.Status)
	}
	return string(body), nil
}

// Keys lists every key the office needs: each sprite × direction × frame,
// plus the CEO avatar.
func Keys(spriteCount int) []string {
	keys := make([]string, 0, spriteCount*len(Directions)*FramesPerDirection+1)
	for sprite := 1; sprite <= spriteCount; sprite++ {
		for _, dir := range Directions {
			for frame := 1; frame <= FramesPerDirection; frame++ {
				keys = append(keys, Key(sprite, dir, frame))
			}
		}
	}
	return append(keys, CeoKey)
}

type Loader struct {
	Fetcher     Fetcher
	SpriteCount int
	// Parallel bounds the number of in-flight fetches.
	Parallel int
}

type LoadResult struct {
	Registry *Registry
	Failed   []string
}

// Load fetches every key and returns once all fetches have settled. A
// failed fetch only leaves its key out of the registry.
func (l *Loader) Load(ctx context.Context) LoadResult {
	reg := NewRegistry()
	keys := Keys(l.SpriteCount)

	var mu sync.Mutex
	var failed []string

	g := new(errgroup.Group)
	limit := l.Parallel
	if limit <= 0 {
		limit = len(keys)
	}
	g.SetLimit(limit)
	for _, key := range keys {
		g.Go(func() error {
			raw, err := l.Fetcher.Fetch(ctx, key)
			if err != nil {
				mu.Lock()
				failed = append(failed, key)
				mu.Unlock()
				return nil
			}
			reg.Put(NewTexture(key, raw))
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)
	return LoadResult{Registry: reg, Failed: failed}
}
