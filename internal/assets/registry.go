package assets

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

type Direction string

const (
	DirectionDown  Direction = "D"
	DirectionLeft  Direction = "L"
	DirectionRight Direction = "R"
)

var Directions = []Direction{DirectionDown, DirectionLeft, DirectionRight}

const (
	FramesPerDirection = 3
	CeoKey             = "ceo"
)

// Key builds the composite registry key spriteIndex-direction-frame.
func Key(sprite int, dir Direction, frame int) string {
	return fmt.Sprintf("%d-%s-%d", sprite, dir, frame)
}

// Texture is a small block of terminal art.
type Texture struct {
	Key    string
	Lines  []string
	Width  int
	Height int
}

func NewTexture(key string, raw string) Texture {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	width := 0
	for _, l := range lines {
		width = max(width, runewidth.StringWidth(l))
	}
	return Texture{Key: key, Lines: lines, Width: width, Height: len(lines)}
}

// Registry maps composite keys to loaded textures. Absent keys mean the
// fetch failed or never happened; callers fall back to a glyph.
type Registry struct {
	mu       sync.RWMutex
	textures map[string]Texture
}

func NewRegistry() *Registry {
	return &Registry{textures: make(map[string]Texture)}
}

func (r *Registry) Put(t Texture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures[t.Key] = t
}

func (r *Registry) Lookup(key string) (Texture, bool) {
	if r == nil {
		return Texture{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.textures[key]
	return t, ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.textures)
}
