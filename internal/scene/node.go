package scene

import (
	"sort"

	"agent_office/internal/assets"
	"agent_office/internal/geom"
)

type NodeKind int

const (
	// KindFill paints Rect.
	KindFill NodeKind = iota
	// KindOutline draws the border of Rect.
	KindOutline
	// KindText centres Text on Pos.
	KindText
	// KindSprite centres Texture on Pos, or Text when Texture is nil.
	KindSprite
)

type Layer int

const (
	LayerFloor Layer = iota
	LayerFurniture
	LayerActors
	LayerEffects
	LayerOverlay
)

// Node is one renderable element. The ticker mutates nodes in place; a
// rebuild discards them wholesale.
type Node struct {
	Kind    NodeKind
	Layer   Layer
	Tag     string
	Pos     geom.Point
	Rect    geom.Rect
	Text    string
	Texture *assets.Texture
	Color   string
	Alpha   float64
	Mirror  bool
	Hidden  bool

	disposed bool
}

func (n *Node) Dispose() {
	if n != nil {
		n.disposed = true
	}
}

func (n *Node) Disposed() bool {
	return n == nil || n.disposed
}

// Visible reports whether a renderer should draw the node at all.
func (n *Node) Visible() bool {
	return !n.Disposed() && !n.Hidden && n.Alpha > 0.02
}

// SpriteNode places a texture, or glyph when the key is not registered.
func SpriteNode(reg *assets.Registry, key, glyph string, pos geom.Point, layer Layer) *Node {
	n := &Node{Kind: KindSprite, Layer: layer, Pos: pos, Text: glyph, Alpha: 1}
	if t, ok := reg.Lookup(key); ok {
		n.Texture = &t
	}
	return n
}

// SortByLayer orders nodes for drawing, keeping insertion order within a
// layer.
func SortByLayer(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Layer < nodes[j].Layer
	})
}
