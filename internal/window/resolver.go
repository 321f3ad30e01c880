package window

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// maxTreeDepth bounds parent-chain walks against broken or cyclic trees.
const maxTreeDepth = 64

var errNoParentChain = errors.New("parent chain did not reach root")

type coordinateTier struct {
	name    string
	resolve func(win uint32) (int, int, error)
}

type extentsTier struct {
	name    string
	resolve func(win uint32) (FrameExtents, error)
}

// Resolver computes absolute window coordinates and invisible frame
// extents, each through an ordered list of tiers where the first tier
// that succeeds wins.
type Resolver struct {
	ws          WindowSystem
	coordinates []coordinateTier
	extents     []extentsTier
}

// NewResolver builds a resolver with the default tier order:
// coordinates walk parents → translate to root → geometry origin;
// extents _GTK_FRAME_EXTENTS → _NET_FRAME_EXTENTS → heuristic.
func NewResolver(ws WindowSystem) *Resolver {
	r := &Resolver{ws: ws}
	r.coordinates = []coordinateTier{
		{name: "parent-walk", resolve: r.walkParents},
		{name: "translate", resolve: r.translateToRoot},
		{name: "geometry", resolve: r.geometryOrigin},
	}
	r.extents = []extentsTier{
		{name: "_GTK_FRAME_EXTENTS", resolve: r.propertyExtents("_GTK_FRAME_EXTENTS")},
		{name: "_NET_FRAME_EXTENTS", resolve: r.propertyExtents("_NET_FRAME_EXTENTS")},
		{name: "heuristic", resolve: r.heuristicExtents},
	}
	return r
}

// AbsoluteCoordinates returns the window's top-left corner in root
// coordinates. It always returns some pair; failures degrade to the next
// tier and finally to (0, 0).
func (r *Resolver) AbsoluteCoordinates(win uint32) (int, int) {
	log := logger.WithComponent("geometry")

	for _, tier := range r.coordinates {
		x, y, err := tier.resolve(win)
		if err == nil {
			log.Debug().
				Uint32("window_id", win).
				Str("tier", tier.name).
				Int("x", x).
				Int("y", y).
				Msg("Resolved absolute coordinates")
			return x, y
		}
		log.Debug().
			Err(err).
			Uint32("window_id", win).
			Str("tier", tier.name).
			Msg("Coordinate tier failed")
	}

	log.Warn().Uint32("window_id", win).Msg("All coordinate tiers failed, using origin")
	return 0, 0
}

// FrameExtents returns the invisible decoration around the window.
func (r *Resolver) FrameExtents(win uint32) FrameExtents {
	extents, _ := r.FrameExtentsWithSource(win)
	return extents
}

// FrameExtentsWithSource is FrameExtents plus the name of the tier that produced the value.
func (r *Resolver) FrameExtentsWithSource(win uint32) (FrameExtents, string) {
	log := logger.WithComponent("geometry")

	for _, tier := range r.extents {
		extents, err := tier.resolve(win)
		if err != nil {
			continue
		}
		log.Debug().
			Uint32("window_id", win).
			Str("source", tier.name).
			Int("left", extents.Left).
			Int("right", extents.Right).
			Int("top", extents.Top).
			Int("bottom", extents.Bottom).
			Msg("Resolved frame extents")
		return extents, tier.name
	}
	return FrameExtents{}, "none"
}

// walkParents sums local origins up the parent chain until it reaches root.
func (r *Resolver) walkParents(win uint32) (int, int, error) {
	geom, err := r.ws.Geometry(win)
	if err != nil {
		return 0, 0, fmt.Errorf("geometry of 0x%x: %w", win, err)
	}

	x, y := geom.X, geom.Y
	root := r.ws.Root()
	current := win

	for depth := 0; depth < maxTreeDepth; depth++ {
		tree, err := r.ws.QueryTree(current)
		if err != nil {
			return 0, 0, fmt.Errorf("query tree of 0x%x: %w", current, err)
		}
		parent := tree.Parent
		if parent == 0 || parent == root {
			return x, y, nil
		}

		pgeom, err := r.ws.Geometry(parent)
		if err != nil {
			return 0, 0, fmt.Errorf("geometry of parent 0x%x: %w", parent, err)
		}
		x += pgeom.X
		y += pgeom.Y
		current = parent
	}

	return 0, 0, errNoParentChain
}

func (r *Resolver) translateToRoot(win uint32) (int, int, error) {
	t, err := r.ws.TranslateCoordinates(win, r.ws.Root(), 0, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("translate 0x%x: %w", win, err)
	}
	return t.X, t.Y, nil
}

func (r *Resolver) geometryOrigin(win uint32) (int, int, error) {
	geom, err := r.ws.Geometry(win)
	if err != nil {
		return 0, 0, err
	}
	return geom.X, geom.Y, nil
}

// propertyExtents reads a left, right, top, bottom CARDINAL[4] property.
func (r *Resolver) propertyExtents(name string) func(win uint32) (FrameExtents, error) {
	return func(win uint32) (FrameExtents, error) {
		values, err := r.ws.CardinalProperty(win, name)
		if err != nil {
			return FrameExtents{}, err
		}
		if len(values) < 4 {
			return FrameExtents{}, fmt.Errorf("%s has %d values: %w", name, len(values), ErrNoProperty)
		}
		return FrameExtents{
			Left:   int(values[0]),
			Right:  int(values[1]),
			Top:    int(values[2]),
			Bottom: int(values[3]),
		}, nil
	}
}

// heuristicExtents infers decoration from a negative local origin. A
// negative x means a uniform border on all sides; a negative y alone
// means a title-bar-only border. It never fails.
func (r *Resolver) heuristicExtents(win uint32) (FrameExtents, error) {
	geom, err := r.ws.Geometry(win)
	if err != nil {
		return FrameExtents{}, nil
	}

	switch {
	case geom.X < 0:
		return Uniform(-geom.X), nil
	case geom.Y < 0:
		return FrameExtents{Top: -geom.Y}, nil
	default:
		return FrameExtents{}, nil
	}
}
