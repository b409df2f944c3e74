package spatialsync

import "github.com/hupe1980/spatialsync/geom"

// Capability declares what a PointSource can report about its points.
type Capability uint8

const (
	// CapOwnerRank means OwnerRank reports the partition that owns a point.
	// In a distributed run only points owned by the calling rank are
	// synchronized; ghost copies are skipped.
	CapOwnerRank Capability = 1 << iota

	// CapStableID means ID returns a genuine entity id. Without it the
	// synchronizer assigns synthetic ids (partition offset + local index).
	CapStableID
)

// Has reports whether all capabilities in f are set.
func (c Capability) Has(f Capability) bool { return c&f == f }

// PointSource is an ordered, indexable range of points on one partition.
type PointSource interface {
	Len() int
	Position(i int) geom.Vec3
	// ID is only consulted when Capabilities has CapStableID.
	ID(i int) uint64
	// OwnerRank is only consulted when Capabilities has CapOwnerRank.
	OwnerRank(i int) int
	Capabilities() Capability
}

// Entity is a point-bearing domain object with an identifier.
type Entity interface {
	Coordinates() geom.Vec3
	ID() uint64
}

// OwnedEntity is a node-like entity that records its owning partition.
type OwnedEntity interface {
	Entity
	OwnerRank() int
}

// Node is a minimal OwnedEntity.
type Node struct {
	Index  uint64
	Coords geom.Vec3
	Rank   int
}

func (n Node) Coordinates() geom.Vec3 { return n.Coords }
func (n Node) ID() uint64             { return n.Index }
func (n Node) OwnerRank() int         { return n.Rank }

// Nodes adapts owned entities. Ids are genuine and locality follows
// OwnerRank.
func Nodes[E OwnedEntity](nodes []E) PointSource {
	return nodeSource[E](nodes)
}

// Entities adapts entities without an owner. Every entry is local, ids are
// synthetic.
func Entities[E Entity](entities []E) PointSource {
	return entitySource[E](entities)
}

// Positions adapts bare coordinates. Every entry is local, ids are synthetic.
func Positions(points []geom.Vec3) PointSource {
	return positionSource(points)
}

type nodeSource[E OwnedEntity] []E

func (s nodeSource[E]) Len() int                 { return len(s) }
func (s nodeSource[E]) Position(i int) geom.Vec3 { return s[i].Coordinates() }
func (s nodeSource[E]) ID(i int) uint64          { return s[i].ID() }
func (s nodeSource[E]) OwnerRank(i int) int      { return s[i].OwnerRank() }
func (s nodeSource[E]) Capabilities() Capability { return CapOwnerRank | CapStableID }

type entitySource[E Entity] []E

func (s entitySource[E]) Len() int                 { return len(s) }
func (s entitySource[E]) Position(i int) geom.Vec3 { return s[i].Coordinates() }
func (s entitySource[E]) ID(i int) uint64          { return s[i].ID() }
func (s entitySource[E]) OwnerRank(int) int        { return -1 }
func (s entitySource[E]) Capabilities() Capability { return 0 }

type positionSource []geom.Vec3

func (s positionSource) Len() int                 { return len(s) }
func (s positionSource) Position(i int) geom.Vec3 { return s[i] }
func (s positionSource) ID(i int) uint64          { return uint64(i) }
func (s positionSource) OwnerRank(int) int        { return -1 }
func (s positionSource) Capabilities() Capability { return 0 }
