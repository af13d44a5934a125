// Package mdstore implements the in-memory interchange-object graph that
// the IAB clip writer/reader (package as02) consumes as its Metadata
// Store collaborator. It is intentionally small: this library does not
// implement the general MXF metadata object model (see Non-goals in the
// top-level design), only the handful of object types the IAB profile's
// write_metadata/read_metadata path and header validation actually touch.
package mdstore

import "github.com/phastphill/asdcplib/internal/klv"

// UUID is a 16-byte instance identifier, distinct from a UL: a UL names a
// *type*, a UUID names an *instance*.
type UUID [16]byte

// Object is any interchange object the Store can hold: something that
// knows its own type UL and instance UUID.
type Object interface {
	UL() klv.UL
	InstanceUID() UUID
}

// Store is the in-memory object graph. Objects are indexed by type UL for
// GetByType/GetAllByType lookups, and a parent→children edge list is kept
// for AddChild so the header writer can walk the graph when it flushes.
type Store struct {
	byUL     map[klv.UL][]Object
	children map[UUID][]Object
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byUL:     make(map[klv.UL][]Object),
		children: make(map[UUID][]Object),
	}
}

// Add registers obj in the store under its own type UL. It does not attach
// obj to any parent; use AddChild for that.
func (s *Store) Add(obj Object) {
	s.byUL[obj.UL()] = append(s.byUL[obj.UL()], obj)
}

// AddChild registers child under parent's instance UID and also adds it to
// the store's type index, if not already present. Per the writer's
// ownership-transfer convention (see design notes), the caller must not
// mutate or re-register child elsewhere after this call.
func (s *Store) AddChild(parent, child Object) {
	pid := parent.InstanceUID()
	s.children[pid] = append(s.children[pid], child)
	for _, o := range s.byUL[child.UL()] {
		if o.InstanceUID() == child.InstanceUID() {
			return
		}
	}
	s.Add(child)
}

// ChildrenOf returns the objects previously attached to parent via AddChild.
func (s *Store) ChildrenOf(parent Object) []Object {
	return s.children[parent.InstanceUID()]
}

// GetByType returns the first registered object of type t, if any.
func (s *Store) GetByType(t klv.UL) (Object, bool) {
	objs := s.byUL[t]
	if len(objs) == 0 {
		return nil, false
	}
	return objs[0], true
}

// GetAllByType returns every registered object of type t.
func (s *Store) GetAllByType(t klv.UL) []Object {
	return s.byUL[t]
}

// Count returns the number of distinct type ULs registered with the store.
func (s *Store) Count() int {
	return len(s.byUL)
}
