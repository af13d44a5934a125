package mdstore

import (
	"testing"

	"github.com/phastphill/asdcplib/internal/klv"
)

type fakeObject struct {
	ul  klv.UL
	uid UUID
}

func (f *fakeObject) UL() klv.UL        { return f.ul }
func (f *fakeObject) InstanceUID() UUID { return f.uid }

func TestAddAndGetByType(t *testing.T) {
	s := New()
	var ulA klv.UL
	ulA[0] = 0xaa
	obj := &fakeObject{ul: ulA, uid: UUID{1}}
	s.Add(obj)

	got, ok := s.GetByType(ulA)
	if !ok || got != obj {
		t.Errorf("GetByType = (%v, %v), want (%v, true)", got, ok, obj)
	}

	var ulB klv.UL
	ulB[0] = 0xbb
	if _, ok := s.GetByType(ulB); ok {
		t.Errorf("GetByType for an unregistered UL returned ok=true")
	}
}

func TestAddChildTracksParentAndRegistersType(t *testing.T) {
	s := New()
	var parentUL, childUL klv.UL
	parentUL[0], childUL[0] = 0x01, 0x02
	parent := &fakeObject{ul: parentUL, uid: UUID{9}}
	child := &fakeObject{ul: childUL, uid: UUID{10}}

	s.AddChild(parent, child)

	children := s.ChildrenOf(parent)
	if len(children) != 1 || children[0] != child {
		t.Errorf("ChildrenOf(parent) = %v, want [%v]", children, child)
	}
	if all := s.GetAllByType(childUL); len(all) != 1 || all[0] != child {
		t.Errorf("GetAllByType(childUL) = %v, want [%v]", all, child)
	}
}

func TestCount(t *testing.T) {
	s := New()
	if s.Count() != 0 {
		t.Errorf("Count() on empty store = %d, want 0", s.Count())
	}
	var ul1, ul2 klv.UL
	ul1[0], ul2[0] = 1, 2
	s.Add(&fakeObject{ul: ul1, uid: UUID{1}})
	s.Add(&fakeObject{ul: ul1, uid: UUID{2}})
	s.Add(&fakeObject{ul: ul2, uid: UUID{3}})
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2 distinct type ULs", s.Count())
	}
	if all := s.GetAllByType(ul1); len(all) != 2 {
		t.Errorf("GetAllByType(ul1) = %d objects, want 2", len(all))
	}
}
