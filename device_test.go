package kmsout

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// fakePlane is one plane the fake device advertises.
type fakePlane struct {
	id       uint32
	crtcMask uint32
	formats  []FourCC
	typ      PlaneType
}

// flip records one SetPlane call.
type flip struct {
	plane, crtc, fb uint32
	dst, src        Rect
}

// fakeDevice is a scripted Device that tracks every kernel resource so
// tests can assert nothing leaks. A fail*At field makes the n-th call of
// that kind fail.
type fakeDevice struct {
	crtcs  []uint32
	planes []fakePlane

	crtcsErr  error
	planesErr error
	planeErr  map[uint32]error

	failCreateAt int
	failAddFBAt  int
	failMapAt    int

	createCalls int
	addFBCalls  int
	mapCalls    int

	nextHandle uint32
	nextFB     uint32

	dumbs map[uint32]uint64
	fbs   map[uint32]bool
	maps  int

	// number of memory planes bound by each AddFramebuffer call
	fbPlanes []int

	setPlaneErr error
	flips       []flip

	closed bool
}

func newFakeDevice(crtcs []uint32, planes ...fakePlane) *fakeDevice {
	return &fakeDevice{
		crtcs:        crtcs,
		planes:       planes,
		failCreateAt: -1,
		failAddFBAt:  -1,
		failMapAt:    -1,
		dumbs:        map[uint32]uint64{},
		fbs:          map[uint32]bool{},
	}
}

// outstanding counts kernel resources still alive.
func (f *fakeDevice) outstanding() int {
	return len(f.dumbs) + len(f.fbs) + f.maps
}

func (f *fakeDevice) CRTCs() ([]uint32, error) {
	if f.crtcsErr != nil {
		return nil, f.crtcsErr
	}
	return f.crtcs, nil
}

func (f *fakeDevice) Planes() ([]uint32, error) {
	if f.planesErr != nil {
		return nil, f.planesErr
	}
	ids := make([]uint32, len(f.planes))
	for i, p := range f.planes {
		ids[i] = p.id
	}
	return ids, nil
}

func (f *fakeDevice) lookupPlane(id uint32) (fakePlane, error) {
	if err := f.planeErr[id]; err != nil {
		return fakePlane{}, err
	}
	for _, p := range f.planes {
		if p.id == id {
			return p, nil
		}
	}
	return fakePlane{}, fmt.Errorf("no plane %d", id)
}

func (f *fakeDevice) Plane(id uint32) (PlaneInfo, error) {
	p, err := f.lookupPlane(id)
	if err != nil {
		return PlaneInfo{}, err
	}
	return PlaneInfo{ID: p.id, PossibleCRTCs: p.crtcMask, Formats: p.formats}, nil
}

func (f *fakeDevice) PlaneType(id uint32) (PlaneType, error) {
	p, err := f.lookupPlane(id)
	if err != nil {
		return PlaneUnknown, err
	}
	return p.typ, nil
}

func (f *fakeDevice) CreateDumb(width, height uint32) (uint32, uint64, error) {
	n := f.createCalls
	f.createCalls++
	if n == f.failCreateAt {
		return 0, 0, fmt.Errorf("create dumb: %w", unix.ENOMEM)
	}
	f.nextHandle++
	size := uint64(width) * uint64(height) * 4
	f.dumbs[f.nextHandle] = size
	return f.nextHandle, size, nil
}

func (f *fakeDevice) AddFramebuffer(width, height uint32, format FourCC, handles, pitches, offsets []uint32) (uint32, error) {
	n := f.addFBCalls
	f.addFBCalls++
	if n == f.failAddFBAt {
		return 0, fmt.Errorf("add framebuffer: %w", unix.EINVAL)
	}
	for _, h := range handles {
		if _, ok := f.dumbs[h]; !ok {
			return 0, fmt.Errorf("add framebuffer: unknown handle %d", h)
		}
	}
	f.nextFB++
	f.fbs[f.nextFB] = true
	f.fbPlanes = append(f.fbPlanes, len(handles))
	return f.nextFB, nil
}

func (f *fakeDevice) RemoveFramebuffer(fb uint32) error {
	if !f.fbs[fb] {
		return fmt.Errorf("remove framebuffer: unknown fb %d", fb)
	}
	delete(f.fbs, fb)
	return nil
}

func (f *fakeDevice) MapDumb(handle uint32, size uint64) ([]byte, error) {
	n := f.mapCalls
	f.mapCalls++
	if n == f.failMapAt {
		return nil, fmt.Errorf("map dumb: %w", unix.EACCES)
	}
	if _, ok := f.dumbs[handle]; !ok {
		return nil, fmt.Errorf("map dumb: unknown handle %d", handle)
	}
	f.maps++
	return make([]byte, size), nil
}

func (f *fakeDevice) Unmap(buf []byte) error {
	f.maps--
	return nil
}

func (f *fakeDevice) DestroyDumb(handle uint32) error {
	if _, ok := f.dumbs[handle]; !ok {
		return fmt.Errorf("destroy dumb: unknown handle %d", handle)
	}
	delete(f.dumbs, handle)
	return nil
}

func (f *fakeDevice) SetPlane(planeID, crtcID, fb uint32, dst, src Rect) error {
	if f.setPlaneErr != nil {
		return f.setPlaneErr
	}
	if !f.fbs[fb] {
		return fmt.Errorf("set plane: %w", unix.EINVAL)
	}
	f.flips = append(f.flips, flip{plane: planeID, crtc: crtcID, fb: fb, dst: dst, src: src})
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}
