package kmsout

import (
	"fmt"
	"os"

	"github.com/NeowayLabs/drm"
	"github.com/NeowayLabs/drm/mode"
	"golang.org/x/sys/unix"
)

// PlaneType is the kernel "type" property of a plane. It is reported in
// scan diagnostics and has no effect on format selection.
type PlaneType uint64

const (
	PlaneOverlay PlaneType = 0
	PlanePrimary PlaneType = 1
	PlaneCursor  PlaneType = 2
	PlaneUnknown PlaneType = 3
)

var planeTypeNames = [...]string{"OVERLAY", "PRIMARY", "CURSOR", "UNKNOWN"}

func (t PlaneType) String() string {
	if int(t) < len(planeTypeNames) {
		return planeTypeNames[t]
	}
	return planeTypeNames[PlaneUnknown]
}

// Rect is a placement or crop rectangle in pixels.
type Rect struct {
	X, Y int32
	W, H uint32
}

// PlaneInfo describes one display plane as advertised by the kernel. It is
// produced during scanning and not retained.
type PlaneInfo struct {
	ID            uint32
	PossibleCRTCs uint32
	Formats       []FourCC
}

// Device is the slice of the kernel display interface this package needs.
// The production implementation wraps a DRM card file descriptor; tests
// substitute a scripted fake.
type Device interface {
	// CRTCs returns the card's CRTC ids in kernel order.
	CRTCs() ([]uint32, error)
	// Planes returns all plane ids advertised by the card.
	Planes() ([]uint32, error)
	// Plane fetches one plane's CRTC mask and supported formats.
	Plane(id uint32) (PlaneInfo, error)
	// PlaneType reads the plane's "type" property.
	PlaneType(id uint32) (PlaneType, error)

	// CreateDumb allocates a CPU-mappable kernel buffer and returns its
	// handle and byte size.
	CreateDumb(width, height uint32) (handle uint32, size uint64, err error)
	// AddFramebuffer binds up to four planes of a dumb buffer into a
	// framebuffer object and returns its id.
	AddFramebuffer(width, height uint32, format FourCC, handles, pitches, offsets []uint32) (uint32, error)
	// RemoveFramebuffer drops a framebuffer object.
	RemoveFramebuffer(fb uint32) error
	// MapDumb maps a dumb buffer for CPU reads and writes.
	MapDumb(handle uint32, size uint64) ([]byte, error)
	// Unmap releases a mapping obtained from MapDumb.
	Unmap(buf []byte) error
	// DestroyDumb frees a dumb buffer.
	DestroyDumb(handle uint32) error

	// SetPlane presents a framebuffer on a plane: dst places it on the
	// CRTC, src crops the buffer.
	SetPlane(planeID, crtcID, fb uint32, dst, src Rect) error

	Close() error
}

// card is the production Device backed by a DRM card file descriptor.
type card struct {
	file *os.File
}

// OpenCard opens /dev/dri/cardN and verifies it can allocate dumb buffers.
func OpenCard(n int) (Device, error) {
	file, err := drm.OpenCard(n)
	if err != nil {
		return nil, err
	}
	if !drm.HasDumbBuffer(file) {
		file.Close()
		return nil, fmt.Errorf("card %d: no dumb buffer support", n)
	}
	return &card{file: file}, nil
}

// NewDevice wraps an already-open DRM card file descriptor. The caller
// keeps ownership of the file.
func NewDevice(file *os.File) Device {
	return &card{file: file}
}

func (c *card) CRTCs() ([]uint32, error) {
	res, err := mode.GetResources(c.file)
	if err != nil {
		return nil, fmt.Errorf("get resources: %w", err)
	}
	return res.Crtcs, nil
}

func (c *card) Planes() ([]uint32, error) {
	res, err := mode.GetPlaneResources(c.file)
	if err != nil {
		return nil, fmt.Errorf("get plane resources: %w", err)
	}
	return res.Planes, nil
}

func (c *card) Plane(id uint32) (PlaneInfo, error) {
	p, err := mode.GetPlane(c.file, id)
	if err != nil {
		return PlaneInfo{}, fmt.Errorf("get plane %d: %w", id, err)
	}
	formats := make([]FourCC, len(p.FormatTypes))
	for i, f := range p.FormatTypes {
		formats[i] = FourCC(f)
	}
	return PlaneInfo{
		ID:            p.ID,
		PossibleCRTCs: p.PossibleCrtcs,
		Formats:       formats,
	}, nil
}

func (c *card) PlaneType(id uint32) (PlaneType, error) {
	props, err := mode.GetProperties(c.file, id, mode.ObjectPlane)
	if err != nil {
		return PlaneUnknown, fmt.Errorf("get plane %d properties: %w", id, err)
	}
	for i, propID := range props.Props {
		prop, err := mode.GetProperty(c.file, propID)
		if err != nil {
			return PlaneUnknown, fmt.Errorf("get property %d: %w", propID, err)
		}
		if prop.Name == "type" {
			return PlaneType(props.PropValues[i]), nil
		}
	}
	return PlaneUnknown, nil
}

func (c *card) CreateDumb(width, height uint32) (uint32, uint64, error) {
	fb, err := mode.CreateFB(c.file, uint16(width), uint16(height), 32)
	if err != nil {
		return 0, 0, fmt.Errorf("create dumb buffer: %w", err)
	}
	return fb.Handle, fb.Size, nil
}

func (c *card) AddFramebuffer(width, height uint32, format FourCC, handles, pitches, offsets []uint32) (uint32, error) {
	fb, err := mode.AddFB2(c.file, uint16(width), uint16(height), uint32(format),
		0, pitches, offsets, handles, make([]uint64, len(handles)))
	if err != nil {
		return 0, fmt.Errorf("add framebuffer: %w", err)
	}
	return fb, nil
}

func (c *card) RemoveFramebuffer(fb uint32) error {
	return mode.RmFB(c.file, fb)
}

func (c *card) MapDumb(handle uint32, size uint64) ([]byte, error) {
	offset, err := mode.MapDumb(c.file, handle)
	if err != nil {
		return nil, fmt.Errorf("map dumb buffer: %w", err)
	}
	buf, err := unix.Mmap(int(c.file.Fd()), int64(offset), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap dumb buffer: %w", err)
	}
	return buf, nil
}

func (c *card) Unmap(buf []byte) error {
	return unix.Munmap(buf)
}

func (c *card) DestroyDumb(handle uint32) error {
	return mode.DestroyDumb(c.file, handle)
}

func (c *card) SetPlane(planeID, crtcID, fb uint32, dst, src Rect) error {
	// Source coordinates are 16.16 fixed point.
	return mode.SetPlane(c.file, planeID, crtcID, fb, 0,
		dst.X, dst.Y, dst.W, dst.H,
		uint32(src.X)<<16, uint32(src.Y)<<16, src.H<<16, src.W<<16)
}

func (c *card) Close() error {
	return c.file.Close()
}
