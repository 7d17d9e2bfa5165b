package kmsout

import "fmt"

const (
	// RingSize is how many hardware buffers are allocated for page
	// flipping. Three is enough to avoid unexpected stalls from the
	// kernel.
	RingSize = 3

	// maxPlanes is the most memory planes a framebuffer can carry.
	maxPlanes = 4

	// Hardware tile granularity that strides and plane heights are
	// aligned to.
	tileWidth  = 512
	tileHeight = 16
)

func align(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

// bufferLayout is the geometry shared by every slot of a pool: the visible
// size, the line stride, the height the dumb buffer must be allocated with,
// and the byte offset of each memory plane.
type bufferLayout struct {
	width, height uint32
	stride        uint32
	dumbHeight    uint32
	offsets       [maxPlanes]uint32
}

// layoutFor computes the buffer geometry for a kernel format. Two-plane
// chroma formats put the chroma plane after a tile-aligned luma plane and
// need the dumb buffer tall enough for both; everything else gets a
// conservative 4-bytes-per-pixel stride so any packed layout fits.
func layoutFor(format FourCC, width, height uint32) bufferLayout {
	l := bufferLayout{width: width, height: height}
	switch format {
	case FormatP010, FormatP012, FormatP016:
		l.stride = align(width*2, tileWidth)
		l.offsets[1] = l.stride * align(height, tileHeight)
		l.dumbHeight = 2 * align(height, tileHeight)
	case FormatNV12:
		l.stride = align(width, tileWidth)
		l.offsets[1] = l.stride * align(height, tileHeight)
		l.dumbHeight = 2 * align(height, tileHeight)
	default:
		l.stride = align(width*4, tileWidth)
		l.dumbHeight = align(height, tileHeight)
	}
	return l
}

// hardwareBuffer is one ring slot: a dumb buffer handle, the framebuffer
// object wrapping it, and its CPU mapping.
type hardwareBuffer struct {
	handle uint32
	fb     uint32
	data   []byte
}

// BufferPool owns a fixed ring of hardware buffers. Construction is
// all-or-nothing; Release tears every slot down in reverse dependency
// order and never fails.
type BufferPool struct {
	dev Device
	bufferLayout
	size uint64
	bufs [RingSize]hardwareBuffer
}

// newBufferPool allocates the full ring for the negotiated kernel format.
// If any slot fails, every slot created so far is destroyed before the
// error is returned.
func newBufferPool(dev Device, format FourCC, width, height uint32) (*BufferPool, error) {
	p := &BufferPool{
		dev:          dev,
		bufferLayout: layoutFor(format, width, height),
	}
	for i := 0; i < RingSize; i++ {
		if err := p.createSlot(i, format); err != nil {
			for j := i - 1; j >= 0; j-- {
				p.destroySlot(j)
			}
			return nil, err
		}
	}
	return p, nil
}

func (p *BufferPool) createSlot(i int, format FourCC) error {
	handle, size, err := p.dev.CreateDumb(p.width, p.dumbHeight)
	if err != nil {
		return fmt.Errorf("slot %d: %w", i, err)
	}
	p.size = size
	p.bufs[i].handle = handle

	// Framebuffer plane 0 has to be filled in any case; further planes
	// only when they exist in the layout.
	var handles, pitches, offsets []uint32
	for n := 0; n < maxPlanes && (p.offsets[n] != 0 || n == 0); n++ {
		handles = append(handles, handle)
		pitches = append(pitches, p.stride)
		offsets = append(offsets, p.offsets[n])
	}

	fb, err := p.dev.AddFramebuffer(p.width, p.height, format, handles, pitches, offsets)
	if err != nil {
		p.dev.DestroyDumb(handle)
		p.bufs[i] = hardwareBuffer{}
		return fmt.Errorf("slot %d: %w", i, err)
	}
	p.bufs[i].fb = fb

	data, err := p.dev.MapDumb(handle, size)
	if err != nil {
		p.dev.RemoveFramebuffer(fb)
		p.dev.DestroyDumb(handle)
		p.bufs[i] = hardwareBuffer{}
		return fmt.Errorf("slot %d: %w", i, err)
	}
	p.bufs[i].data = data
	return nil
}

// destroySlot unwinds one slot: unmap, then drop the framebuffer object,
// then the dumb buffer. Tolerant of partially built slots.
func (p *BufferPool) destroySlot(i int) {
	b := &p.bufs[i]
	if b.data != nil {
		p.dev.Unmap(b.data)
	}
	if b.fb != 0 {
		p.dev.RemoveFramebuffer(b.fb)
	}
	if b.handle != 0 {
		p.dev.DestroyDumb(b.handle)
	}
	*b = hardwareBuffer{}
}

// Release destroys every slot. Teardown is best effort and safe to call
// more than once.
func (p *BufferPool) Release() {
	for i := RingSize - 1; i >= 0; i-- {
		p.destroySlot(i)
	}
}
