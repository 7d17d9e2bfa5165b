package kmsout

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Plane is one memory plane of a picture: a pixel slice, the byte pitch of
// a line, and the number of lines.
type Plane struct {
	Pixels []byte
	Pitch  int
	Lines  int
}

// Picture is a planar pixel buffer. It describes both decoded frames handed
// to Submit and the writable hardware buffer exposed by Buffer.
type Picture struct {
	Planes [maxPlanes]Plane
}

// Buffer returns the picture backed by the hardware buffer that is
// currently writable. Its plane pointers are repointed after every
// successful Present, so collaborators writing pixels directly must fetch
// it per frame.
func (d *Display) Buffer() *Picture {
	return &d.pix
}

// SetPlacement sets the rectangle the image occupies on the CRTC and the
// crop applied to the source buffer. Callers recompute it per frame when
// the window geometry changes.
func (d *Display) SetPlacement(dst, src Rect) {
	d.placement = dst
	d.crop = src
}

// Submit copies a decoded picture into the writable buffer. No kernel call
// is involved; the cost is bounded by the memory copy.
func (d *Display) Submit(pic *Picture) {
	for i := range pic.Planes {
		src := &pic.Planes[i]
		dst := &d.pix.Planes[i]
		if src.Pixels == nil || dst.Pixels == nil {
			continue
		}
		lines := src.Lines
		if dst.Lines < lines {
			lines = dst.Lines
		}
		pitch := src.Pitch
		if dst.Pitch < pitch {
			pitch = dst.Pitch
		}
		for l := 0; l < lines; l++ {
			copy(dst.Pixels[l*dst.Pitch:l*dst.Pitch+pitch], src.Pixels[l*src.Pitch:])
		}
	}
}

// Present flips the current front buffer onto the negotiated plane, then
// advances the ring and repoints the writable picture at the next slot.
//
// A rejected flip returns an error wrapping ErrPresent and leaves the ring
// where it was; the session is expected to retry with the next frame. A
// rejection with an argument error wraps ErrBadFlip instead and means the
// session is broken.
func (d *Display) Present() error {
	fb := d.pool.bufs[d.front].fb
	err := d.dev.SetPlane(d.negotiated.PlaneID, d.crtc, fb, d.placement, d.crop)
	if err != nil {
		d.log.Error("cannot set plane",
			zap.Uint32("plane", d.negotiated.PlaneID),
			zap.Uint32("fb", fb),
			zap.Error(err))
		if errors.Is(err, unix.EINVAL) {
			return fmt.Errorf("present fb %#x on plane %d: %v: %w",
				fb, d.negotiated.PlaneID, err, ErrBadFlip)
		}
		return fmt.Errorf("present fb %#x on plane %d: %v: %w",
			fb, d.negotiated.PlaneID, err, ErrPresent)
	}

	d.front = (d.front + 1) % RingSize
	d.repoint()
	return nil
}

// repoint aims the writable picture at the current front slot's mapping.
func (d *Display) repoint() {
	data := d.pool.bufs[d.front].data
	for i := 0; i < maxPlanes; i++ {
		if i > 0 && d.pool.offsets[i] == 0 {
			d.pix.Planes[i] = Plane{}
			continue
		}
		d.pix.Planes[i] = Plane{
			Pixels: data[d.pool.offsets[i]:],
			Pitch:  int(d.pool.stride),
			Lines:  int(d.pool.height),
		}
	}
}
