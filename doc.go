// Package kmsout presents decoded video frames directly on a DRM/KMS
// display plane, without a windowing system.
//
// A session scans the planes that can feed a target CRTC, negotiates a
// pixel format between the decoder side and what the hardware advertises,
// allocates a small ring of mmap'd dumb buffers wrapped in framebuffer
// objects, and then cycles them through plane updates:
//
//	d, err := kmsout.Open(kmsout.Config{
//	    Card:   0,
//	    CRTC:   crtc,
//	    Width:  1920,
//	    Height: 1080,
//	    Format: kmsout.CodecNV12,
//	})
//	if err != nil {
//	    // no usable plane/format, or buffer allocation failed
//	}
//	defer d.Close()
//
//	for pic := range frames {
//	    d.Submit(pic)
//	    if err := d.Present(); err != nil && errors.Is(err, kmsout.ErrBadFlip) {
//	        break // programming error, do not retry
//	    }
//	}
//
// The driving loop is single threaded: Submit then Present per frame, no
// internal concurrency.
package kmsout
