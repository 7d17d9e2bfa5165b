package kmsout

import "fmt"

// Negotiated is the outcome of format negotiation: the decoder chroma the
// collaborator should produce, the kernel format the framebuffers will
// carry, and the plane that accepts it.
type Negotiated struct {
	Decoder FourCC
	Kernel  FourCC
	PlaneID uint32
}

// Negotiate picks a working (decoder, kernel, plane) triple from the
// scanned catalog. forced, when nonzero, selects that kernel format
// directly and skips matching entirely; otherwise requested is matched
// exactly first, then by YUV/RGB class in catalog order, then by the
// opposite class as a last resort.
func (c *Catalog) Negotiate(requested, forced FourCC) (Negotiated, error) {
	if forced != 0 {
		m := c.lookupKernel(forced)
		if m == nil {
			return Negotiated{}, fmt.Errorf("forced kernel format %s: %w", forced, ErrUnknownFormat)
		}
		if c.forcedPlaneID == 0 {
			return Negotiated{}, fmt.Errorf("forced kernel format %s not available in kernel: %w", forced, ErrNoCompatibleFormat)
		}
		return Negotiated{Decoder: m.Decoder, Kernel: forced, PlaneID: c.forcedPlaneID}, nil
	}

	// Exact decoder match decides the outcome either way; a known
	// decoder chroma that no plane supports is a hard failure rather
	// than an excuse to pick a different chroma.
	if m := c.lookupDecoder(requested); m != nil {
		if !m.Present {
			return Negotiated{}, fmt.Errorf("requested chroma %s not available in kernel: %w", requested, ErrNoCompatibleFormat)
		}
		return Negotiated{Decoder: requested, Kernel: m.Kernel, PlaneID: m.PlaneID}, nil
	}

	// Unknown chroma: degrade to the first present entry of the same
	// class, then of the opposite class.
	yuv := c.codecIsYUV(requested)
	for i := range c.entries {
		m := &c.entries[i]
		if m.YUV == yuv && m.Present {
			return Negotiated{Decoder: m.Decoder, Kernel: m.Kernel, PlaneID: m.PlaneID}, nil
		}
	}
	for i := range c.entries {
		m := &c.entries[i]
		if m.YUV != yuv && m.Present {
			return Negotiated{Decoder: m.Decoder, Kernel: m.Kernel, PlaneID: m.PlaneID}, nil
		}
	}
	return Negotiated{}, fmt.Errorf("requested chroma %s: %w", requested, ErrNoCompatibleFormat)
}
