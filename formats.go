package kmsout

import "fmt"

// FourCC is a four character code packed little-endian, the same layout the
// kernel uses for DRM formats and decoders use for chroma codes.
type FourCC uint32

func fourcc(a, b, c, d byte) FourCC {
	return FourCC(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// ParseFourCC converts the four character string to a FourCC.
func ParseFourCC(s string) (FourCC, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("%s: illegal fourcc", s)
	}
	return fourcc(s[0], s[1], s[2], s[3]), nil
}

func (f FourCC) String() string {
	b := [4]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return string(b[:])
}

// Kernel (DRM) formats known to the catalog.
var (
	FormatXRGB8888 = fourcc('X', 'R', '2', '4')
	FormatRGB565   = fourcc('R', 'G', '1', '6')
	FormatP010     = fourcc('P', '0', '1', '0')
	FormatP012     = fourcc('P', '0', '1', '2')
	FormatP016     = fourcc('P', '0', '1', '6')
	FormatNV12     = fourcc('N', 'V', '1', '2')
	FormatYUYV     = fourcc('Y', 'U', 'Y', 'V')
	FormatYVYU     = fourcc('Y', 'V', 'Y', 'U')
	FormatUYVY     = fourcc('U', 'Y', 'V', 'Y')
	FormatVYUY     = fourcc('V', 'Y', 'U', 'Y')
)

// Decoder-side chroma codes matching the kernel formats above.
var (
	CodecRGB32 = fourcc('R', 'V', '3', '2')
	CodecRGB16 = fourcc('R', 'V', '1', '6')
	CodecP010  = fourcc('P', '0', '1', '0')
	CodecNV12  = fourcc('N', 'V', '1', '2')
	CodecYUYV  = fourcc('Y', 'U', 'Y', '2')
	CodecYVYU  = fourcc('Y', 'V', 'Y', 'U')
	CodecUYVY  = fourcc('U', 'Y', 'V', 'Y')
	CodecVYUY  = fourcc('V', 'Y', 'U', 'Y')
)

// mapping pairs a kernel format with its decoder counterpart. The discovery
// fields are filled in by Scan and tell which plane, if any, advertised the
// kernel format.
type mapping struct {
	Kernel  FourCC
	Decoder FourCC
	YUV     bool

	PlaneID uint32
	Present bool
}

// formatTable lists the pairs in preference order: exact native formats
// first, then the common YUV family. Ties inside a class are broken by
// position in this list, not by plane enumeration order.
var formatTable = []mapping{
	{Kernel: FormatXRGB8888, Decoder: CodecRGB32},
	{Kernel: FormatRGB565, Decoder: CodecRGB16},
	{Kernel: FormatP010, Decoder: CodecP010, YUV: true},
	{Kernel: FormatNV12, Decoder: CodecNV12, YUV: true},
	{Kernel: FormatYUYV, Decoder: CodecYUYV, YUV: true},
	{Kernel: FormatYVYU, Decoder: CodecYVYU, YUV: true},
	{Kernel: FormatUYVY, Decoder: CodecUYVY, YUV: true},
	{Kernel: FormatVYUY, Decoder: CodecVYUY, YUV: true},
}

// Catalog is one negotiation session's view of the format table. Discovery
// state is scoped to the value, so independent display sessions never see
// each other's scan results.
type Catalog struct {
	entries []mapping

	// first plane found advertising the forced kernel format during
	// Scan, recorded even for formats outside the table.
	forcedPlaneID uint32
}

// NewCatalog returns a catalog with a fresh copy of the format table and no
// discovery state.
func NewCatalog() *Catalog {
	c := &Catalog{entries: make([]mapping, len(formatTable))}
	copy(c.entries, formatTable)
	return c
}

// Reset clears all discovery state. A catalog must be scanned again after
// Reset before it can negotiate.
func (c *Catalog) Reset() {
	for i := range c.entries {
		c.entries[i].PlaneID = 0
		c.entries[i].Present = false
	}
	c.forcedPlaneID = 0
}

// record marks a kernel format as available on a plane. The first plane
// found wins; later matches for the same format are ignored, so earlier
// enumerated planes are preferred.
func (c *Catalog) record(kernel FourCC, planeID uint32) {
	for i := range c.entries {
		if c.entries[i].Kernel != kernel {
			continue
		}
		if !c.entries[i].Present {
			c.entries[i].Present = true
			c.entries[i].PlaneID = planeID
		}
		return
	}
}

func (c *Catalog) lookupKernel(kernel FourCC) *mapping {
	for i := range c.entries {
		if c.entries[i].Kernel == kernel {
			return &c.entries[i]
		}
	}
	return nil
}

func (c *Catalog) lookupDecoder(decoder FourCC) *mapping {
	for i := range c.entries {
		if c.entries[i].Decoder == decoder {
			return &c.entries[i]
		}
	}
	return nil
}

// yuvCodecs are decoder chromas outside the catalog that still classify as
// YUV for the fallback scans.
var yuvCodecs = map[FourCC]bool{
	fourcc('I', '4', '2', '0'): true,
	fourcc('Y', 'V', '1', '2'): true,
	fourcc('N', 'V', '2', '1'): true,
	fourcc('I', '4', '1', '1'): true,
	fourcc('I', '4', '2', '2'): true,
	fourcc('I', '4', '4', '0'): true,
	fourcc('I', '4', '4', '4'): true,
	fourcc('G', 'R', 'E', 'Y'): true,
	fourcc('P', '0', '1', '2'): true,
	fourcc('P', '0', '1', '6'): true,
}

// codecIsYUV classifies a decoder chroma. Catalog entries carry their own
// tag; anything else falls back to the known YUV list, with RGB as the
// default.
func (c *Catalog) codecIsYUV(decoder FourCC) bool {
	if m := c.lookupDecoder(decoder); m != nil {
		return m.YUV
	}
	return yuvCodecs[decoder]
}
