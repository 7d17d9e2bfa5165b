package kmsout

import (
	"errors"
	"testing"
)

// scanned returns a catalog with the given kernel formats marked present,
// each on its own plane id starting at 10.
func scanned(formats ...FourCC) *Catalog {
	c := NewCatalog()
	for i, f := range formats {
		c.record(f, uint32(10+i))
	}
	return c
}

func TestNegotiateExactMatch(t *testing.T) {
	c := scanned(FormatXRGB8888, FormatNV12, FormatYUYV)
	cases := []struct {
		requested FourCC
		kernel    FourCC
		plane     uint32
	}{
		{CodecRGB32, FormatXRGB8888, 10},
		{CodecNV12, FormatNV12, 11},
		{CodecYUYV, FormatYUYV, 12},
	}
	for _, tc := range cases {
		n, err := c.Negotiate(tc.requested, 0)
		if err != nil {
			t.Fatalf("%s: Negotiate failed: %v", tc.requested, err)
		}
		if n.Decoder != tc.requested || n.Kernel != tc.kernel || n.PlaneID != tc.plane {
			t.Errorf("%s: got (%s, %s, %d)", tc.requested, n.Decoder, n.Kernel, n.PlaneID)
		}
	}
}

// A known decoder chroma that the hardware does not support is a hard
// failure; the exact-match branch never degrades to class matching.
func TestNegotiateExactMatchNeverFallsThrough(t *testing.T) {
	c := scanned(FormatYUYV)
	_, err := c.Negotiate(CodecNV12, 0)
	if !errors.Is(err, ErrNoCompatibleFormat) {
		t.Errorf("Expected ErrNoCompatibleFormat, got %v", err)
	}
}

// An unknown chroma degrades to the first present entry of the same class
// in catalog order, regardless of plane enumeration order.
func TestNegotiateClassFallback(t *testing.T) {
	i420, _ := ParseFourCC("I420")
	c := NewCatalog()
	c.record(FormatNV12, 20) // discovered before P010
	c.record(FormatP010, 21)
	n, err := c.Negotiate(i420, 0)
	if err != nil {
		t.Fatalf("Negotiate failed: %v", err)
	}
	if n.Kernel != FormatP010 || n.Decoder != CodecP010 || n.PlaneID != 21 {
		t.Errorf("Expected P010 by catalog order, got (%s, %s, %d)", n.Decoder, n.Kernel, n.PlaneID)
	}
}

// When the requested class has nothing present, the opposite class is
// scanned from the top of the catalog rather than failing outright.
func TestNegotiateOppositeClassFallback(t *testing.T) {
	bgra, _ := ParseFourCC("BGRA")
	c := scanned(FormatP010, FormatVYUY)
	n, err := c.Negotiate(bgra, 0)
	if err != nil {
		t.Fatalf("Negotiate failed: %v", err)
	}
	if n.Kernel != FormatP010 {
		t.Errorf("Expected opposite-class fallback to start at the top, got %s", n.Kernel)
	}
}

func TestNegotiateNothingPresent(t *testing.T) {
	i420, _ := ParseFourCC("I420")
	_, err := NewCatalog().Negotiate(i420, 0)
	if !errors.Is(err, ErrNoCompatibleFormat) {
		t.Errorf("Expected ErrNoCompatibleFormat, got %v", err)
	}
}

func TestNegotiateForced(t *testing.T) {
	t.Run("unknown code", func(t *testing.T) {
		c := scanned(FormatNV12)
		c.forcedPlaneID = 10
		_, err := c.Negotiate(CodecNV12, fourcc('A', 'B', '2', '4'))
		if !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("Expected ErrUnknownFormat, got %v", err)
		}
	})
	t.Run("known but undiscovered", func(t *testing.T) {
		c := scanned(FormatNV12)
		_, err := c.Negotiate(CodecNV12, FormatYUYV)
		if !errors.Is(err, ErrNoCompatibleFormat) {
			t.Errorf("Expected ErrNoCompatibleFormat, got %v", err)
		}
	})
	t.Run("discovered", func(t *testing.T) {
		c := scanned(FormatNV12, FormatYUYV)
		c.forcedPlaneID = 11
		// Forced mode ignores the requested chroma even when it
		// would match exactly.
		n, err := c.Negotiate(CodecNV12, FormatYUYV)
		if err != nil {
			t.Fatalf("Negotiate failed: %v", err)
		}
		if n.Kernel != FormatYUYV || n.Decoder != CodecYUYV || n.PlaneID != 11 {
			t.Errorf("Expected forced YUYV on plane 11, got (%s, %s, %d)", n.Decoder, n.Kernel, n.PlaneID)
		}
	})
}
