package kmsout

import (
	"fmt"

	"go.uber.org/zap"
)

// Scan enumerates every plane that can feed the target CRTC and records
// which catalog formats the hardware advertises. forced, when nonzero, is a
// kernel format the caller wants regardless of the catalog; the first plane
// advertising it is captured too.
//
// A plane failing to report its formats aborts the whole scan. Discovery
// from a previous scan is cleared first, so a catalog can be reused across
// sessions as long as it is scanned each time.
func (c *Catalog) Scan(dev Device, crtc uint32, forced FourCC, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	c.Reset()

	crtcs, err := dev.CRTCs()
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	crtcIndex := -1
	for i, id := range crtcs {
		if id == crtc {
			crtcIndex = i
			break
		}
	}

	planes, err := dev.Planes()
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if len(planes) > 0 {
		log.Debug("formats supported by the kernel on this card:")
	}
	for _, id := range planes {
		plane, err := dev.Plane(id)
		if err != nil || len(plane.Formats) == 0 {
			if err == nil {
				err = fmt.Errorf("plane %d reported no formats", id)
			}
			return fmt.Errorf("scan: %w", err)
		}
		if crtcIndex < 0 || plane.PossibleCRTCs&(1<<uint(crtcIndex)) == 0 {
			continue
		}

		// Diagnostics only; never affects selection.
		planeType, err := dev.PlaneType(id)
		if err != nil {
			planeType = PlaneUnknown
		}

		for i, format := range plane.Formats {
			c.record(format, plane.ID)

			if forced != 0 && c.forcedPlaneID == 0 && format == forced {
				c.forcedPlaneID = plane.ID
			}

			// The cursor plane has special limitations, so it is
			// not advertised.
			if planeType != PlaneCursor {
				log.Debug("plane format",
					zap.Uint32("plane", plane.ID),
					zap.String("type", planeType.String()),
					zap.Int("index", i),
					zap.String("format", format.String()))
			}
		}
	}
	return nil
}
