package kmsout

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config describes one presentation session.
type Config struct {
	// Card is the DRM card index opened when Device is nil.
	Card int
	// Device, when set, is used instead of opening a card. The caller
	// keeps ownership and the Display will not close it.
	Device Device

	// CRTC is the id of the output controller frames are presented on.
	CRTC uint32

	// Width and Height are the visible size of the decoded frames.
	Width, Height uint32

	// Format is the chroma the decoder produces.
	Format FourCC

	// DecoderOverride, when set, is a four character chroma code used
	// instead of Format. An invalid code falls back to Format.
	DecoderOverride string
	// KernelOverride, when set, forces the kernel framebuffer format,
	// bypassing format discovery.
	KernelOverride string

	// Logger receives scan diagnostics and per-frame errors. Defaults
	// to a nop logger.
	Logger *zap.Logger
}

// Display is one direct-to-display presentation session. It owns the plane,
// the negotiated format and the hardware buffer ring for its whole
// lifetime. Calls are not safe for concurrent use; the driving loop calls
// Submit then Present per frame.
type Display struct {
	dev     Device
	ownsDev bool
	log     *zap.Logger

	crtc       uint32
	catalog    *Catalog
	negotiated Negotiated
	pool       *BufferPool

	front     int
	pix       Picture
	placement Rect
	crop      Rect
}

// Open scans the card's planes, negotiates a format, allocates the buffer
// ring and returns a session ready for Submit/Present. On any failure all
// partial allocations are released before the error is returned.
func Open(cfg Config) (*Display, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session", uuid.NewString()))

	requested := cfg.Format
	if cfg.DecoderOverride != "" {
		if f, err := ParseFourCC(cfg.DecoderOverride); err == nil {
			requested = f
			log.Debug("forcing decoder chroma", zap.String("chroma", f.String()))
		} else {
			log.Debug("decoder chroma invalid, using default",
				zap.String("chroma", cfg.DecoderOverride))
		}
	}

	var forced FourCC
	if cfg.KernelOverride != "" {
		if f, err := ParseFourCC(cfg.KernelOverride); err == nil {
			forced = f
			log.Debug("forcing kernel format", zap.String("format", f.String()))
		} else {
			log.Debug("kernel format invalid, using default",
				zap.String("format", cfg.KernelOverride))
		}
	}

	dev := cfg.Device
	ownsDev := false
	if dev == nil {
		var err error
		dev, err = OpenCard(cfg.Card)
		if err != nil {
			return nil, err
		}
		ownsDev = true
	}

	d := &Display{
		dev:     dev,
		ownsDev: ownsDev,
		log:     log,
		crtc:    cfg.CRTC,
		catalog: NewCatalog(),
	}

	if err := d.catalog.Scan(dev, cfg.CRTC, forced, log); err != nil {
		d.closeDev()
		return nil, err
	}

	neg, err := d.catalog.Negotiate(requested, forced)
	if err != nil {
		d.closeDev()
		return nil, err
	}
	d.negotiated = neg
	log.Debug("negotiated format",
		zap.String("decoder", neg.Decoder.String()),
		zap.String("kernel", neg.Kernel.String()),
		zap.Uint32("plane", neg.PlaneID))

	pool, err := newBufferPool(dev, neg.Kernel, cfg.Width, cfg.Height)
	if err != nil {
		d.closeDev()
		return nil, err
	}
	d.pool = pool

	d.placement = Rect{W: cfg.Width, H: cfg.Height}
	d.crop = Rect{W: cfg.Width, H: cfg.Height}
	d.repoint()
	return d, nil
}

// Format returns the decoder chroma the collaborator must produce.
func (d *Display) Format() FourCC {
	return d.negotiated.Decoder
}

// KernelFormat returns the negotiated framebuffer format.
func (d *Display) KernelFormat() FourCC {
	return d.negotiated.Kernel
}

// PlaneID returns the plane frames are presented on.
func (d *Display) PlaneID() uint32 {
	return d.negotiated.PlaneID
}

// Close releases the buffer ring and, when the Display opened the card
// itself, the card.
func (d *Display) Close() {
	if d.pool != nil {
		d.pool.Release()
		d.pool = nil
	}
	d.closeDev()
}

func (d *Display) closeDev() {
	if d.ownsDev && d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
}
