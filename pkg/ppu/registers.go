package ppu

// registers holds the canonical PPU register set plus the internal
// scroll/address state (v, t, x, w) and the control/mask-derived fields
// recomputed whenever PPUCTRL/PPUMASK are written, so the hot fetch
// pipeline never has to re-decode a raw control byte per dot.
type registers struct {
	lastWrittenByte uint8

	oamAddr uint8

	// Loopy scroll registers.
	v uint16 // current VRAM address
	t uint16 // temporary VRAM address
	x uint8  // fine X scroll, 0..7
	w uint8  // write toggle

	vramAddressIncrement uint16
	spritePatternTable   uint16
	bgPatternTable       uint16
	spriteWidth          uint16
	spriteHeight         uint16
	nmiEnabled           bool

	showBackground     bool
	showSprites        bool
	showLeftBackground bool
	showLeftSprites    bool

	vBlankStarted  bool
	sprite0Hit     bool
	spriteOverflow bool

	// Background fetch pipeline scratch.
	readBuffer      uint8
	nametableByte   uint8
	paletteSelect   uint8
	lowTileByte     uint8
	highTileByte    uint8
	tile            uint64
}

func newRegisters() *registers {
	r := &registers{}
	r.writePPUCtrl(0)
	r.writePPUMask(0)
	return r
}

func (r *registers) reset() {
	*r = registers{}
	r.writePPUCtrl(0)
	r.writePPUMask(0)
}

func (r *registers) writePPUCtrl(val uint8) {
	r.t = (r.t & 0xF3FF) | ((uint16(val) & 0x03) << 10)
	if val&0x04 != 0 {
		r.vramAddressIncrement = 32
	} else {
		r.vramAddressIncrement = 1
	}
	if val&0x08 != 0 {
		r.spritePatternTable = 0x1000
	} else {
		r.spritePatternTable = 0x0000
	}
	if val&0x10 != 0 {
		r.bgPatternTable = 0x1000
	} else {
		r.bgPatternTable = 0x0000
	}
	if val&0x20 != 0 {
		r.spriteWidth, r.spriteHeight = 8, 16
	} else {
		r.spriteWidth, r.spriteHeight = 8, 8
	}
	r.nmiEnabled = val&0x80 != 0
}

func (r *registers) writePPUMask(val uint8) {
	r.showLeftBackground = val&0x02 != 0
	r.showLeftSprites = val&0x04 != 0
	r.showBackground = val&0x08 != 0
	r.showSprites = val&0x10 != 0
}

// readPPUStatus composes PPUSTATUS from the three flag bits plus the
// low 5 bits of whatever was last written to any PPU register (the
// open-bus behavior real hardware exhibits), then clears VBlank and
// the write toggle as a read side effect.
func (r *registers) readPPUStatus() uint8 {
	var status uint8
	if r.vBlankStarted {
		status |= 0x80
	}
	if r.sprite0Hit {
		status |= 0x40
	}
	if r.spriteOverflow {
		status |= 0x20
	}
	status |= r.lastWrittenByte & 0x1F

	r.vBlankStarted = false
	r.w = 0
	return status
}

func (r *registers) writePPUScroll(val uint8) {
	if r.w == 0 {
		r.t = (r.t & 0xFFE0) | (uint16(val) >> 3)
		r.x = val & 0x07
		r.w = 1
	} else {
		r.t = (r.t & 0x8FFF) | ((uint16(val) & 0x07) << 12)
		r.t = (r.t & 0xFC1F) | ((uint16(val) & 0xF8) << 2)
		r.w = 0
	}
}

func (r *registers) writePPUAddr(val uint8) {
	if r.w == 0 {
		r.t = (r.t & 0x80FF) | ((uint16(val) & 0x3F) << 8)
		r.w = 1
	} else {
		r.t = (r.t & 0xFF00) | uint16(val)
		r.v = r.t
		r.w = 0
	}
}

// copyScrollX runs at cycle 257: the horizontal nametable bit and
// coarse X are copied from t to v.
func (r *registers) copyScrollX() {
	r.v = (r.v & 0xFBE0) | (r.t & 0x041F)
}

// copyScrollY runs on the pre-render line, cycles 280..304: the
// vertical nametable bit, coarse Y and fine Y are copied from t to v.
func (r *registers) copyScrollY() {
	r.v = (r.v & 0x841F) | (r.t & 0x7BE0)
}

// incrementScrollX is the standard loopy-v coarse X increment with
// horizontal nametable wraparound.
func (r *registers) incrementScrollX() {
	if r.v&0x001F == 31 {
		r.v &^= 0x001F
		r.v ^= 0x0400
	} else {
		r.v++
	}
}

// incrementScrollY is the standard loopy-v fine/coarse Y increment
// with vertical nametable wraparound at row 29 (the last visible row;
// rows 30-31 hold attribute data on real cartridges using the full 30
// rows, hence the special-cased wrap instead of a plain mod-32).
func (r *registers) incrementScrollY() {
	if r.v&0x7000 != 0x7000 {
		r.v += 0x1000
		return
	}
	r.v &^= 0x7000
	y := (r.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		r.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	r.v = (r.v &^ 0x03E0) | (y << 5)
}
