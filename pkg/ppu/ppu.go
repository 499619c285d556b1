// Package ppu implements the picture processing unit: a 341x262
// dot/scanline state machine driving two overlapping fetch pipelines
// (background, sprite), per-pixel composition, and VBlank/NMI timing.
// It consumes only the bus.MapperView and bus.Cpu surfaces — it never
// imports pkg/mapper directly, so pkg/ppu and pkg/mapper stay on
// opposite sides of the package graph with bus as the only thing
// between them.
package ppu

import (
	"github.com/corenes/ppucore/pkg/bus"
	"github.com/corenes/ppucore/pkg/logger"
)

const (
	screenWidth  = 256
	screenHeight = 240
)

// PPU is the picture processing unit core.
type PPU struct {
	r *registers

	cycle    int
	scanline int
	frame    uint64

	bufferIndex int
	buffer      [screenWidth * screenHeight * 4]uint8

	primaryOAM   [256]uint8
	secondaryOAM [32]uint8
	isSprite0    [8]bool

	vram       [0x2000]uint8
	paletteRAM [32]uint8

	bus *bus.Bus
}

// New constructs a PPU with its registers in their power-on state (as
// if PPUCTRL and PPUMASK were written with 0) and palette RAM left
// zeroed; callers needing the conventional debug palette should seed
// it through WriteByte before first use.
func New() *PPU {
	return &PPU{r: newRegisters()}
}

// Attach registers this PPU's Bus handle, used to reach Mapper-X for
// pattern-table/mirroring lookups and the CPU for NMI delivery.
func (p *PPU) Attach(b *bus.Bus) {
	p.bus = b
}

// Reset restores register state and timing to power-on values.
func (p *PPU) Reset() {
	p.r.reset()
	p.cycle = 0
	p.scanline = 0
	p.frame = 0
	p.bufferIndex = 0
}

// Cycle, Scanline and RenderingEnabled satisfy bus.PpuView for
// Mapper-X's scanline IRQ counter.
func (p *PPU) Cycle() int    { return p.cycle }
func (p *PPU) Scanline() int { return p.scanline }
func (p *PPU) RenderingEnabled() bool {
	return p.r.showBackground || p.r.showSprites
}

// FrameBuffer returns the current RGBA frame, 256x240x4 bytes,
// written left-to-right top-to-bottom.
func (p *PPU) FrameBuffer() []uint8 {
	return p.buffer[:]
}

// FrameCount returns how many frames have completed since the last
// Reset.
func (p *PPU) FrameCount() uint64 {
	return p.frame
}

// ReadByte reads the PPU's own 14-bit address space: pattern tables
// route to the mapper, nametables route through VRAM mirroring,
// palette hits palette RAM with its fourth-entry fold. Any address
// outside 0x0000-0x3FFF is a host bug (spec §7's exhaustive-dispatch
// invariant).
func (p *PPU) ReadByte(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return p.bus.Mapper().ReadByte(addr)
	case addr < 0x3F00:
		return p.vram[p.nametableOffset(addr)]
	case addr < 0x4000:
		return p.readPalette(addr - 0x3F00)
	default:
		panic("ppu: invalid memory address")
	}
}

// WriteByte is the write-side counterpart of ReadByte.
func (p *PPU) WriteByte(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		p.bus.Mapper().WriteByte(addr, val)
	case addr < 0x3F00:
		p.vram[p.nametableOffset(addr)] = val
	case addr < 0x4000:
		p.writePalette(addr-0x3F00, val)
	default:
		panic("ppu: invalid memory address")
	}
}

// nametableOffset folds a 0x2000-0x3EFF address through the current
// mirroring mode into a byte offset in the VRAM array (four 1 KiB
// slots are addressable, for four-screen mirroring).
func (p *PPU) nametableOffset(addr uint16) int {
	rel := (addr - 0x2000) % 0x1000
	index := rel / 0x400
	offset := rel % 0x400
	mode := p.bus.Mapper().MirroringMode()
	slot := bus.MirroringTable[mode][index]
	return slot*0x400 + int(offset)
}

// ReadRegister implements the CPU-visible 0x2000-0x2007 window. Any
// other address is a host bug: the window is exhaustive (spec §7).
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr {
	case 0x2000, 0x2001, 0x2003, 0x2005, 0x2006:
		return p.r.lastWrittenByte
	case 0x2002:
		return p.r.readPPUStatus()
	case 0x2004:
		return p.primaryOAM[p.r.oamAddr]
	case 0x2007:
		val := p.ReadByte(p.r.v)
		if p.r.v < 0x3F00 {
			val, p.r.readBuffer = p.r.readBuffer, val
		} else {
			p.r.readBuffer = p.ReadByte(p.r.v - 0x1000)
		}
		p.r.v += p.r.vramAddressIncrement
		return val
	default:
		panic("ppu: invalid register read address")
	}
}

// WriteRegister implements the CPU-visible register writes.
func (p *PPU) WriteRegister(addr uint16, val uint8) {
	p.r.lastWrittenByte = val
	switch addr {
	case 0x2000:
		p.r.writePPUCtrl(val)
	case 0x2001:
		p.r.writePPUMask(val)
	case 0x2002:
		// read-only
	case 0x2003:
		p.r.oamAddr = val
	case 0x2004:
		p.primaryOAM[p.r.oamAddr] = val
		p.r.oamAddr++
	case 0x2005:
		p.r.writePPUScroll(val)
	case 0x2006:
		p.r.writePPUAddr(val)
	case 0x2007:
		p.WriteByte(p.r.v, val)
		p.r.v += p.r.vramAddressIncrement
	default:
		panic("ppu: invalid register write address")
	}
}

// Step advances the PPU by one dot, running the background fetch
// pipeline, the batched sprite evaluator, pixel emission and the
// VBlank/NMI edge.
func (p *PPU) Step() {
	p.cycle++
	if p.cycle == 341 {
		p.cycle = 0
		p.scanline++
		if p.scanline == 262 {
			p.scanline = 0
			p.frame++
			p.bufferIndex = 0
		}
	}

	visibleScanline := p.scanline <= 239
	visibleCycle := p.cycle >= 1 && p.cycle <= 256
	prefetchCycle := p.cycle >= 321 && p.cycle <= 336

	if visibleScanline || p.scanline == 261 {
		if visibleScanline && visibleCycle {
			p.drawPixel()
		}

		if p.scanline == 261 && p.cycle >= 280 && p.cycle <= 304 {
			p.r.copyScrollY()
		}
		if p.cycle == 257 {
			p.r.copyScrollX()
		}

		if visibleCycle || prefetchCycle {
			p.r.tile <<= 4
			switch p.cycle & 0x07 {
			case 1:
				p.fetchNametableByte()
			case 3:
				p.fetchAttributeTableByte()
			case 5:
				p.fetchTileByte(false)
			case 7:
				p.fetchTileByte(true)
			case 0:
				p.loadTile()
				if p.cycle == 256 {
					p.r.incrementScrollY()
				} else {
					p.r.incrementScrollX()
				}
			}
		}

		if p.cycle == 257 {
			p.evaluateSprites()
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.r.vBlankStarted = true
		if p.r.nmiEnabled {
			logger.LogPPU("VBlank NMI raised at frame %d", p.frame)
			p.bus.Cpu().Raise(bus.NMI)
		}
	}

	if p.scanline == 261 && p.cycle == 1 {
		p.r.vBlankStarted = false
		p.r.sprite0Hit = false
		p.r.spriteOverflow = false
	}
}

func (p *PPU) fetchNametableByte() {
	addr := 0x2000 | (p.r.v & 0x0FFF)
	p.r.nametableByte = p.ReadByte(addr)
}

// fetchAttributeTableByte uses the canonical offset derivation rather
// than an abbreviated shortcut: 0x23C0 | (v & 0x0C00) | ((v>>4)&0x38) |
// ((v>>2)&0x07).
func (p *PPU) fetchAttributeTableByte() {
	addr := 0x23C0 | (p.r.v & 0x0C00) | ((p.r.v >> 4) & 0x38) | ((p.r.v >> 2) & 0x07)
	attributeByte := p.ReadByte(addr)
	offset := (p.r.v & 0x02) | ((p.r.v & 0x40) >> 4)
	p.r.paletteSelect = (attributeByte >> offset) & 0x03
}

func (p *PPU) fetchTileByte(high bool) {
	fineY := (p.r.v >> 12) & 0x07
	tileOffset := uint16(p.r.nametableByte) * 16
	addr := p.r.bgPatternTable + tileOffset + fineY
	if high {
		p.r.highTileByte = p.ReadByte(addr + 8)
	} else {
		p.r.lowTileByte = p.ReadByte(addr)
	}
}

// loadTile shifts eight pre-decoded (palette|color) nibbles into the
// tile shift register's low 32 bits, consuming lowTileByte/highTileByte
// one bit at a time.
func (p *PPU) loadTile() {
	var currTile uint64
	for i := 0; i < 8; i++ {
		color := ((p.r.highTileByte >> 6) & 0x02) | ((p.r.lowTileByte >> 7) & 0x01)
		p.r.highTileByte <<= 1
		p.r.lowTileByte <<= 1
		currTile <<= 4
		currTile |= (uint64(p.r.paletteSelect) << 2) | uint64(color)
	}
	p.r.tile |= currTile
}

func (p *PPU) computeBackgroundPixel() uint16 {
	x := uint8(p.cycle - 1)
	if (x < 8 && !p.r.showLeftBackground) || !p.r.showBackground {
		return 0
	}
	return uint16((p.r.tile >> 32 >> ((7 - uint64(p.r.x)) * 4)) & 0x0F)
}

// computeSpritePixel scans secondary OAM slots in priority order. A
// slot is inactive when all four of its bytes are the post-clear 0xFF
// sentinel — checked on the raw bytes, not the +1-adjusted Y, since
// adding 1 to a 0xFF Y wraps to 0 and would otherwise mask the
// sentinel.
func (p *PPU) computeSpritePixel() (uint16, bool, bool) {
	y := p.scanline
	x := p.cycle - 1

	if (x < 8 && !p.r.showLeftSprites) || !p.r.showSprites {
		return 0, false, false
	}

	for i := 0; i < 8; i++ {
		rawY := p.secondaryOAM[i*4]
		rawTile := p.secondaryOAM[i*4+1]
		rawAttr := p.secondaryOAM[i*4+2]
		rawX := p.secondaryOAM[i*4+3]
		if rawY&rawTile&rawAttr&rawX == 0xFF {
			break
		}

		spriteY := int(rawY) + 1
		spriteX := int(rawX)
		tileIndex := rawTile
		attributes := rawAttr

		if x < spriteX || x > spriteX+7 {
			continue
		}
		if spriteY < 1 || spriteY > 239 {
			continue
		}

		py := y - spriteY
		px := 7 - (x - spriteX)
		patternTable := p.r.spritePatternTable

		if attributes&0x40 != 0 {
			px = int(p.r.spriteWidth) - 1 - px
		}
		if attributes&0x80 != 0 {
			py = int(p.r.spriteHeight) - 1 - py
		}

		if p.r.spriteHeight == 16 {
			patternTable = uint16(tileIndex&0x01) * 0x1000
			tileIndex &= 0xFE
			if py >= 8 {
				py -= 8
				tileIndex++
			}
		}

		addr := patternTable + uint16(tileIndex)*16 + uint16(py)
		lowBit := (p.ReadByte(addr) >> uint(px)) & 0x01
		highBit := (p.ReadByte(addr+8) >> uint(px)) & 0x01
		palette := attributes & 0x03
		color := lowBit | (highBit << 1)

		if color == 0 {
			continue
		}

		return uint16(palette)<<2 | uint16(color), attributes&0x20 != 0, p.isSprite0[i]
	}

	return 0, false, false
}

func (p *PPU) drawPixel() {
	bgPixel := p.computeBackgroundPixel()
	spPixel, spritePriority, isSprite0 := p.computeSpritePixel()

	backgroundOn := bgPixel&0x03 != 0
	spriteOn := spPixel&0x03 != 0

	var addr uint16
	switch {
	case !backgroundOn && !spriteOn:
		addr = 0x3F00
	case !backgroundOn && spriteOn:
		addr = 0x3F10 + spPixel
	case backgroundOn && !spriteOn:
		addr = 0x3F00 + bgPixel
	default:
		if p.cycle < 256 && isSprite0 {
			p.r.sprite0Hit = true
		}
		if !spritePriority {
			addr = 0x3F10 + spPixel
		} else {
			addr = 0x3F00 + bgPixel
		}
	}

	color := colors[p.ReadByte(addr)&0x3F]
	idx := p.bufferIndex
	p.buffer[idx] = uint8(color >> 16)
	p.buffer[idx+1] = uint8(color >> 8)
	p.buffer[idx+2] = uint8(color)
	p.buffer[idx+3] = 0xFF
	p.bufferIndex += 4
}

// evaluateSprites runs the batched per-scanline sprite evaluator at
// cycle 257: clear secondary OAM, scan primary OAM in index order, and
// copy up to 8 qualifying sprites. This approximates the hardware's
// dot-exact OAM read/write micro-program (spec §4.1, §9) — correctness
// holds for any game that reads results only during/after rendering.
func (p *PPU) evaluateSprites() {
	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}

	secondaryIndex := 0
	for i := 0; i < 64; i++ {
		y := int(p.primaryOAM[i*4]) + 1
		lo := y
		hi := y + int(p.r.spriteHeight) - 1
		curr := p.scanline + 1

		if curr < lo || curr > hi || y >= 241 {
			continue
		}

		if secondaryIndex < 32 {
			copy(p.secondaryOAM[secondaryIndex:secondaryIndex+4], p.primaryOAM[i*4:i*4+4])
			p.isSprite0[secondaryIndex/4] = i == 0
			secondaryIndex += 4
		} else if p.r.showSprites || p.r.showBackground {
			p.r.spriteOverflow = true
		}
	}
}
