// Package cartridge is the opaque backing store for PRG-ROM, PRG-RAM and
// CHR-ROM/RAM. It does not parse ROM files — iNES/NES2.0 header parsing
// is a host-runner concern outside this core's scope (spec.md §1). A
// Cartridge is constructed already holding its byte slices, as if
// unpacked by the host loader.
package cartridge

import (
	"fmt"

	"github.com/corenes/ppucore/pkg/bus"
)

const (
	prgROMBankSize = 8192
	chrBankSize    = 1024
)

// Cartridge holds the three byte arrays backing a loaded game plus the
// declared mirroring hint. PRGROM is immutable for the session; PRGRAM
// and CHR are mutated only through the Write* methods.
type Cartridge struct {
	prgROM []uint8
	prgRAM []uint8
	chrROM []uint8
	chrRAM []uint8

	mirroring bus.MirroringMode
}

// New constructs a Cartridge. Exactly one of chrROM/chrRAM should be
// non-empty; chrRAM being non-empty marks the cartridge as CHR-RAM
// equipped (WriteChrRom becomes effective).
func New(prgROM, prgRAM, chrROM, chrRAM []uint8, mirroring bus.MirroringMode) *Cartridge {
	return &Cartridge{
		prgROM:    prgROM,
		prgRAM:    prgRAM,
		chrROM:    chrROM,
		chrRAM:    chrRAM,
		mirroring: mirroring,
	}
}

// PrgRomBanks returns the number of 8 KiB PRG-ROM banks.
func (c *Cartridge) PrgRomBanks() int {
	return len(c.prgROM) / prgROMBankSize
}

// PrgRomLen returns the size of PRG-ROM in bytes.
func (c *Cartridge) PrgRomLen() int {
	return len(c.prgROM)
}

// HasChrRAM reports whether this cartridge's CHR space is writable RAM
// rather than fixed ROM.
func (c *Cartridge) HasChrRAM() bool {
	return len(c.chrRAM) > 0
}

// HasPrgRAM reports whether the cartridge carries any PRG-RAM at all.
func (c *Cartridge) HasPrgRAM() bool {
	return len(c.prgRAM) > 0
}

// MirroringMode returns the cartridge-declared mirroring hint. Mapper-X
// treats bus.None as sticky: a four-screen cartridge can never be put
// into register-driven horizontal/vertical mirroring.
func (c *Cartridge) MirroringMode() bus.MirroringMode {
	return c.mirroring
}

// ReadPrgRom reads a byte at a byte offset already translated by the
// mapper's bank logic. Out-of-range offsets return 0, matching hardware
// tolerance for malformed accesses (spec.md §7).
func (c *Cartridge) ReadPrgRom(off int) uint8 {
	if off < 0 || off >= len(c.prgROM) {
		return 0
	}
	return c.prgROM[off]
}

// ReadPrgRam reads a byte of battery/work RAM at the given offset.
func (c *Cartridge) ReadPrgRam(off int) uint8 {
	if off < 0 || off >= len(c.prgRAM) {
		return 0
	}
	return c.prgRAM[off]
}

// WritePrgRam writes a byte of battery/work RAM. Silently absorbed if
// the cartridge has no PRG-RAM or the offset is out of range.
func (c *Cartridge) WritePrgRam(off int, val uint8) {
	if off < 0 || off >= len(c.prgRAM) {
		return
	}
	c.prgRAM[off] = val
}

// ReadChrRom reads a byte of pattern data, from CHR-ROM if present,
// otherwise CHR-RAM.
func (c *Cartridge) ReadChrRom(off int) uint8 {
	if len(c.chrROM) > 0 {
		if off < 0 || off >= len(c.chrROM) {
			return 0
		}
		return c.chrROM[off]
	}
	if off < 0 || off >= len(c.chrRAM) {
		return 0
	}
	return c.chrRAM[off]
}

// WriteChrRom writes a byte of CHR-RAM. A no-op when the cartridge
// declares CHR-ROM — routing a CHR-RAM write to a CHR-ROM cartridge is
// simulated-program behavior hardware silently ignores, not a host bug
// (spec.md §9 Open Questions flags this as implicit in prior art; this
// core makes it an explicit branch).
func (c *Cartridge) WriteChrRom(off int, val uint8) {
	if len(c.chrRAM) == 0 {
		return
	}
	if off < 0 || off >= len(c.chrRAM) {
		return
	}
	c.chrRAM[off] = val
}

// ChrBank returns a view (sharing the backing store, not a copy) into
// the 1 KiB CHR window starting at
// raw bank number index (not restricted to the 8 windows a mapper
// exposes to the CPU/PPU at once — this indexes the whole backing
// store). An out-of-range index returns nil; the caller decides whether
// that is a bug worth panicking over. Mapper-X's own ChrBank wraps this
// with the 0..8 range invariant from spec.md §7.
func (c *Cartridge) ChrBank(index int) []uint8 {
	if index < 0 {
		return nil
	}
	off := index * chrBankSize
	src := c.chrROM
	if len(src) == 0 {
		src = c.chrRAM
	}
	if off+chrBankSize > len(src) {
		return nil
	}
	return src[off : off+chrBankSize]
}

// SaveState is the opaque, deterministically round-trippable persisted
// form of this cartridge's mutable RAM (spec.md §6, §8 property 6).
type SaveState struct {
	PrgRAM []uint8
	ChrRAM []uint8
}

// Save captures PRG-RAM and CHR-RAM (if any) into a SaveState.
func (c *Cartridge) Save() SaveState {
	return SaveState{
		PrgRAM: append([]uint8(nil), c.prgRAM...),
		ChrRAM: append([]uint8(nil), c.chrRAM...),
	}
}

// Load restores PRG-RAM and CHR-RAM from a previously captured
// SaveState. Sizes must match what this cartridge was constructed
// with; a mismatch is a caller error reported back rather than
// partially applied (spec.md §7).
func (c *Cartridge) Load(s SaveState) error {
	if len(s.PrgRAM) != len(c.prgRAM) {
		return errSizeMismatch("PRG-RAM", len(c.prgRAM), len(s.PrgRAM))
	}
	if len(s.ChrRAM) != len(c.chrRAM) {
		return errSizeMismatch("CHR-RAM", len(c.chrRAM), len(s.ChrRAM))
	}
	copy(c.prgRAM, s.PrgRAM)
	copy(c.chrRAM, s.ChrRAM)
	return nil
}

func errSizeMismatch(what string, want, got int) error {
	return fmt.Errorf("cartridge: %s size mismatch: want %d, got %d", what, want, got)
}
