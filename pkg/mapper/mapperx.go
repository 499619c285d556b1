// Package mapper implements Mapper-X, a mid-complexity banked-ROM
// cartridge mapper with a scanline-counting interrupt source, modeled on
// the MMC3 chip found in late-1980s cartridges. It owns a Cartridge,
// decodes the CPU-visible register protocol at $8000-$FFFF, translates
// CPU PRG addresses and PPU CHR addresses through eight switchable bank
// selectors, and counts scanlines while rendering is on, raising a CPU
// IRQ when its counter reaches zero.
//
// Adding another mapper is a mechanical extension: implement the same
// ReadByte/WriteByte/MirroringMode/Step surface (spec.md §4.2) against
// bus.MapperView and a *cartridge.Cartridge.
package mapper

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/corenes/ppucore/pkg/bus"
	"github.com/corenes/ppucore/pkg/cartridge"
	"github.com/corenes/ppucore/pkg/logger"
)

// PrgBankMode selects which of the four 8 KiB PRG windows are
// switchable vs. fixed to the last two banks.
type PrgBankMode uint8

const (
	// TwoSwitchTwoFix: $8000<-R6, $A000<-R7, $C000<-(L-2), $E000<-(L-1).
	TwoSwitchTwoFix PrgBankMode = iota
	// FixTwoSwitchFix: $8000<-(L-2), $A000<-R7, $C000<-R6, $E000<-(L-1).
	FixTwoSwitchFix
)

// ChrBankMode selects which CHR registers cover the 2 KiB vs. 1 KiB
// halves of the $0000-$1FFF pattern-table window.
type ChrBankMode uint8

const (
	// Two2KFour1K: $0000-$0FFF is two 2 KiB windows (R0,R1), $1000-$1FFF
	// is four 1 KiB windows (R2..R5).
	Two2KFour1K ChrBankMode = iota
	// Four1KTwo2K: the mirror image — four 1 KiB windows at $0000-$0FFF,
	// two 2 KiB windows at $1000-$1FFF.
	Four1KTwo2K
)

// MapperX is the cartridge-side mapper described in spec.md §4.2.
type MapperX struct {
	cart *cartridge.Cartridge
	bus  *bus.Bus

	mirroringMode       bus.MirroringMode
	prgBankMode         PrgBankMode
	chrBankMode         ChrBankMode
	prgRAMEnabled       bool
	prgRAMWritesEnabled bool

	irqLatch   uint8
	irqCounter uint8
	irqEnabled bool
	irqPending bool

	bankData    [8]uint8
	currentBank uint8
}

// New constructs Mapper-X over an already-loaded Cartridge. Mirroring
// starts Vertical (matching register power-on state on real MMC3
// boards); PRG-RAM starts readable and writable.
func New(cart *cartridge.Cartridge) *MapperX {
	return &MapperX{
		cart:                cart,
		mirroringMode:       bus.Vertical,
		prgRAMEnabled:       true,
		prgRAMWritesEnabled: true,
	}
}

// Attach registers this mapper's Bus handle, used by Step to read PPU
// timing state and to raise IRQ on the CPU.
func (m *MapperX) Attach(b *bus.Bus) {
	m.bus = b
}

// ReadByte implements the CPU-side and PPU-side address-space interface
// over the cartridge (spec.md §4.2, §6).
func (m *MapperX) ReadByte(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return m.cart.ReadChrRom(m.chrAddress(addr))
	case addr >= 0x6000 && addr <= 0x7FFF:
		if m.prgRAMEnabled {
			return m.cart.ReadPrgRam(int(addr) - 0x6000)
		}
		return 0
	case addr >= 0x8000:
		return m.cart.ReadPrgRom(m.prgAddress(addr))
	default:
		return 0
	}
}

// WriteByte implements cartridge-space writes: CHR-RAM, PRG-RAM, and the
// register protocol at $8000-$FFFF.
func (m *MapperX) WriteByte(addr uint16, val uint8) {
	switch {
	case addr < 0x2000:
		m.cart.WriteChrRom(m.chrAddress(addr), val)

	case addr >= 0x6000 && addr <= 0x7FFF:
		if m.prgRAMEnabled && m.prgRAMWritesEnabled {
			m.cart.WritePrgRam(int(addr)-0x6000, val)
		}

	case addr >= 0x8000 && addr < 0xA000:
		if addr&1 == 0 {
			m.writeBankSelect(val)
		} else {
			m.writeBankData(val)
		}

	case addr >= 0xA000 && addr < 0xC000:
		if addr&1 == 0 {
			m.writeMirroring(val)
		} else {
			m.writePrgRAMProtect(val)
		}

	case addr >= 0xC000 && addr < 0xE000:
		if addr&1 == 0 {
			m.irqLatch = val
			logger.LogMapper("IRQ latch set to %d", val)
		} else {
			m.irqCounter = 0
			logger.LogMapper("IRQ reload requested")
		}

	case addr >= 0xE000:
		if addr&1 == 0 {
			m.irqEnabled = false
			logger.LogMapper("IRQ disabled")
		} else {
			m.irqEnabled = true
			logger.LogMapper("IRQ enabled")
		}
	}
}

func (m *MapperX) writeBankSelect(val uint8) {
	m.currentBank = val & 0x07
	if val&0x40 == 0 {
		m.prgBankMode = TwoSwitchTwoFix
	} else {
		m.prgBankMode = FixTwoSwitchFix
	}
	if val&0x80 == 0 {
		m.chrBankMode = Two2KFour1K
	} else {
		m.chrBankMode = Four1KTwo2K
	}
}

func (m *MapperX) writeBankData(val uint8) {
	m.bankData[m.currentBank] = val
}

func (m *MapperX) writeMirroring(val uint8) {
	if m.cart.MirroringMode() == bus.None {
		return
	}
	if val&0x01 == 0 {
		m.mirroringMode = bus.Vertical
	} else {
		m.mirroringMode = bus.Horizontal
	}
}

func (m *MapperX) writePrgRAMProtect(val uint8) {
	m.prgRAMEnabled = val&0x80 != 0
	m.prgRAMWritesEnabled = val&0x40 == 0
}

// chrAddress translates a $0000-$1FFF PPU address through the current
// CHR bank mode and registers into a byte offset in the cartridge's CHR
// store (spec.md §4.2 address translation table). bank_data[0] and
// bank_data[1]'s low bit is forced to zero here, at use-time — raw
// register writes are never altered at store-time.
func (m *MapperX) chrAddress(addr uint16) int {
	a := int(addr)
	switch m.chrBankMode {
	case Two2KFour1K:
		switch {
		case a < 0x0800:
			return int(m.bankData[0]&^1)*0x400 + a
		case a < 0x1000:
			return int(m.bankData[1]&^1)*0x400 + (a - 0x0800)
		case a < 0x1400:
			return int(m.bankData[2])*0x400 + (a - 0x1000)
		case a < 0x1800:
			return int(m.bankData[3])*0x400 + (a - 0x1400)
		case a < 0x1C00:
			return int(m.bankData[4])*0x400 + (a - 0x1800)
		default:
			return int(m.bankData[5])*0x400 + (a - 0x1C00)
		}
	default: // Four1KTwo2K
		switch {
		case a < 0x0400:
			return int(m.bankData[2])*0x400 + a
		case a < 0x0800:
			return int(m.bankData[3])*0x400 + (a - 0x0400)
		case a < 0x0C00:
			return int(m.bankData[4])*0x400 + (a - 0x0800)
		case a < 0x1000:
			return int(m.bankData[5])*0x400 + (a - 0x0C00)
		case a < 0x1800:
			return int(m.bankData[0]&^1)*0x400 + (a - 0x1000)
		default:
			return int(m.bankData[1]&^1)*0x400 + (a - 0x1800)
		}
	}
}

// prgAddress translates an $8000-$FFFF CPU address through the current
// PRG bank mode into a byte offset in PRG-ROM (spec.md §4.2).
func (m *MapperX) prgAddress(addr uint16) int {
	l := m.cart.PrgRomBanks()
	a := int(addr)
	switch m.prgBankMode {
	case TwoSwitchTwoFix:
		switch {
		case a < 0xA000:
			return int(m.bankData[6])*0x2000 + (a - 0x8000)
		case a < 0xC000:
			return int(m.bankData[7])*0x2000 + (a - 0xA000)
		case a < 0xE000:
			return (l-2)*0x2000 + (a - 0xC000)
		default:
			return (l-1)*0x2000 + (a - 0xE000)
		}
	default: // FixTwoSwitchFix
		switch {
		case a < 0xA000:
			return (l-2)*0x2000 + (a - 0x8000)
		case a < 0xC000:
			return int(m.bankData[7])*0x2000 + (a - 0xA000)
		case a < 0xE000:
			return int(m.bankData[6])*0x2000 + (a - 0xC000)
		default:
			return (l-1)*0x2000 + (a - 0xE000)
		}
	}
}

// MirroringMode returns the register-driven mirroring mode, or
// bus.None if the cartridge declares four-screen nametable RAM — that
// declaration is sticky and overrides any register write (spec.md §3,
// §4.2).
func (m *MapperX) MirroringMode() bus.MirroringMode {
	if m.cart.MirroringMode() == bus.None {
		return bus.None
	}
	return m.mirroringMode
}

// ChrBank returns a view into one of the eight 1 KiB CHR slots the
// mapper currently exposes at $0000-$1FFF, used by debug/overlay
// renderers. index must be in [0, 8); anything else is a host bug
// (spec.md §7).
func (m *MapperX) ChrBank(index int) []uint8 {
	if index < 0 || index >= 8 {
		panic("mapper: chr_bank index out of range")
	}
	var bankNumber uint8
	switch m.chrBankMode {
	case Two2KFour1K:
		switch index {
		case 0:
			bankNumber = m.bankData[0] &^ 1
		case 1:
			bankNumber = m.bankData[0] | 1
		case 2:
			bankNumber = m.bankData[1] &^ 1
		case 3:
			bankNumber = m.bankData[1] | 1
		case 4:
			bankNumber = m.bankData[2]
		case 5:
			bankNumber = m.bankData[3]
		case 6:
			bankNumber = m.bankData[4]
		case 7:
			bankNumber = m.bankData[5]
		}
	default: // Four1KTwo2K
		switch index {
		case 0:
			bankNumber = m.bankData[2]
		case 1:
			bankNumber = m.bankData[3]
		case 2:
			bankNumber = m.bankData[4]
		case 3:
			bankNumber = m.bankData[5]
		case 4:
			bankNumber = m.bankData[0] &^ 1
		case 5:
			bankNumber = m.bankData[0] | 1
		case 6:
			bankNumber = m.bankData[1] &^ 1
		case 7:
			bankNumber = m.bankData[1] | 1
		}
	}
	return m.cart.ChrBank(int(bankNumber))
}

// Step advances the scanline IRQ counter by one PPU dot. The counter
// only moves on PPU cycle 260 of a visible scanline while rendering is
// enabled — an approximation of the real chip's A12-edge detection tied
// to a PPU cycle known to coincide with A12 rising during active
// rendering (spec.md §4.2, §9).
func (m *MapperX) Step() {
	ppu := m.bus.Ppu()
	if ppu.Cycle() != 260 || ppu.Scanline() >= 240 || !ppu.RenderingEnabled() {
		return
	}

	if m.irqCounter == 0 {
		m.irqCounter = m.irqLatch
	} else {
		m.irqCounter--
		if m.irqCounter == 0 && m.irqEnabled {
			m.irqPending = true
			logger.LogMapper("IRQ triggered, reload=%d", m.irqLatch)
		}
	}
}

// IsIRQPending reports whether a scanline IRQ is waiting for the CPU to
// acknowledge it.
func (m *MapperX) IsIRQPending() bool {
	return m.irqPending
}

// RaiseIfPending delivers a pending IRQ to the CPU via the bus and
// clears it. The host runner calls this once per dot after Step; it is
// kept distinct from Step so the IRQ line's delivery timing (next CPU
// instruction boundary, spec.md §5) stays the host's decision, not
// this mapper's.
func (m *MapperX) RaiseIfPending() {
	if m.irqPending {
		m.bus.Cpu().Raise(bus.IRQ)
		m.irqPending = false
	}
}

// ClearIRQ clears a pending IRQ without delivering it, e.g. after the
// host runner has already acted on it.
func (m *MapperX) ClearIRQ() {
	m.irqPending = false
}

// state is the gob-serializable snapshot of every register field.
type state struct {
	MirroringMode       bus.MirroringMode
	PrgBankMode         PrgBankMode
	ChrBankMode         ChrBankMode
	PrgRAMEnabled       bool
	PrgRAMWritesEnabled bool
	IrqLatch            uint8
	IrqCounter          uint8
	IrqEnabled          bool
	IrqPending          bool
	BankData            [8]uint8
	CurrentBank         uint8
}

// SaveState serializes every register field plus cartridge RAM into an
// opaque blob (spec.md §4.2, §8 property 6). No pack library offers a
// serialization format for this shape (see DESIGN.md); encoding/gob is
// the standard-library fallback, applied only to this persistence
// boundary.
func (m *MapperX) SaveState() ([]byte, error) {
	s := state{
		MirroringMode:       m.mirroringMode,
		PrgBankMode:         m.prgBankMode,
		ChrBankMode:         m.chrBankMode,
		PrgRAMEnabled:       m.prgRAMEnabled,
		PrgRAMWritesEnabled: m.prgRAMWritesEnabled,
		IrqLatch:            m.irqLatch,
		IrqCounter:          m.irqCounter,
		IrqEnabled:          m.irqEnabled,
		IrqPending:          m.irqPending,
		BankData:            m.bankData,
		CurrentBank:         m.currentBank,
	}

	var regBuf bytes.Buffer
	if err := gob.NewEncoder(&regBuf).Encode(s); err != nil {
		return nil, fmt.Errorf("mapper: encode register state: %w", err)
	}

	cartState := m.cart.Save()
	var cartBuf bytes.Buffer
	if err := gob.NewEncoder(&cartBuf).Encode(cartState); err != nil {
		return nil, fmt.Errorf("mapper: encode cartridge state: %w", err)
	}

	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode([][]byte{regBuf.Bytes(), cartBuf.Bytes()}); err != nil {
		return nil, fmt.Errorf("mapper: encode envelope: %w", err)
	}
	return out.Bytes(), nil
}

// LoadState restores mapper registers and cartridge RAM from a blob
// produced by SaveState. Deserialization failure is reported to the
// caller with no partial application: either every field is replaced,
// or none are (spec.md §7).
func (m *MapperX) LoadState(data []byte) error {
	var parts [][]byte
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&parts); err != nil {
		return fmt.Errorf("mapper: decode envelope: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("mapper: malformed save state envelope")
	}

	var s state
	if err := gob.NewDecoder(bytes.NewReader(parts[0])).Decode(&s); err != nil {
		return fmt.Errorf("mapper: decode register state: %w", err)
	}

	var cartState cartridge.SaveState
	if err := gob.NewDecoder(bytes.NewReader(parts[1])).Decode(&cartState); err != nil {
		return fmt.Errorf("mapper: decode cartridge state: %w", err)
	}
	if err := m.cart.Load(cartState); err != nil {
		return fmt.Errorf("mapper: apply cartridge state: %w", err)
	}

	m.mirroringMode = s.MirroringMode
	m.prgBankMode = s.PrgBankMode
	m.chrBankMode = s.ChrBankMode
	m.prgRAMEnabled = s.PrgRAMEnabled
	m.prgRAMWritesEnabled = s.PrgRAMWritesEnabled
	m.irqLatch = s.IrqLatch
	m.irqCounter = s.IrqCounter
	m.irqEnabled = s.IrqEnabled
	m.irqPending = s.IrqPending
	m.bankData = s.BankData
	m.currentBank = s.CurrentBank
	return nil
}
