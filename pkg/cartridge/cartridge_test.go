package cartridge

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"

	"github.com/corenes/ppucore/pkg/bus"
)

func newTestCartridge() *Cartridge {
	prgROM := make([]uint8, 4*prgROMBankSize)
	prgRAM := make([]uint8, 0x2000)
	chrROM := make([]uint8, 8*chrBankSize)
	return New(prgROM, prgRAM, chrROM, nil, bus.Horizontal)
}

func TestPrgRomBanksAndLen(t *testing.T) {
	c := newTestCartridge()
	assert.Equal(t, 4, c.PrgRomBanks())
	assert.Equal(t, 4*prgROMBankSize, c.PrgRomLen())
}

func TestHasChrRAMAndPrgRAM(t *testing.T) {
	withRAM := New(make([]uint8, prgROMBankSize), make([]uint8, 0x2000), nil, make([]uint8, 8*chrBankSize), bus.Vertical)
	assert.True(t, withRAM.HasChrRAM())
	assert.True(t, withRAM.HasPrgRAM())

	romOnly := newTestCartridge()
	assert.False(t, romOnly.HasChrRAM())
	assert.True(t, romOnly.HasPrgRAM())
}

func TestReadPrgRomOutOfRangeReturnsZero(t *testing.T) {
	c := newTestCartridge()
	c.prgROM[0] = 0xAB
	assert.Equal(t, uint8(0xAB), c.ReadPrgRom(0))
	assert.Equal(t, uint8(0), c.ReadPrgRom(-1))
	assert.Equal(t, uint8(0), c.ReadPrgRom(len(c.prgROM)))
}

func TestWritePrgRamAbsorbsOutOfRange(t *testing.T) {
	c := newTestCartridge()
	c.WritePrgRam(0, 0x42)
	assert.Equal(t, uint8(0x42), c.ReadPrgRam(0))

	c.WritePrgRam(-1, 0xFF)
	c.WritePrgRam(len(c.prgRAM), 0xFF)
	assert.Equal(t, uint8(0), c.ReadPrgRam(len(c.prgRAM)))
}

func TestChrRomPreferredOverChrRam(t *testing.T) {
	c := newTestCartridge()
	c.chrRAM = make([]uint8, 8*chrBankSize)
	c.chrROM[5] = 0x11
	c.chrRAM[5] = 0x22
	assert.Equal(t, uint8(0x11), c.ReadChrRom(5))
}

func TestWriteChrRomNoOpWithoutChrRAM(t *testing.T) {
	c := newTestCartridge()
	before := append([]uint8(nil), c.chrROM...)
	c.WriteChrRom(3, 0x99)
	assert.Equal(t, before, c.chrROM, "CHR-RAM write to a CHR-ROM cartridge must be silently absorbed")
}

func TestWriteChrRomWritesWhenChrRAMPresent(t *testing.T) {
	c := New(make([]uint8, prgROMBankSize), nil, nil, make([]uint8, 8*chrBankSize), bus.Vertical)
	c.WriteChrRom(3, 0x55)
	assert.Equal(t, uint8(0x55), c.ReadChrRom(3))
}

func TestChrBankOutOfRangeReturnsNil(t *testing.T) {
	c := newTestCartridge()
	assert.Nil(t, c.ChrBank(-1))
	assert.Nil(t, c.ChrBank(1000))
	assert.NotNil(t, c.ChrBank(0))
	assert.Len(t, c.ChrBank(0), chrBankSize)
}

func TestMirroringModeReflectsDeclaredHint(t *testing.T) {
	c := New(make([]uint8, prgROMBankSize), nil, make([]uint8, chrBankSize), nil, bus.None)
	assert.Equal(t, bus.None, c.MirroringMode())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := newTestCartridge()
	c.WritePrgRam(10, 0x7A)
	saved := c.Save()

	c.WritePrgRam(10, 0x00)
	if err := c.Load(saved); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	reloaded := c.Save()
	if diff := deep.Equal(saved, reloaded); diff != nil {
		t.Errorf("save/load round trip not identity: %v", diff)
	}
	assert.Equal(t, uint8(0x7A), c.ReadPrgRam(10))
}

func TestLoadRejectsSizeMismatch(t *testing.T) {
	c := newTestCartridge()
	bad := SaveState{PrgRAM: make([]uint8, len(c.prgRAM)+1), ChrRAM: nil}
	err := c.Load(bad)
	assert.Error(t, err)
}
