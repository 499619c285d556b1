package ppu

// colors is the fixed 64-entry NES master color table, packed as
// 0x00RRGGBB. Values are taken from the reference palette this core's
// lineage carries (http://www.thealmightyguru.com/Games/Hacking/Wiki/index.php/NES_Palette).
var colors = [64]uint32{
	0x7C7C7C, 0x0000FC, 0x0000BC, 0x4428BC, 0x940084, 0xA80020, 0xA81000, 0x881400,
	0x503000, 0x007800, 0x006800, 0x005800, 0x004058, 0x000000, 0x000000, 0x000000,
	0xBCBCBC, 0x0078F8, 0x0058F8, 0x6844FC, 0xD800CC, 0xE40058, 0xF83800, 0xE45C10,
	0xAC7C00, 0x00B800, 0x00A800, 0x00A844, 0x008888, 0x000000, 0x000000, 0x000000,
	0xF8F8F8, 0x3CBCFC, 0x6888FC, 0x9878F8, 0xF878F8, 0xF85898, 0xF87858, 0xFCA044,
	0xF8B800, 0xB8F818, 0x58D854, 0x58F898, 0x00E8D8, 0x787878, 0x000000, 0x000000,
	0xFCFCFC, 0xA4E4FC, 0xB8B8F8, 0xD8B8F8, 0xF8B8F8, 0xF8A4C0, 0xF0D0B0, 0xFCE0A8,
	0xF8D878, 0xD8F878, 0xB8F8B8, 0xB8F8D8, 0x00FCFC, 0xF8D8F8, 0x000000, 0x000000,
}

// readPalette implements the palette RAM fourth-entry mirroring rule:
// entries aligned to 4 (the universal-backdrop slot of each of the 8
// palettes) fold through a mod-0x10 rather than mod-0x20, since the
// four "backdrop" bytes at $3F10/$14/$18/$1C alias the background
// palette's own backdrop at $3F00/$04/$08/$0C.
func (p *PPU) readPalette(addr uint16) uint8 {
	var modulus uint16 = 0x20
	if addr%4 == 0 {
		modulus = 0x10
	}
	return p.paletteRAM[addr%modulus]
}

func (p *PPU) writePalette(addr uint16, val uint8) {
	var modulus uint16 = 0x20
	if addr%4 == 0 {
		modulus = 0x10
	}
	p.paletteRAM[addr%modulus] = val
}
