// Command coredemo wires Bus, Cartridge, Mapper-X and PPU together and
// steps them in lockstep, dot for dot, for a handful of frames. It
// stands in for a real 6502 core (out of scope for this module) with a
// stub that only counts interrupt signals, so the cycle-accurate
// pieces this core actually owns can be exercised end-to-end without a
// CPU implementation. A host driving an actual CPU would additionally
// step it at the documented 3:1 PPU:CPU cadence (spec §5).
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/corenes/ppucore/pkg/bus"
	"github.com/corenes/ppucore/pkg/cartridge"
	"github.com/corenes/ppucore/pkg/logger"
	"github.com/corenes/ppucore/pkg/mapper"
	"github.com/corenes/ppucore/pkg/ppu"
)

// stubCpu stands in for the out-of-scope 6502 core: it only records
// interrupt requests so the demo can report when NMI/IRQ fired.
type stubCpu struct {
	nmiCount int
	irqCount int
}

func (c *stubCpu) Raise(i bus.Interrupt) {
	switch i {
	case bus.NMI:
		c.nmiCount++
	case bus.IRQ:
		c.irqCount++
	}
}

func main() {
	frames := flag.Int("frames", 2, "number of PPU frames to run")
	verbose := flag.Bool("v", false, "enable PPU/mapper trace logging")
	flag.Parse()

	level := logger.LogLevelInfo
	if *verbose {
		level = logger.LogLevelTrace
	}
	if err := logger.Initialize(level, ""); err != nil {
		log.Fatalf("coredemo: initialize logger: %v", err)
	}
	defer logger.Close()
	logger.SetPPULogging(*verbose)
	logger.SetMapperLogging(*verbose)

	// A minimal synthetic cartridge: 32 KiB PRG-ROM (four banks), 8 KiB
	// PRG-RAM, 8 KiB CHR-ROM. Real ROM parsing is out of this core's
	// scope; the host loader is responsible for handing over byte
	// slices like these.
	cart := cartridge.New(
		make([]uint8, 4*8192),
		make([]uint8, 8192),
		make([]uint8, 8192),
		nil,
		bus.Vertical,
	)

	mapperX := mapper.New(cart)
	picture := ppu.New()
	cpu := &stubCpu{}

	b := bus.New()
	b.AttachCpu(cpu)
	b.AttachMapper(mapperX)
	b.AttachPpu(picture)
	mapperX.Attach(b)
	picture.Attach(b)

	picture.Reset()
	picture.WriteRegister(0x2000, 0x80) // enable NMI at VBlank
	picture.WriteRegister(0x2001, 0x18) // show background + sprites

	startFrame := uint64(0)
	ppuDots := 0
	for frame := 0; frame < *frames; frame++ {
		for picture.FrameCount() == startFrame {
			picture.Step()
			mapperX.Step()
			mapperX.RaiseIfPending()
			ppuDots++
		}
		startFrame = picture.FrameCount()
	}

	fmt.Printf("ran %d PPU dots across %d frame(s)\n", ppuDots, *frames)
	fmt.Printf("NMI count: %d, IRQ count: %d\n", cpu.nmiCount, cpu.irqCount)
}
