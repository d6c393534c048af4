// Package gameboy wires the components of a Game Boy together and
// runs them.
package gameboy

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/thelolagemann/tickboy/internal/cartridge"
	"github.com/thelolagemann/tickboy/internal/clock"
	"github.com/thelolagemann/tickboy/internal/cpu"
	"github.com/thelolagemann/tickboy/internal/mmu"
	"github.com/thelolagemann/tickboy/internal/serial"
	"github.com/thelolagemann/tickboy/pkg/emu"
	"github.com/thelolagemann/tickboy/pkg/log"
	"golang.org/x/sync/errgroup"
)

// DefaultStallTimeout is how long the clock waits for a tick to be
// acknowledged before reporting the emulation as stalled.
const DefaultStallTimeout = 5 * time.Second

// GameBoy represents a Game Boy. It contains all the components of the Game Boy.
// It is the main entry point for the emulator.
type GameBoy struct {
	CPU       *cpu.CPU
	MMU       *mmu.MMU
	Clock     *clock.Clock
	Serial    *serial.Controller
	Cartridge cartridge.Cartridge

	log.Logger

	debug         bool
	workRAM       bool
	serialOut     io.Writer
	saveFile      string
	save          *emu.Save
	stallTimeout  time.Duration
	ticksPerFrame int
	frameTime     time.Duration
}

// NewGameBoy returns a new GameBoy running rom. An error is returned if
// the cartridge header is invalid or its type is unsupported.
func NewGameBoy(rom []byte, opts ...Opt) (*GameBoy, error) {
	g := &GameBoy{
		Logger:        log.NewNullLogger(),
		stallTimeout:  DefaultStallTimeout,
		ticksPerFrame: clock.TicksPerFrame,
		frameTime:     clock.FrameTime,
	}
	for _, opt := range opts {
		opt(g)
	}

	cart, err := cartridge.NewCartridge(rom)
	if err != nil {
		return nil, errors.Wrap(err, "loading cartridge")
	}
	g.Cartridge = cart
	g.Infof("cartridge: %s", cart.Header())

	if err := g.loadSave(); err != nil {
		return nil, err
	}

	var device serial.Device
	if g.serialOut != nil {
		device = serial.NewWriterDevice(g.serialOut)
	}
	g.Serial = serial.NewController(device, g.Logger)

	mmuOpts := []mmu.Opt{mmu.WithLogger(g.Logger)}
	if g.workRAM {
		mmuOpts = append(mmuOpts, mmu.WithWorkRAM())
	}
	g.MMU = mmu.NewMMU(cart, g.Serial, mmuOpts...)

	cpuOpts := []cpu.Opt{cpu.WithLogger(g.Logger)}
	if g.debug {
		cpuOpts = append(cpuOpts, cpu.Debug())
	}
	g.CPU = cpu.NewCPU(g.MMU, cpuOpts...)

	g.Clock = clock.New(
		clock.WithLogger(g.Logger),
		clock.WithStallTimeout(g.stallTimeout),
		clock.WithCadence(g.ticksPerFrame, g.frameTime),
	)

	return g, nil
}

// Run starts the clock and the CPU, and blocks until ctx is cancelled
// or either of them fails. Cancelling ctx is a clean exit and returns
// nil. Battery backed RAM is saved before Run returns. A GameBoy can
// only be run once.
func (g *GameBoy) Run(ctx context.Context) error {
	sub := g.Clock.Subscribe()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return g.CPU.Run(groupCtx, sub)
	})
	group.Go(func() error {
		return g.Clock.Run(groupCtx)
	})

	err := group.Wait()
	g.Infof("emulation ended after %d ticks, %d instructions", g.Clock.Ticks(), g.CPU.Instructions())

	if saveErr := g.Save(); saveErr != nil {
		g.Errorf("unable to save: %v", saveErr)
		if err == nil {
			err = saveErr
		}
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// battery returns the cartridge RAM to persist, if the cartridge has a
// battery and a save file was configured.
func (g *GameBoy) battery() (cartridge.Battery, bool) {
	if g.saveFile == "" || !g.Cartridge.Header().HasBattery() {
		return nil, false
	}
	b, ok := g.Cartridge.(cartridge.Battery)
	return b, ok
}

// loadSave restores the cartridge RAM from the save file. A missing
// save file is not an error.
func (g *GameBoy) loadSave() error {
	b, ok := g.battery()
	if !ok {
		return nil
	}

	save, err := emu.LoadSave(g.saveFile)
	if err != nil {
		return err
	}
	g.save = save
	if !save.Exists() {
		g.Debugf("no save file at %s", g.saveFile)
		return nil
	}
	b.LoadRAM(save.Bytes())
	g.Infof("loaded %d bytes from %s", len(save.Bytes()), g.saveFile)
	return nil
}

// Save writes the cartridge RAM to the save file. It does nothing for
// cartridges without a battery.
func (g *GameBoy) Save() error {
	b, ok := g.battery()
	if !ok || g.save == nil {
		return nil
	}

	if err := g.save.Write(b.RAM()); err != nil {
		return err
	}
	g.Debugf("saved %d bytes to %s", len(b.RAM()), g.saveFile)
	return nil
}
