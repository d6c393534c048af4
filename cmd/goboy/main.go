// Command goboy runs a Game Boy ROM on the tick driven CPU core.
//
//	goboy [flags] <rom>
//
// The ROM may be a plain .gb/.gbc image, or a .gz, .xz, .zip or .7z
// archive of one. Bytes the ROM sends over the serial port are printed
// to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/thelolagemann/tickboy/internal/gameboy"
	"github.com/thelolagemann/tickboy/pkg/log"
	"github.com/thelolagemann/tickboy/pkg/utils"
)

const statsviewAddress = "localhost:12600"

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging and instruction tracing")
	stallTimeout := flag.Duration("stall-timeout", gameboy.DefaultStallTimeout, "How long to wait for the CPU to acknowledge a tick, 0 waits forever")
	stats := flag.Bool("statsview", false, "Serve runtime statistics at "+statsviewAddress+"/debug/statsview")
	pprof := flag.String("pprof", "", "Address to serve net/http/pprof on, empty disables")
	workRAM := flag.Bool("wram", false, "Map work RAM and high RAM into the address space")
	noSave := flag.Bool("nosave", false, "Do not load or save battery backed cartridge RAM")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <rom>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.NewWithOutput(os.Stderr, *debug)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	romFile := flag.Arg(0)

	if *pprof != "" {
		go func() {
			if err := http.ListenAndServe(*pprof, nil); err != nil {
				logger.Errorf("pprof: %v", err)
			}
		}()
	}
	if *stats {
		go func() {
			viewer.SetConfiguration(viewer.WithAddr(statsviewAddress))
			statsview.New().Start()
		}()
		logger.Infof("stats server available at %s/debug/statsview", statsviewAddress)
	}

	rom, err := utils.LoadFile(romFile)
	if err != nil {
		logger.Fatalf("unable to load %s: %v", romFile, err)
		os.Exit(1)
	}

	opts := []gameboy.Opt{
		gameboy.WithLogger(logger),
		gameboy.WithSerialWriter(os.Stdout),
		gameboy.WithStallTimeout(*stallTimeout),
	}
	if *debug {
		opts = append(opts, gameboy.Debug())
	}
	if *workRAM {
		opts = append(opts, gameboy.WithWorkRAM())
	}
	if !*noSave {
		opts = append(opts, gameboy.WithSaveFile(saveFile(romFile)))
	}

	gb, err := gameboy.NewGameBoy(rom, opts...)
	if err != nil {
		logger.Fatalf("unable to start: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gb.Run(ctx); err != nil {
		logger.Fatalf("emulation failed: %v", err)
		os.Exit(1)
	}
}

// saveFile returns the battery save path for a ROM, the ROM path with
// its extension replaced by .sav.
func saveFile(romFile string) string {
	return strings.TrimSuffix(romFile, filepath.Ext(romFile)) + ".sav"
}
