package main

import (
	"errors"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/mknezic/go-dotboy/dotboy"
	"github.com/mknezic/go-dotboy/dotboy/memory"
	"github.com/mknezic/go-dotboy/dotboy/terminal"
)

func main() {
	app := cli.NewApp()
	app.Name = "dotboy"
	app.Description = "A cycle-driven Game Boy emulator with rewind"
	app.Usage = "dotboy [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to a TOML config file",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("emulator exited")
	}
}

func run(c *cli.Context) error {
	if c.Bool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() == 0 {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
		romPath = c.Args().Get(0)
	}

	cfg := dotboy.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = dotboy.LoadConfig(path); err != nil {
			return err
		}
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}

	machine, err := dotboy.PowerOn(rom,
		dotboy.WithConfig(cfg),
		dotboy.WithClock(memory.SystemClock{}),
	)
	if err != nil {
		return err
	}

	if c.Bool("headless") {
		frames := c.Int("frames")
		if frames <= 0 {
			return errors.New("headless mode requires --frames with a positive value")
		}
		for i := 0; i < frames; i++ {
			if _, _, err := machine.RunFrame(0); err != nil {
				return err
			}
		}
		log.WithField("frames", frames).Info("headless run completed")
		return nil
	}

	return terminal.New(machine).Run()
}
