package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/iio-sensors/cmd"
	"github.com/anicoll/iio-sensors/internal/pkg/iio"
)

func main() {
	app := &cli.App{
		Name:   "iio-sensors",
		Usage:  "discovers IIO sensors and publishes their readings",
		Action: cmd.SensorCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
			&cli.StringFlag{
				Name:    "iio-root",
				EnvVars: []string{"IIO_ROOT"},
				Value:   iio.DefaultRoot,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
