// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package modelrestd serves the installed applications' models over
// HTTP, and generates SproutCore schemas for them.
//
//     modelrestd --config site.yaml serve --backend sqlite3:polls.db --datastore bolt:guestbook.db
//     modelrestd scgen --directory sproutcore/ polls guestbook.Greeting
package main

import (
	"os"

	"github.com/diffeo/go-modelrest/config"
	_ "github.com/diffeo/go-modelrest/guestbook"
	"github.com/diffeo/go-modelrest/model"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// settings are loaded from --config before any command runs.
var settings = config.Defaults()

func main() {
	app := cli.NewApp()
	app.Name = "modelrestd"
	app.Usage = "serve models over a REST interface"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "global configuration YAML file",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "log debug messages and relax request checks",
		},
	}
	app.Commands = []cli.Command{
		serveCommand,
		scgenCommand,
	}
	app.Before = func(c *cli.Context) (err error) {
		settings, err = config.Load(c.String("config"))
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Error("Could not load YAML configuration")
			return
		}
		if c.Bool("debug") {
			settings.Debug = true
		}
		if settings.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return model.Default.Resolve()
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithFields(logrus.Fields{
			"err": err,
		}).Fatal("modelrestd failed")
	}
}
