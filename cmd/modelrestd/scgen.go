// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"

	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/scgen"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var scgenCommand = cli.Command{
	Name:      "scgen",
	Usage:     "generate SproutCore model schemas",
	ArgsUsage: "[app|app.Model]...",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "directory",
			Usage: "output directory (default: output_root setting)",
		},
		cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "skip this app when none are named",
		},
		cli.StringFlag{
			Name:  "app-prefix",
			Usage: "prefix for each app's JavaScript namespace",
		},
		cli.StringFlag{
			Name:  "project",
			Usage: "wrapper framework name (default: project_name setting)",
		},
	},
	Action: func(c *cli.Context) error {
		g, err := newGenerator(c)
		if err != nil {
			return err
		}
		err = g.Generate(context.Background(), c.Args()...)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err": err,
			}).Error("schema generation failed")
		}
		return err
	},
}

func newGenerator(c *cli.Context) (*scgen.Generator, error) {
	dir := c.String("directory")
	if dir == "" {
		dir = settings.OutputRoot
	}
	project := c.String("project")
	if project == "" {
		project = settings.ProjectName
	}
	bucket, err := scgen.OpenDirectory(dir)
	if err != nil {
		return nil, err
	}
	return &scgen.Generator{
		Bucket:    bucket,
		Models:    model.Default,
		Project:   project,
		AppPrefix: c.String("app-prefix"),
		Exclude:   c.StringSlice("exclude"),
	}, nil
}
