// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package scgen writes SproutCore model schemas for registered
// applications.
//
// For a project "djangocore" and an app "polls" with a model Poll,
// these files are written under the output bucket:
//
//     frameworks/djangocore/Buildfile
//     frameworks/djangocore/frameworks/polls/core.js
//     frameworks/djangocore/frameworks/polls/poll.js
//     frameworks/djangocore/frameworks/polls/_generated/poll.js
//
// The _generated file is rewritten every time.  The plain model file
// subclasses it and is only written if it does not exist yet, so it
// can hold hand-written code.
package scgen

import (
	"bytes"
	"context"
	"os"
	"path"
	"strings"
	"text/template"

	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/transform"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/sirupsen/logrus"
)

// Generator writes schemas for the models of a registry.
type Generator struct {
	// Bucket receives the generated files.
	Bucket *blob.Bucket

	// Models holds the applications to generate for.
	Models *model.Registry

	// Project names the wrapper framework.
	Project string

	// AppPrefix is prepended to each application's JavaScript
	// namespace, so app "polls" with prefix "Dj" is "DjPolls".
	AppPrefix string

	// Exclude lists application labels skipped when no labels are
	// given.
	Exclude []string
}

// OpenDirectory returns a bucket writing into a local directory,
// creating it if needed.
func OpenDirectory(dir string) (*blob.Bucket, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}
	return fileblob.NewBucket(dir)
}

// selection is one application and the models to generate for it.
type selection struct {
	app    *model.App
	models []*model.Model
	all    bool
}

// selectModels resolves command-line labels, each "app" or
// "app.Model", to the models they name.  With no labels every
// application not in Exclude is selected.  Applications come out in registration order.
func (g *Generator) selectModels(labels []string) ([]selection, error) {
	if len(labels) == 0 {
		excluded := make(map[string]bool, len(g.Exclude))
		for _, label := range g.Exclude {
			if _, err := g.Models.App(label); err != nil {
				return nil, err
			}
			excluded[label] = true
		}
		var out []selection
		for _, app := range g.Models.Apps() {
			if !excluded[app.Label] {
				out = append(out, selection{app: app, models: app.Models, all: true})
			}
		}
		return out, nil
	}

	index := make(map[string]int)
	var out []selection
	for _, label := range labels {
		appLabel, modelName := label, ""
		if i := strings.Index(label, "."); i >= 0 {
			appLabel, modelName = label[:i], label[i+1:]
		}
		app, err := g.Models.App(appLabel)
		if err != nil {
			return nil, err
		}
		i, seen := index[appLabel]
		if !seen {
			i = len(out)
			index[appLabel] = i
			out = append(out, selection{app: app})
		}
		if modelName == "" {
			out[i].models, out[i].all = app.Models, true
			continue
		}
		m, err := g.Models.Model(appLabel, modelName)
		if err != nil {
			return nil, err
		}
		if out[i].all {
			continue
		}
		dup := false
		for _, have := range out[i].models {
			dup = dup || have == m
		}
		if !dup {
			out[i].models = append(out[i].models, m)
		}
	}
	return out, nil
}

// Namespace returns the JavaScript namespace of an application.
func (g *Generator) Namespace(app *model.App) string {
	return g.AppPrefix + model.Camelize(app.Label)
}

func (g *Generator) root() string {
	return path.Join("frameworks", g.Project)
}

func render(t *template.Template, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := t.Execute(&buf, data)
	return buf.Bytes(), err
}

// write stores one file in the bucket.
func (g *Generator) write(ctx context.Context, key string, content []byte) (err error) {
	w, err := g.Bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = w.Write(content)
	if err == nil {
		logrus.WithField("file", key).Info("wrote schema file")
	}
	return err
}

// exists reports whether the bucket already holds key.
func (g *Generator) exists(ctx context.Context, key string) (bool, error) {
	r, err := g.Bucket.NewReader(ctx, key)
	if err != nil {
		if blob.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, r.Close()
}

// GenerateModel writes the generated schema of one model, and its
// subclass file if there is none.
func (g *Generator) GenerateModel(ctx context.Context, app *model.App, m *model.Model) error {
	data, err := transform.Render(m)
	if err != nil {
		return err
	}
	dir := path.Join(g.root(), "frameworks", app.Label)
	fileName := model.Underscore(m.ModuleName()) + ".js"
	generated := path.Join("_generated", fileName)
	vars := map[string]interface{}{
		"App":       g.Namespace(app),
		"Model":     model.Camelize(m.ModuleName()),
		"Data":      data,
		"Generated": generated,
	}

	userKey := path.Join(dir, fileName)
	present, err := g.exists(ctx, userKey)
	if err != nil {
		return err
	}
	if !present {
		content, err := render(userTemplate, vars)
		if err != nil {
			return err
		}
		if err = g.write(ctx, userKey, content); err != nil {
			return err
		}
	} else {
		logrus.WithField("file", userKey).Debug("keeping existing model file")
	}

	content, err := render(generatedTemplate, vars)
	if err != nil {
		return err
	}
	return g.write(ctx, path.Join(dir, generated), content)
}

// Generate writes the schemas of the models named by labels, the
// core file of each of their applications, and the project
// Buildfile.
func (g *Generator) Generate(ctx context.Context, labels ...string) error {
	selected, err := g.selectModels(labels)
	if err != nil {
		return err
	}
	var frameworks []string
	for _, sel := range selected {
		if len(sel.models) == 0 {
			continue
		}
		frameworks = append(frameworks, sel.app.Label)
		for _, m := range sel.models {
			if err := g.GenerateModel(ctx, sel.app, m); err != nil {
				return err
			}
		}
		content, err := render(coreTemplate, map[string]interface{}{
			"App":   g.Namespace(sel.app),
			"Label": sel.app.Label,
		})
		if err != nil {
			return err
		}
		key := path.Join(g.root(), "frameworks", sel.app.Label, "core.js")
		if err := g.write(ctx, key, content); err != nil {
			return err
		}
	}
	content, err := render(buildfileTemplate, map[string]interface{}{
		"Project":    g.Project,
		"Frameworks": frameworks,
	})
	if err != nil {
		return err
	}
	return g.write(ctx, path.Join(g.root(), "Buildfile"), content)
}
