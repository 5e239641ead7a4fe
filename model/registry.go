// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// App is an installed application and the models it owns.
type App struct {
	Label  string
	Models []*Model
}

// Model finds one of the app's models by name, ignoring case.
func (a *App) Model(name string) (*Model, bool) {
	for _, m := range a.Models {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return nil, false
}

// ErrUnknownApp is returned when an application label is not
// registered.
type ErrUnknownApp struct {
	Label string
}

func (e ErrUnknownApp) Error() string {
	return "Unknown application: " + e.Label
}

// ErrUnknownModel is returned when a model label does not name a
// registered model.
type ErrUnknownModel struct {
	App, Name string
}

func (e ErrUnknownModel) Error() string {
	return fmt.Sprintf("Unknown model: %s.%s", e.App, e.Name)
}

// Registry is the set of installed applications.  Applications are
// registered at startup; Resolve then links relationship fields to
// their targets.  A Registry is safe for concurrent reads once it is
// resolved.
type Registry struct {
	lock  sync.RWMutex
	apps  map[string]*App
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[string]*App)}
}

// Default is the process-wide registry that applications add
// themselves to from their init functions.
var Default = NewRegistry()

// Register adds applications to the default registry.
func Register(apps ...*App) error {
	return Default.Register(apps...)
}

// Register adds applications to the registry, preparing each of their
// models.  It fails if an application label is already present.
func (r *Registry) Register(apps ...*App) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, app := range apps {
		if _, present := r.apps[app.Label]; present {
			return fmt.Errorf("application %q is already registered", app.Label)
		}
		for _, m := range app.Models {
			if m.App == "" {
				m.App = app.Label
			}
			if m.App != app.Label {
				return fmt.Errorf("model %v does not belong to application %q", m, app.Label)
			}
			if err := m.prepare(); err != nil {
				return err
			}
		}
		r.apps[app.Label] = app
		r.order = append(r.order, app.Label)
	}
	return nil
}

// Apps returns the registered applications in registration order.
func (r *Registry) Apps() []*App {
	r.lock.RLock()
	defer r.lock.RUnlock()
	apps := make([]*App, len(r.order))
	for i, label := range r.order {
		apps[i] = r.apps[label]
	}
	return apps
}

// App finds an application by label.
func (r *Registry) App(label string) (*App, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if app, present := r.apps[label]; present {
		return app, nil
	}
	return nil, ErrUnknownApp{Label: label}
}

// Model finds a model by application label and model name.
func (r *Registry) Model(app, name string) (*Model, error) {
	a, err := r.App(app)
	if err != nil {
		return nil, err
	}
	if m, ok := a.Model(name); ok {
		return m, nil
	}
	return nil, ErrUnknownModel{App: app, Name: name}
}

// Lookup finds a model by its "app.Name" label.
func (r *Registry) Lookup(label string) (*Model, error) {
	parts := strings.SplitN(label, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid model label %q", label)
	}
	return r.Model(parts[0], parts[1])
}

// Models returns every registered model, ordered by application
// registration order and then declaration order.
func (r *Registry) Models() []*Model {
	var models []*Model
	for _, app := range r.Apps() {
		models = append(models, app.Models...)
	}
	return models
}

// Resolve links every relationship field to its target model and
// records the reverse relationships.  It may be called again after
// more applications are registered.
func (r *Registry) Resolve() error {
	models := r.Models()
	for _, m := range models {
		m.related = nil
	}
	for _, m := range models {
		for _, f := range m.Fields {
			if !f.IsRelation() {
				continue
			}
			target, err := r.resolveLabel(m, f)
			if err != nil {
				return err
			}
			if target.Datastore != m.Datastore {
				return fmt.Errorf("field %v.%s relates models in different stores", m, f.Name)
			}
			f.related = target
			target.related = append(target.related, &Relation{Model: m, Field: f})
		}
	}
	for _, m := range models {
		sort.SliceStable(m.related, func(i, j int) bool {
			return m.related[i].AccessorName() < m.related[j].AccessorName()
		})
	}
	return nil
}

func (r *Registry) resolveLabel(m *Model, f *Field) (*Model, error) {
	switch {
	case f.Related == "" && f.Class == "SelfReferenceProperty", f.Related == "self":
		return m, nil
	case f.Related == "":
		return nil, fmt.Errorf("field %v.%s must name its related model", m, f.Name)
	case !strings.Contains(f.Related, "."):
		// Same-application shorthand
		return r.Model(m.App, f.Related)
	}
	return r.Lookup(f.Related)
}
