// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// A Hook registers one app's resources with a site.
type Hook func(site *Site) error

var hooks = struct {
	sync.Mutex
	registry map[string]Hook
	loading  bool
	loaded   map[*Site]bool
}{
	registry: make(map[string]Hook),
	loaded:   make(map[*Site]bool),
}

// RegisterHook names an app's registration hook.  Apps call this from
// their init functions; registering a second hook for the same app
// replaces the first.
func RegisterHook(app string, hook Hook) {
	hooks.Lock()
	defer hooks.Unlock()
	hooks.registry[app] = hook
}

// Autodiscover runs every registered hook against site, in app name
// order.  It runs at most once per site; calls made while the hooks
// are running, or after they ran, do nothing.
func Autodiscover(site *Site) error {
	hooks.Lock()
	if hooks.loading || hooks.loaded[site] {
		hooks.Unlock()
		return nil
	}
	hooks.loading = true
	apps := make([]string, 0, len(hooks.registry))
	for app := range hooks.registry {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	run := make([]Hook, len(apps))
	for i, app := range apps {
		run[i] = hooks.registry[app]
	}
	hooks.Unlock()

	var err error
	for i, hook := range run {
		if err = hook(site); err != nil {
			logrus.WithFields(logrus.Fields{
				"site": site.Name,
				"app":  apps[i],
			}).WithError(err).Error("app registration failed")
			break
		}
	}

	hooks.Lock()
	defer hooks.Unlock()
	hooks.loading = false
	if err == nil {
		hooks.loaded[site] = true
	}
	return err
}
