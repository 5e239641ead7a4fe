// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-modelrest/auth"
	"github.com/diffeo/go-modelrest/config"
	"github.com/diffeo/go-modelrest/forms"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// A Resource is anything built around a BaseResource.
type Resource interface {
	Base() *BaseResource
}

// A Constructor builds a resource for a site.  Register calls it once.
type Constructor func(site *Site, opts Options) (Resource, error)

// Options configure a resource at registration time.  Which options
// apply depends on the constructor.
type Options struct {
	// Name names the resource; it defaults to the model name.
	Name string

	// Prefix overrides the resource's default URL prefix.
	Prefix string

	// Model is the model a model resource serves.
	Model *model.Model

	// Form is the form used to create and update objects.  It
	// defaults to a form over Fields.
	Form *forms.ModelForm

	// PlainForm is the form a form resource serves.
	PlainForm *forms.Form

	// Fields, if non-empty, limits the fields exposed.
	Fields []string

	// Routes and Handlers describe a plain resource.
	Routes   []Route
	Handlers map[string]HandlerFunc

	// AllowedOperations, if non-empty, lists the only operations
	// served.
	AllowedOperations []string

	// Anonymous skips authentication entirely.
	Anonymous bool

	// Auth selects the authenticator checks.  If nil the site
	// settings for the model label apply.
	Auth *auth.Config

	// Authenticator and Gateways override the site defaults.
	Authenticator auth.Factory
	Gateways      []auth.Gateway

	// MaxObjects and MaxOrderings override the site settings.
	MaxObjects   int
	MaxOrderings int

	// AllowRelatedOrdering permits "__" in orderings.
	AllowRelatedOrdering bool

	// UserFieldName names a field that restricts the objects a
	// logged-in user sees to their own.
	UserFieldName string

	// Submit handles a form resource's cleaned data.
	Submit func(r *Request, cleaned map[string]interface{}) (interface{}, error)
}

// Site is a registry of resources sharing one URL space, one set of
// serialization registries, and one default authenticator.
type Site struct {
	// Name names the site in logs.
	Name string

	// Settings hold the site-wide tunables.
	Settings config.Settings

	// Mimer decodes request bodies.
	Mimer *serialization.Mimer

	// Emitter encodes responses.
	Emitter *serialization.Emitter

	// Clock supplies times for automatic timestamps and metrics.
	Clock clock.Clock

	lock        sync.RWMutex
	authFactory auth.Factory
	gateways    []auth.Gateway
	resources   map[string]Resource
}

// NewSite creates an empty site using the default serialization
// registries.  Resources registered with it are anonymous until
// SetAuthenticator is called.
func NewSite(name string, settings config.Settings) *Site {
	return &Site{
		Name:        name,
		Settings:    settings,
		Mimer:       serialization.DefaultMimer,
		Emitter:     serialization.DefaultEmitter,
		Clock:       clock.New(),
		authFactory: auth.NewAnonymousAuthenticator,
		resources:   make(map[string]Resource),
	}
}

// DefaultSite is the process-wide site that app hooks register with.
var DefaultSite = NewSite("api", config.Defaults())

// SetAuthenticator changes the authenticator used by resources
// registered from now on.  Resources already registered keep theirs.
func (s *Site) SetAuthenticator(factory auth.Factory, gateways ...auth.Gateway) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.authFactory = factory
	s.gateways = gateways
}

func (s *Site) build(ctor Constructor, opts Options) (Resource, error) {
	res, err := ctor(s, opts)
	if err != nil {
		return nil, err
	}
	b := res.Base()
	b.Site = s
	if opts.AllowedOperations != nil {
		b.AllowedOperations = opts.AllowedOperations
	}
	b.Anonymous = b.Anonymous || opts.Anonymous
	return res, nil
}

func (s *Site) authenticator(b *BaseResource, opts Options) auth.Authenticator {
	factory, gateways := s.authFactory, s.gateways
	if opts.Authenticator != nil {
		factory = opts.Authenticator
	}
	if opts.Gateways != nil {
		gateways = opts.Gateways
	}
	var cfg auth.Config
	if opts.Auth != nil {
		cfg = *opts.Auth
	} else if b.Model != nil {
		cfg = s.Settings.AuthFor(b.Model.Label())
	} else {
		cfg = s.Settings.AuthFor(b.Name)
	}
	return factory(auth.Spec{
		Model:    b.Model,
		Gateways: gateways,
		Config:   cfg,
		Debug:    s.Settings.Debug,
	})
}

// Register builds a resource and adds it to the site at its URL
// prefix.  It fails with ErrAlreadyRegistered if the prefix is taken.
func (s *Site) Register(ctor Constructor, opts Options) (Resource, error) {
	res, err := s.build(ctor, opts)
	if err != nil {
		return nil, err
	}
	b := res.Base()
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, present := s.resources[b.Prefix]; present {
		return nil, ErrAlreadyRegistered{Prefix: b.Prefix}
	}
	if b.Authenticator == nil && !b.Anonymous {
		b.Authenticator = s.authenticator(b, opts)
	}
	s.resources[b.Prefix] = res
	logrus.WithFields(logrus.Fields{
		"site":     s.Name,
		"resource": b.Name,
		"prefix":   b.Prefix,
	}).Debug("registered resource")
	return res, nil
}

// MustRegister is Register, panicking on failure.  It is meant for
// app hooks run at startup.
func (s *Site) MustRegister(ctor Constructor, opts Options) Resource {
	res, err := s.Register(ctor, opts)
	if err != nil {
		panic(err)
	}
	return res
}

// Unregister removes the resource at a URL prefix.
func (s *Site) Unregister(prefix string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, present := s.resources[prefix]; !present {
		return ErrNotRegistered{Prefix: prefix}
	}
	delete(s.resources, prefix)
	return nil
}

// UnregisterResource removes the resource that Register would build
// from the same constructor and options.
func (s *Site) UnregisterResource(ctor Constructor, opts Options) error {
	res, err := s.build(ctor, opts)
	if err != nil {
		return err
	}
	return s.Unregister(res.Base().Prefix)
}

// Lookup returns the resource at a URL prefix.
func (s *Site) Lookup(prefix string) (Resource, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	res, present := s.resources[prefix]
	return res, present
}

// Resources returns every registered resource, sorted by prefix.
func (s *Site) Resources() []Resource {
	s.lock.RLock()
	defer s.lock.RUnlock()
	prefixes := make([]string, 0, len(s.resources))
	for prefix := range s.resources {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	out := make([]Resource, len(prefixes))
	for i, prefix := range prefixes {
		out[i] = s.resources[prefix]
	}
	return out
}

// PopulateRouter adds every resource route to an existing
// github.com/gorilla/mux router, under the site's API prefix.
func (s *Site) PopulateRouter(r *mux.Router) {
	prefix := s.Settings.APIPrefix
	if prefix == "" {
		prefix = "/"
	}
	for _, res := range s.Resources() {
		b := res.Base()
		for _, route := range b.Routes {
			r.Path(prefix + b.Prefix + route.Path).
				Name(b.Prefix + route.Path).
				Handler(b.Mapper(route))
		}
	}
}

// Router creates a new router serving every registered resource.
func (s *Site) Router() *mux.Router {
	r := mux.NewRouter()
	s.PopulateRouter(r)
	return r
}

// Handler wraps the site router in the middleware stack: panic
// recovery and, if logger is non-nil, one log line per request.
func (s *Site) Handler(logger *logrus.Logger) http.Handler {
	n := negroni.New()
	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	n.Use(recovery)
	if logger != nil {
		n.Use(requestLogger(logger))
	}
	n.UseHandler(s.Router())
	return n
}

func requestLogger(logger *logrus.Logger) negroni.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
		start := time.Now()
		next(rw, req)
		status := 0
		if nrw, ok := rw.(negroni.ResponseWriter); ok {
			status = nrw.Status()
		}
		logger.WithFields(logrus.Fields{
			"method":   req.Method,
			"path":     req.URL.Path,
			"status":   status,
			"duration": time.Since(start),
		}).Info("request")
	}
}
