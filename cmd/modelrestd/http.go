// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"time"

	"github.com/diffeo/go-modelrest/auth"
	"github.com/diffeo/go-modelrest/backend"
	"github.com/diffeo/go-modelrest/cache"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/polls"
	"github.com/diffeo/go-modelrest/restapi"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	tokenCacheSize = 1024
	tokenCacheTTL  = 5 * time.Minute
)

var (
	sqlBackend    = backend.Backend{Implementation: "memory"}
	entityBackend = backend.Entity{Backend: backend.Backend{Implementation: "memory"}}
)

var serveCommand = cli.Command{
	Name:  "serve",
	Usage: "serve the model resources over HTTP",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "http",
			Value: ":8000",
			Usage: "[ip]:port for HTTP REST interface",
		},
		cli.GenericFlag{
			Name:  "backend",
			Value: &sqlBackend,
			Usage: "impl[:address] of the relational store",
		},
		cli.GenericFlag{
			Name:  "datastore",
			Value: &entityBackend,
			Usage: "impl[:address] of the entity store",
		},
		cli.BoolFlag{
			Name:  "log-requests",
			Usage: "log all requests",
		},
		cli.BoolFlag{
			Name:  "fixtures",
			Usage: "load the sample polls into the relational store",
		},
	},
	Action: func(c *cli.Context) error {
		sqlStore, err := sqlBackend.SQL(model.Default)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err":     err,
				"backend": sqlBackend.String(),
			}).Error("Could not open relational store")
			return err
		}
		defer sqlStore.Close()
		entities, err := entityBackend.Entities(model.Default)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"err":     err,
				"backend": entityBackend.String(),
			}).Error("Could not open entity store")
			return err
		}
		defer entities.Close()

		if c.Bool("fixtures") {
			if err = polls.LoadFixtures(sqlStore); err != nil {
				return err
			}
		}

		site := restapi.DefaultSite
		site.Settings = settings
		if len(settings.Users) > 0 {
			users := auth.NewMemoryUsers(settings.Users...)
			site.SetAuthenticator(auth.NewUserAuthenticator,
				gateways(site, users, auth.NewMemorySessions())...)
		}
		backend.Attach(site, backend.Stores{SQL: sqlStore, Entities: entities.Store})
		if err = restapi.Autodiscover(site); err != nil {
			return err
		}

		var reqLogger *logrus.Logger
		if c.Bool("log-requests") {
			stdlog := logrus.StandardLogger()
			reqLogger = &logrus.Logger{
				Out:       stdlog.Out,
				Formatter: stdlog.Formatter,
				Hooks:     stdlog.Hooks,
				Level:     logrus.DebugLevel,
			}
		}

		h := HTTP{site: site, laddr: c.String("http"), logger: reqLogger}
		return h.Serve()
	},
}

// gateways returns the daemon's user lookups: the session cookie is
// consulted first, then the token parameter.
func gateways(site *restapi.Site, users auth.Directory, sessions auth.Sessions) []auth.Gateway {
	return []auth.Gateway{
		&auth.CookieGateway{Sessions: sessions},
		&auth.TokenGateway{
			Users: users,
			Cache: cache.NewLRUWithTTL(tokenCacheSize, tokenCacheTTL, site.Clock),
		},
	}
}

// HTTP serves a resource site and its metrics.
type HTTP struct {
	site   *restapi.Site
	laddr  string
	logger *logrus.Logger
}

// Handler returns the combined router: resources under the site's API
// prefix and Prometheus metrics at /metrics.
func (h *HTTP) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix(h.site.Settings.APIPrefix).Handler(h.site.Handler(h.logger))
	return r
}

// Serve runs an HTTP server on the configured local address.  It
// returns only when the server fails.
func (h *HTTP) Serve() error {
	logrus.WithFields(logrus.Fields{
		"address": h.laddr,
		"prefix":  h.site.Settings.APIPrefix,
	}).Info("serving")
	return http.ListenAndServe(h.laddr, h.Handler())
}
