// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diffeo/go-modelrest/auth"
	"github.com/diffeo/go-modelrest/backend"
	"github.com/diffeo/go-modelrest/config"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/polls"
	"github.com/diffeo/go-modelrest/restapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHandler(t *testing.T) {
	require.NoError(t, model.Default.Resolve())
	b := backend.Backend{Implementation: "memory"}
	store, err := b.SQL(model.Default)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, polls.LoadFixtures(store))
	e := backend.Entity{Backend: backend.Backend{Implementation: "memory"}}
	entities, err := e.Entities(model.Default)
	require.NoError(t, err)
	defer entities.Close()

	site := restapi.NewSite("modelrestd", config.Defaults())
	backend.Attach(site, backend.Stores{SQL: store, Entities: entities.Store})
	require.NoError(t, restapi.Autodiscover(site))

	h := HTTP{site: site}
	server := httptest.NewServer(h.Handler())
	defer server.Close()

	status, body := get(t, server.URL+"/api/models/polls/poll/length/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2", strings.TrimSpace(body))

	status, _ = get(t, server.URL+"/api/models/guestbook/greeting/length/")
	assert.Equal(t, http.StatusOK, status)

	status, body = get(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "diffeo_modelrest_requests_total")

	status, _ = get(t, server.URL+"/api/models/polls/nothing/")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGateways(t *testing.T) {
	alice := &auth.SimpleUser{ID: 1, Name: "alice", Token: "alice-token"}
	bob := &auth.SimpleUser{ID: 2, Name: "bob", Token: "bob-token"}
	sessions := auth.NewMemorySessions()
	session := sessions.Login(alice)
	site := restapi.NewSite("modelrestd", config.Defaults())
	authn := &auth.BaseAuthenticator{
		Gateways: gateways(site, auth.NewMemoryUsers(alice, bob), sessions),
	}

	lookup := func(cookie, token string) auth.User {
		req := httptest.NewRequest("GET", "/api/models/polls/poll/?token="+token, nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: cookie})
		}
		user, ok := authn.IsAuthenticated(req, "show")
		require.True(t, ok)
		return user
	}

	assert.Equal(t, alice, lookup(session, ""))
	assert.Equal(t, bob, lookup("", "bob-token"))
	assert.Equal(t, alice, lookup(session, "bob-token"))
	assert.Equal(t, bob, lookup("no-such-session", "bob-token"))
	assert.Nil(t, lookup("", ""))
}

func TestScgenCommand(t *testing.T) {
	require.NoError(t, model.Default.Resolve())
	dir := t.TempDir()
	app := cli.NewApp()
	app.Commands = []cli.Command{scgenCommand}
	require.NoError(t, app.Run([]string{"modelrestd", "scgen",
		"--directory", dir, "--project", "site", "--exclude", "guestbook", "--app-prefix", "Dj"}))

	generated, err := ioutil.ReadFile(filepath.Join(dir, "frameworks", "site", "frameworks", "polls", "_generated", "poll.js"))
	require.NoError(t, err)
	assert.Contains(t, string(generated), "DjPolls.GeneratedPoll")
	_, err = os.Stat(filepath.Join(dir, "frameworks", "site", "frameworks", "guestbook", "core.js"))
	assert.True(t, os.IsNotExist(err))
}
