// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package auth

import (
	"net/http"

	"github.com/diffeo/go-modelrest/cache"
	"github.com/sirupsen/logrus"
)

// A Gateway resolves a request to a user.  GetUser returns nil if the
// gateway does not recognize the request.
type Gateway interface {
	GetUser(r *http.Request) User
}

// DefaultCookieName is the session cookie CookieGateway reads when it
// has no explicit name.
const DefaultCookieName = "sessionid"

// CookieGateway finds the user logged in to the session named by a
// request cookie.
type CookieGateway struct {
	Sessions   Sessions
	CookieName string
}

// GetUser returns the session's user, or nil if there is no session
// cookie or the session is unknown.
func (g *CookieGateway) GetUser(r *http.Request) User {
	name := g.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return g.Sessions.User(cookie.Value)
}

// DefaultTokenField is the user field TokenGateway matches tokens
// against when it has no explicit field name.
const DefaultTokenField = "token"

// TokenGateway finds a user from the "token" query parameter, by
// looking up the user whose FieldName field equals the token.  If
// Cache is non-nil, successful lookups are remembered there.
type TokenGateway struct {
	Users     Directory
	FieldName string
	Cache     *cache.LRU
}

// GetUser returns the user owning the request's token, or nil if
// there is no token or no single user owns it.
func (g *TokenGateway) GetUser(r *http.Request) User {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil
	}
	field := g.FieldName
	if field == "" {
		field = DefaultTokenField
	}
	fetch := func(token string) (interface{}, error) {
		return g.Users.UserByField(field, token)
	}
	var (
		item interface{}
		err  error
	)
	if g.Cache != nil {
		item, err = g.Cache.Get(token, fetch)
	} else {
		item, err = fetch(token)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"field": field,
		}).WithError(err).Debug("token lookup failed")
		return nil
	}
	user, _ := item.(User)
	return user
}
