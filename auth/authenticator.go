// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package auth

import (
	"net/http"

	"github.com/diffeo/go-modelrest/model"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// An Authenticator decides whether a request may run an operation.
type Authenticator interface {
	// IsAuthenticated resolves the request's user and runs any
	// configured checks against it.  op is the name of the
	// resource operation ("list", "create", ...) the request
	// maps to.  The returned user may be nil.
	IsAuthenticated(r *http.Request, op string) (User, bool)
}

// Config names the checks a UserAuthenticator runs.  Checks run in
// field order and the first failing check denies the request.
type Config struct {
	// LoginRequired denies anonymous users.
	LoginRequired bool `mapstructure:"login_required" yaml:"login_required"`

	// StaffMemberRequired denies users who are not active staff.
	StaffMemberRequired bool `mapstructure:"staff_member_required" yaml:"staff_member_required"`

	// AdminPermsRequired requires the model permission matching
	// the HTTP method, for instance "polls.add_poll" for POST.
	AdminPermsRequired bool `mapstructure:"admin_perms_required" yaml:"admin_perms_required"`

	// Permissions are required for every request.
	Permissions []string `mapstructure:"permissions" yaml:"permissions"`

	// MethodPermissions are required for requests with a given
	// HTTP method.
	MethodPermissions map[string][]string `mapstructure:"method_permissions" yaml:"method_permissions"`

	// HandlerPermissions are required for a given operation name.
	HandlerPermissions map[string][]string `mapstructure:"handler_permissions" yaml:"handler_permissions"`

	// AjaxRequired denies requests without an
	// "X-Requested-With: XMLHttpRequest" header, unless the
	// authenticator is in debug mode.
	AjaxRequired bool `mapstructure:"ajax_required" yaml:"ajax_required"`
}

// DecodeConfig converts a generic map, as read from a configuration
// file, into a Config.  Unknown keys are an error.
func DecodeConfig(input interface{}) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err == nil {
		err = decoder.Decode(input)
	}
	return cfg, err
}

// Spec is everything an authenticator is built from.
type Spec struct {
	// Model is the model the protected resource serves, if any.
	Model *model.Model

	// Gateways are consulted in order to find the user.
	Gateways []Gateway

	// Config selects the checks to run.
	Config Config

	// Debug relaxes checks that get in the way of manual
	// testing.
	Debug bool
}

// A Factory builds an authenticator.  Sites hold a Factory and call it
// once per registered resource.
type Factory func(Spec) Authenticator

func findUser(gateways []Gateway, r *http.Request) User {
	for _, gateway := range gateways {
		if user := gateway.GetUser(r); user != nil {
			return user
		}
	}
	return nil
}

// BaseAuthenticator asks its gateways for a user and allows every
// request.  The user is nil if no gateway recognized the request.
type BaseAuthenticator struct {
	Gateways []Gateway
}

// NewBaseAuthenticator is a Factory for BaseAuthenticator.
func NewBaseAuthenticator(spec Spec) Authenticator {
	return &BaseAuthenticator{Gateways: spec.Gateways}
}

// IsAuthenticated returns the first user any gateway finds.
func (a *BaseAuthenticator) IsAuthenticated(r *http.Request, op string) (User, bool) {
	return findUser(a.Gateways, r), true
}

// AnonymousAuthenticator allows everything without looking for a
// user at all.
type AnonymousAuthenticator struct{}

// NewAnonymousAuthenticator is a Factory for AnonymousAuthenticator.
func NewAnonymousAuthenticator(Spec) Authenticator {
	return AnonymousAuthenticator{}
}

// IsAuthenticated always returns (nil, true).
func (AnonymousAuthenticator) IsAuthenticated(*http.Request, string) (User, bool) {
	return nil, true
}

// UserAuthenticator finds a user through its gateways, falling back
// to AnonymousUser, and then runs the checks named in its Config.
type UserAuthenticator struct {
	Spec
}

// NewUserAuthenticator is a Factory for UserAuthenticator.
func NewUserAuthenticator(spec Spec) Authenticator {
	return &UserAuthenticator{Spec: spec}
}

// adminVerbs maps HTTP methods to the permission verb needed for
// them under AdminPermsRequired.
var adminVerbs = map[string]string{
	"GET":    "change",
	"HEAD":   "change",
	"POST":   "add",
	"PUT":    "change",
	"DELETE": "delete",
}

// AdminPermission returns the model permission a request with method
// needs, or "" if no permission allows that method.
func AdminPermission(m *model.Model, method string) string {
	verb, ok := adminVerbs[method]
	if !ok || m == nil {
		return ""
	}
	return m.App + "." + verb + "_" + m.ModuleName()
}

// IsAuthenticated runs the configured checks in order.
func (a *UserAuthenticator) IsAuthenticated(r *http.Request, op string) (User, bool) {
	user := findUser(a.Gateways, r)
	if user == nil {
		user = AnonymousUser{}
	}
	if failed := a.check(user, r, op); failed != "" {
		logrus.WithFields(logrus.Fields{
			"check":  failed,
			"method": r.Method,
			"op":     op,
			"user":   user.Username(),
		}).Debug("authentication check failed")
		return user, false
	}
	return user, true
}

// check returns the name of the first failing check, or "" if they
// all pass.
func (a *UserAuthenticator) check(user User, r *http.Request, op string) string {
	cfg := a.Config
	if cfg.LoginRequired && !user.IsAuthenticated() {
		return "login_required"
	}
	if cfg.StaffMemberRequired && !(user.IsActive() && user.IsStaff()) {
		return "staff_member_required"
	}
	if cfg.AdminPermsRequired {
		perm := AdminPermission(a.Model, r.Method)
		if perm == "" || !user.HasPerm(perm) {
			return "admin_perms_required"
		}
	}
	if !HasPerms(user, cfg.Permissions) {
		return "permissions"
	}
	if !HasPerms(user, cfg.MethodPermissions[r.Method]) {
		return "method_permissions"
	}
	if !HasPerms(user, cfg.HandlerPermissions[op]) {
		return "handler_permissions"
	}
	if cfg.AjaxRequired && !a.Debug && r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
		return "ajax_required"
	}
	return ""
}
