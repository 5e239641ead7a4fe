// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package auth

import (
	"errors"
	"strconv"
	"sync"

	"github.com/diffeo/go-modelrest/model"
)

// User is an identity a gateway can resolve a request to.
type User interface {
	// PK returns the user's primary key, or nil for anonymous
	// users.
	PK() interface{}
	Username() string
	IsAuthenticated() bool
	IsActive() bool
	IsStaff() bool
	IsSuperuser() bool

	// HasPerm reports whether the user holds a permission of the
	// form "app_label.codename".
	HasPerm(perm string) bool
}

// HasPerms reports whether the user holds every one of perms.
func HasPerms(u User, perms []string) bool {
	for _, perm := range perms {
		if !u.HasPerm(perm) {
			return false
		}
	}
	return true
}

// AnonymousUser is the identity of requests no gateway recognized.
type AnonymousUser struct{}

func (AnonymousUser) PK() interface{}          { return nil }
func (AnonymousUser) Username() string         { return "" }
func (AnonymousUser) IsAuthenticated() bool    { return false }
func (AnonymousUser) IsActive() bool           { return false }
func (AnonymousUser) IsStaff() bool            { return false }
func (AnonymousUser) IsSuperuser() bool        { return false }
func (AnonymousUser) HasPerm(perm string) bool { return false }

// SimpleUser is a plain-value User.
type SimpleUser struct {
	ID          int64    `mapstructure:"id" yaml:"id"`
	Name        string   `mapstructure:"username" yaml:"username"`
	Email       string   `mapstructure:"email" yaml:"email"`
	Token       string   `mapstructure:"token" yaml:"token"`
	Inactive    bool     `mapstructure:"inactive" yaml:"inactive"`
	Staff       bool     `mapstructure:"is_staff" yaml:"is_staff"`
	Superuser   bool     `mapstructure:"is_superuser" yaml:"is_superuser"`
	Permissions []string `mapstructure:"permissions" yaml:"permissions"`
}

func (u *SimpleUser) PK() interface{}       { return u.ID }
func (u *SimpleUser) Username() string      { return u.Name }
func (u *SimpleUser) IsAuthenticated() bool { return true }
func (u *SimpleUser) IsActive() bool        { return !u.Inactive }
func (u *SimpleUser) IsStaff() bool         { return u.Staff }
func (u *SimpleUser) IsSuperuser() bool     { return u.Superuser }

// HasPerm is always false for inactive users and always true for
// active superusers.
func (u *SimpleUser) HasPerm(perm string) bool {
	if u.Inactive {
		return false
	}
	if u.Superuser {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Field returns a named attribute of the user as a string, for token
// lookups.  Unknown names return false.
func (u *SimpleUser) Field(name string) (string, bool) {
	switch name {
	case "id", "pk":
		return strconv.FormatInt(u.ID, 10), true
	case "username":
		return u.Name, true
	case "email":
		return u.Email, true
	case "token":
		return u.Token, true
	}
	return "", false
}

// ErrNoSuchUser is returned when a directory lookup finds nothing.
var ErrNoSuchUser = errors.New("no such user")

// ErrMultipleUsers is returned when a directory lookup is ambiguous.
var ErrMultipleUsers = errors.New("multiple users match")

// Directory finds users.
type Directory interface {
	// UserByField returns the single user whose named field has
	// the given value.
	UserByField(field, value string) (User, error)
}

// MemoryUsers is an in-memory Directory of SimpleUsers.
type MemoryUsers struct {
	lock  sync.RWMutex
	users []*SimpleUser
}

// NewMemoryUsers creates a directory holding users.  Users without
// an ID are numbered from 1 in order.
func NewMemoryUsers(users ...*SimpleUser) *MemoryUsers {
	d := &MemoryUsers{}
	for _, u := range users {
		d.Add(u)
	}
	return d
}

// Add puts a user into the directory, assigning an ID if it has none.
func (d *MemoryUsers) Add(u *SimpleUser) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if u.ID == 0 {
		u.ID = int64(len(d.users) + 1)
	}
	d.users = append(d.users, u)
}

// UserByField finds the user whose field matches value.
func (d *MemoryUsers) UserByField(field, value string) (User, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	var found User
	for _, u := range d.users {
		if v, ok := u.Field(field); ok && v == value {
			if found != nil {
				return nil, ErrMultipleUsers
			}
			found = u
		}
	}
	if found == nil {
		return nil, ErrNoSuchUser
	}
	return found, nil
}

// NewApp returns a fresh "auth" application containing the User
// model, so relationship fields can point at "auth.User".  Each call
// builds new model values, which lets tests use independent
// registries.
func NewApp() *model.App {
	user := &model.Model{
		App:  "auth",
		Name: "User",
		Fields: []*model.Field{
			{Name: "username", Class: "CharField", MaxLength: 30, Unique: true,
				HelpText: "Required. 30 characters or fewer."},
			{Name: "first_name", Class: "CharField", MaxLength: 30, Blank: true},
			{Name: "last_name", Class: "CharField", MaxLength: 30, Blank: true},
			{Name: "email", Class: "EmailField", MaxLength: 75, Blank: true},
			{Name: "is_staff", Class: "BooleanField", Default: false, VerboseName: "staff status"},
			{Name: "is_active", Class: "BooleanField", Default: true, VerboseName: "active"},
			{Name: "is_superuser", Class: "BooleanField", Default: false, VerboseName: "superuser status"},
		},
	}
	return &model.App{Label: "auth", Models: []*model.Model{user}}
}
