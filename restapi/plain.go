// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"errors"

	"github.com/diffeo/go-modelrest/forms"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/transform"
)

var (
	errNoName      = errors.New("a resource must have a name")
	errNoModel     = errors.New("a model resource must specify a model")
	errNoPlainForm = errors.New("a form resource must specify a form")
)

// NewResource is the Constructor for plain resources built from the
// Name, Routes and Handlers options.  Its default prefix is
// "resource/<underscored name>/".
func NewResource(site *Site, opts Options) (Resource, error) {
	if opts.Name == "" {
		return nil, errNoName
	}
	b := &BaseResource{
		Name:   opts.Name,
		Prefix: opts.Prefix,
		Routes: opts.Routes,
		Model:  opts.Model,
	}
	if b.Prefix == "" {
		b.Prefix = "resource/" + model.Underscore(opts.Name) + "/"
	}
	for op, fn := range opts.Handlers {
		b.Handle(op, fn)
	}
	return b, nil
}

// FormResource serves a form outside any model: its description at
// "form/" and submissions at the prefix itself.
type FormResource struct {
	BaseResource
	Form   *forms.Form
	Submit func(r *Request, cleaned map[string]interface{}) (interface{}, error)
}

// NewFormResource is the Constructor for form resources built from the
// PlainForm and Submit options.  Its default prefix is
// "forms/<underscored name>/".
func NewFormResource(site *Site, opts Options) (Resource, error) {
	if opts.PlainForm == nil {
		return nil, errNoPlainForm
	}
	name := opts.Name
	if name == "" {
		name = opts.PlainForm.Name
	}
	if name == "" {
		return nil, errNoName
	}
	f := &FormResource{
		BaseResource: BaseResource{Name: name, Prefix: opts.Prefix},
		Form:         opts.PlainForm,
		Submit:       opts.Submit,
	}
	if f.Prefix == "" {
		f.Prefix = "forms/" + model.Underscore(name) + "/"
	}
	f.Routes = []Route{
		{Path: "form/", Ops: map[string]string{"GET": "meta"}},
		{Path: "", Ops: map[string]string{"POST": "submit"}},
	}
	f.Handle("meta", f.Meta)
	if f.Submit != nil {
		f.Handle("submit", f.submit)
	}
	return f, nil
}

// Meta describes the form.
func (f *FormResource) Meta(r *Request) (interface{}, error) {
	return transform.Forms.Render(f.Form, nil)
}

func (f *FormResource) submit(r *Request) (interface{}, error) {
	data, err := r.DataMap()
	if err != nil {
		return nil, err
	}
	cleaned, errs, err := f.Form.Validate(data, false, nil)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, ErrValidation{Errors: errs}
	}
	return f.Submit(r, cleaned)
}
