// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"net/url"
	"sort"
	"strings"

	"github.com/diffeo/go-modelrest/forms"
	"github.com/diffeo/go-modelrest/model"
	"github.com/diffeo/go-modelrest/serialization"
	"github.com/diffeo/go-modelrest/transform"
)

// ReservedParams are the query parameters that control a request
// rather than filter objects.
var ReservedParams = []string{"ordering", "offset", "start", "limit", "end", "length", "format", "token", "max"}

// ModelOperations are the handler functions a model resource binds.
// Nil operations are not served.
type ModelOperations struct {
	Length  HandlerFunc
	List    HandlerFunc
	Show    HandlerFunc
	Create  HandlerFunc
	Update  HandlerFunc
	Destroy HandlerFunc
}

// ModelBase holds what the relational and datastore model resources
// share: routes, limits, the form, and request parsing helpers.
type ModelBase struct {
	BaseResource

	// Form creates and updates objects.
	Form *forms.ModelForm

	// Fields, if non-empty, limits the serialized fields.
	Fields []string

	// MaxObjects caps the objects a list returns.
	MaxObjects int

	// MaxOrderings caps the ordering clauses of a list.
	MaxOrderings int

	// AllowRelatedOrdering permits "__" in orderings.
	AllowRelatedOrdering bool

	// UserFieldName restricts a logged-in user to the objects
	// whose field of this name is the user.
	UserFieldName string

	// Checker validates uniqueness and related objects.
	Checker forms.Checker

	// Choices lists related objects in form descriptions.
	Choices transform.ChoiceSource
}

// NewModelBase sets up the shared part of a model resource.  Variants
// call it from their constructors and then Bind their operations.
func NewModelBase(site *Site, opts Options) (*ModelBase, error) {
	m := opts.Model
	if m == nil {
		return nil, errNoModel
	}
	b := &ModelBase{
		BaseResource: BaseResource{
			Name:   opts.Name,
			Prefix: opts.Prefix,
			Model:  m,
		},
		Form:                 opts.Form,
		Fields:               opts.Fields,
		MaxObjects:           opts.MaxObjects,
		MaxOrderings:         opts.MaxOrderings,
		AllowRelatedOrdering: opts.AllowRelatedOrdering,
		UserFieldName:        opts.UserFieldName,
	}
	if b.Name == "" {
		b.Name = m.Label()
	}
	if b.Prefix == "" {
		b.Prefix = "models/" + m.App + "/" + m.ModuleName() + "/"
	}
	if b.Form == nil {
		b.Form = forms.NewModelForm(m, opts.Fields)
	}
	if b.MaxObjects <= 0 {
		b.MaxObjects = site.Settings.MaxObjectsPerRequest
	}
	if b.MaxOrderings <= 0 {
		b.MaxOrderings = site.Settings.MaxOrderings
	}
	b.Routes = []Route{
		{Path: "length/", Ops: map[string]string{"GET": "length"}},
		{Path: "list/", Ops: map[string]string{"GET": "list"}},
		{Path: "form/", Ops: map[string]string{"GET": "meta"}},
		{Path: "meta/", Ops: map[string]string{"GET": "meta"}},
		{Path: "", Ops: map[string]string{
			"GET":    "show",
			"POST":   "create",
			"PUT":    "update",
			"DELETE": "destroy",
		}},
	}
	b.Handle("meta", b.Meta)
	return b, nil
}

// Bind installs the variant's operations.
func (b *ModelBase) Bind(ops ModelOperations) {
	for op, fn := range map[string]HandlerFunc{
		"length":  ops.Length,
		"list":    ops.List,
		"show":    ops.Show,
		"create":  ops.Create,
		"update":  ops.Update,
		"destroy": ops.Destroy,
	} {
		if fn != nil {
			b.Handle(op, fn)
		}
	}
}

// Meta describes the resource's form.
func (b *ModelBase) Meta(r *Request) (interface{}, error) {
	return transform.Forms.Render(&b.Form.Form, b.Choices)
}

// Filter is one "field__op=value" query parameter.
type Filter struct {
	Key   string
	Value string
}

// Filters returns the query parameters that are not reserved, sorted
// by key.
func (b *ModelBase) Filters(q url.Values) []Filter {
	reserved := make(map[string]bool, len(ReservedParams))
	for _, name := range ReservedParams {
		reserved[name] = true
	}
	keys := make([]string, 0, len(q))
	for key := range q {
		if !reserved[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	var filters []Filter
	for _, key := range keys {
		for _, value := range q[key] {
			filters = append(filters, Filter{Key: key, Value: value})
		}
	}
	return filters
}

// Ordering parses the "ordering" parameter, a comma-separated list of
// field names each optionally prefixed with "-".
func (b *ModelBase) Ordering(q url.Values) ([]string, error) {
	raw := q.Get("ordering")
	if raw == "" {
		return nil, nil
	}
	if !b.AllowRelatedOrdering && strings.Contains(raw, "__") {
		return nil, BadRequest("This model cannot be ordered by related objects. Please remove all ocurrences of '__' from your ordering parameters.")
	}
	var ordering []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ordering = append(ordering, part)
		}
	}
	if len(ordering) > b.MaxOrderings {
		return nil, BadRequest("This model cannot be ordered by more than %d parameter(s). You tried to order by %d parameters.", b.MaxOrderings, len(ordering))
	}
	return ordering, nil
}

// Page returns the slice of results a list request asks for.  The
// offset comes from "offset" or "start"; the limit from "limit" or
// "length", or from "end" as an exclusive end index.  The limit never
// exceeds MaxObjects.
func (b *ModelBase) Page(r *Request) (offset, limit int, err error) {
	if offset, err = r.IntParam("start", 0); err != nil {
		return
	}
	if offset, err = r.IntParam("offset", offset); err != nil {
		return
	}
	if offset < 0 {
		return 0, 0, BadRequest("The offset must not be negative")
	}
	limit = b.MaxObjects
	if r.Query.Get("end") != "" {
		var end int
		if end, err = r.IntParam("end", 0); err != nil {
			return
		}
		limit = end - offset
	}
	if limit, err = r.IntParam("length", limit); err != nil {
		return
	}
	if limit, err = r.IntParam("limit", limit); err != nil {
		return
	}
	if limit > b.MaxObjects {
		limit = b.MaxObjects
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit, nil
}

// RequirePKs returns the request's primary keys, failing if there are
// none.
func (b *ModelBase) RequirePKs(r *Request) ([]string, error) {
	pks := r.PKs()
	if len(pks) == 0 {
		return nil, ErrNoPK
	}
	return pks, nil
}

// RequirePK returns the request's only primary key.
func (b *ModelBase) RequirePK(r *Request) (string, error) {
	pks := r.PKs()
	if len(pks) != 1 {
		return "", ErrNotSinglePK
	}
	return pks[0], nil
}

// Owner returns the field and value restricting the objects the
// request's user may see, if there is such a restriction.
func (b *ModelBase) Owner(r *Request) (string, interface{}, bool) {
	if b.UserFieldName == "" || r.User == nil || r.User.PK() == nil {
		return "", nil, false
	}
	return b.UserFieldName, r.User.PK(), true
}

// Serialize produces the standard form of one object.
func (b *ModelBase) Serialize(obj *model.Object) interface{} {
	return serialization.SerializeObject(obj, b.Fields)
}

// SerializeAll produces the standard form of a list of objects.
func (b *ModelBase) SerializeAll(objs []*model.Object) interface{} {
	return serialization.SerializeObjects(objs, b.Fields)
}

// Construct validates the request body through the form and returns
// the object to store.  A nil instance creates a new object.
// Validation failures are ErrValidation.
func (b *ModelBase) Construct(r *Request, instance *model.Object) (*model.Object, error) {
	data, err := r.DataMap()
	if err != nil {
		return nil, err
	}
	obj, errs, err := b.Form.Construct(data, instance, b.Checker, r.Site.Clock.Now())
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, ErrValidation{Errors: errs}
	}
	if field, pk, ok := b.Owner(r); ok && instance == nil {
		obj.Set(field, pk)
	}
	return obj, nil
}
