// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restapi publishes models as REST resources.
//
// A Site is a registry of resources keyed by URL prefix.  Resources
// are built by a Constructor from Options when they are registered;
// the sqlresource and dsresource packages provide constructors for
// relational and datastore models, and NewResource and
// NewFormResource cover resources that are not tied to a model.
//
// Dispatch
//
// Each route of a resource maps HTTP methods to operation names, and
// each operation has a handler function.  A request goes through
// these steps, stopping at the first that fails:
//
//     no operation on this URL           404, empty body
//     no operation for this method       405, Allow: header
//     authenticator denies the request   403, empty body
//     PUT or POST body does not decode   400, error message
//     handler returns an error           its HTTPStatus(), or 500
//
// Otherwise the handler's value is encoded in the requested format
// with status 200, or 204 if it is nil.
//
// Formats
//
// The response format is named by the "format" query parameter, for
// instance ?format=yaml.  Without one the Accept: header is
// negotiated against the registered emitters, and JSON is the
// fallback.  Request bodies are decoded by their Content-Type:;
// form-encoded bodies are parsed into a mapping.
//
// URL Scheme
//
// Model resources are at models/{app}/{model}/ under the site's API
// prefix, by default /api/, and define:
//
//     length/    GET     number of matching objects
//     list/      GET     matching objects, ordered and paginated
//     form/      GET     description of the resource's form
//     meta/      GET     same as form/
//     (prefix)   GET     objects named by ?pk=
//                POST    create an object
//                PUT     update the object named by ?pk=
//                DELETE  delete the objects named by ?pk=
//
// List operations accept "ordering", "offset" or "start", "limit" or
// "length", and "end"; every other parameter is a field lookup such
// as question__icontains=socks.
package restapi
