// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package scgen

import "text/template"

var generatedTemplate = template.Must(template.New("generated.js").Parse(`//WARNING: THIS FILE IS GENERATED AUTOMATICALLY AND MAY BE OVERWRITTEN.
//IF YOU WISH TO MAKE CHANGES, SUBCLASS THE MODEL AND MAKE CHANGES THERE.

/** @private */
{{ .App }}.Generated{{ .Model }} = SC.Record.extend(
/** {{ .App }}.{{ .Model }}.prototype */ {
{{ range .Data.Fields }}
/**
{{ .Comments }}
*/
{{ .Name }}: {{ .Record }}({{ .JSType }}, {{ .Attributes }}),
{{ end }}
primaryKey: 'pk'

});

SC.mixin({{ .App }}.Generated{{ .Model }},
/** @scope {{ .App }}.{{ .Model }} */ {
{{ range $i, $option := .Data.Meta }}{{ if $i }},
{{ end }}{{ $option.Name }}: {{ $option.Value }}{{ end }}
});
`))

var userTemplate = template.Must(template.New("user.js").Parse(`sc_require('{{ .Generated }}');

/** @class

  (Document your model here)

  @extends {{ .App }}.Generated{{ .Model }}
*/
{{ .App }}.{{ .Model }} = {{ .App }}.Generated{{ .Model }}.extend(
/** @scope {{ .App }}.{{ .Model }}.prototype */ {

});
`))

var coreTemplate = template.Must(template.New("core.js").Parse(`/** @namespace

  Models of the {{ .Label }} application.

  @extends SC.Object
*/
{{ .App }} = SC.Object.create(
  /** @scope {{ .App }}.prototype */ {

  NAMESPACE: '{{ .App }}',
  VERSION: '0.1.0'

});
`))

var buildfileTemplate = template.Must(template.New("Buildfile").Parse(`# Generated for the {{ .Project }} wrapper framework.
config '{{ .Project }}', :required => [
{{ range $i, $f := .Frameworks }}{{ if $i }},
{{ end }}  '{{ $f }}'{{ end }}
]
`))
