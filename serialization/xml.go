// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package serialization

import (
	"encoding/xml"
	"io"
	"sort"

	"github.com/diffeo/go-modelrest/model"
)

// EncodeXML writes a deconstructed payload as an XML document with a
// <response> root.  Mapping keys become elements, sequence items
// become <resource> elements, and scalars become character data.
func EncodeXML(w io.Writer, v interface{}) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	if err := encodeElement(enc, "response", v); err != nil {
		return err
	}
	return enc.Flush()
}

func encodeElement(enc *xml.Encoder, name string, v interface{}) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeContent(enc, v); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func encodeContent(enc *xml.Encoder, v interface{}) error {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := encodeElement(enc, k, t[k]); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		for _, item := range t {
			if err := encodeElement(enc, "resource", item); err != nil {
				return err
			}
		}
		return nil
	}
	return enc.EncodeToken(xml.CharData(model.ToString(v)))
}
