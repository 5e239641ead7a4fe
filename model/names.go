// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package model

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	nonWord        = regexp.MustCompile(`[^A-Za-z0-9]+`)
	nonPath        = regexp.MustCompile(`[^A-Za-z0-9/]+`)
	upperRun       = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	lowerThenUpper = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// Camelize converts a string like "send_email" to "SendEmail".  Any
// run of non-alphanumeric characters is a word break, so "who's
// online" becomes "WhoSOnline".
func Camelize(s string) string {
	var b strings.Builder
	for _, w := range strings.Fields(nonWord.ReplaceAllString(s, " ")) {
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(w[size:])
	}
	return b.String()
}

// LCamelize is Camelize with a lower-case first letter, so
// "date published" becomes "datePublished".
func LCamelize(s string) string {
	c := Camelize(s)
	if c == "" {
		return c
	}
	r, size := utf8.DecodeRuneInString(c)
	return string(unicode.ToLower(r)) + c[size:]
}

// Underscore converts a CamelCased or ordinary string into its
// "underscored_version", which is suitable for use in URLs.
func Underscore(s string) string {
	s = strings.Replace(s, "::", "/", -1)
	s = upperRun.ReplaceAllString(s, "${1}_${2}")
	s = lowerThenUpper.ReplaceAllString(s, "${1}_${2}")
	s = nonPath.ReplaceAllString(s, "_")
	return strings.ToLower(s)
}

// SplitWords breaks a CamelCased or underscored name into
// space-separated lower-case words: "UserCommentForm" becomes
// "user comment form".
func SplitWords(s string) string {
	return strings.Join(strings.Fields(strings.Replace(Underscore(s), "_", " ", -1)), " ")
}

// Title upper-cases the first letter of every space-separated word.
func Title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
