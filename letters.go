/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"maps"
	"math/rand/v2"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Folder normalizes player input for one locale. Turkish needs this:
// "I" lowers to "ı" and "İ" lowers to "i", which strings.ToLower gets wrong.
//
// A cases.Caser is stateful, so a fresh one is built per call.
type Folder struct {
	tag language.Tag
}

func newFolder(tag language.Tag) Folder {
	return Folder{tag: tag}
}

// Fold trims and lower-cases s.
func (f Folder) Fold(s string) string {
	return cases.Lower(f.tag).String(strings.TrimSpace(s))
}

// Title renders a category the way it is shown to players ("şehir" -> "Şehir").
func (f Folder) Title(s string) string {
	return cases.Title(f.tag).String(strings.TrimSpace(s))
}

// Matches reports whether a normalized answer begins with the round letter.
func (f Folder) Matches(normalized string, letter string) bool {
	l := f.Fold(letter)
	if normalized == "" || l == "" {
		return false
	}

	return strings.HasPrefix(normalized, l)
}

// canonicalCategories title-cases the requested categories, drops blanks and
// removes entries that fold to the same key. Order is preserved.
func (f Folder) canonicalCategories(requested []string) []string {
	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))

	for _, c := range requested {
		key := f.Fold(c)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f.Title(c))
	}

	return out
}

// canonicalAnswers re-keys a submission onto the room's categories. Keys that
// do not fold to a known category are dropped, as are duplicates after folding.
func (f Folder) canonicalAnswers(categories []string, answers map[string]string) map[string]string {
	byKey := make(map[string]string, len(categories))
	for _, c := range categories {
		byKey[f.Fold(c)] = c
	}

	out := make(map[string]string, len(categories))
	for _, k := range slices.Sorted(maps.Keys(answers)) {
		v := answers[k]
		c, ok := byKey[f.Fold(k)]
		if !ok {
			continue
		}
		if _, dup := out[c]; dup {
			continue
		}
		out[c] = v
	}

	return out
}

func randomLetter(alphabet []rune) string {
	if len(alphabet) == 0 {
		return ""
	}

	return string(alphabet[rand.IntN(len(alphabet))])
}
