package transcription

import (
	"slices"
	"strings"
)

const (
	AutoLanguage    = "auto"
	DefaultLanguage = "kn"
	fallbackAdapter = "kan"
)

// adapterCodes maps ISO 639-1 (or 639-3 where no 639-1 code exists) tags to
// the recognition model's language adapters.
var adapterCodes = map[string]string{
	"as":  "asm",
	"bn":  "ben",
	"brx": "brx",
	"doi": "doi",
	"gu":  "guj",
	"hi":  "hin",
	"kn":  "kan",
	"ks":  "kas",
	"kok": "kok",
	"mai": "mai",
	"ml":  "mal",
	"mni": "mni",
	"mr":  "mar",
	"ne":  "nep",
	"or":  "ori",
	"pa":  "pan",
	"sa":  "san",
	"sat": "sat",
	"sd":  "snd",
	"ta":  "tam",
	"te":  "tel",
	"ur":  "urd-script_arabic",
	"en":  "eng",
	"fr":  "fra",
	"es":  "spa",
	"de":  "deu",
	"it":  "ita",
	"pt":  "por",
	"ru":  "rus",
	"zh":  "cmn",
	"ja":  "jpn",
	"ko":  "kor",
	"ar":  "ara",
	"nl":  "nld",
	"pl":  "pol",
	"id":  "ind",
	"vi":  "vie",
	"th":  "tha",
}

type Languages struct {
	def string
}

func NewLanguages(defaultTag string) Languages {
	defaultTag = normalizeTag(defaultTag)
	if _, ok := adapterCodes[defaultTag]; !ok {
		defaultTag = DefaultLanguage
	}
	return Languages{def: defaultTag}
}

// Resolve returns hint when the model supports it and the configured default
// otherwise. "auto" and empty hints resolve to the default.
func (l Languages) Resolve(hint string) string {
	hint = normalizeTag(hint)
	if _, ok := adapterCodes[hint]; ok {
		return hint
	}
	if l.def == "" {
		return DefaultLanguage
	}
	return l.def
}

func (l Languages) Adapter(hint string) string {
	if code, ok := adapterCodes[l.Resolve(hint)]; ok {
		return code
	}
	return fallbackAdapter
}

func (l Languages) Default() string {
	return l.Resolve("")
}

func IsAuto(tag string) bool {
	tag = normalizeTag(tag)
	return tag == "" || tag == AutoLanguage
}

func Supported() []string {
	tags := make([]string, 0, len(adapterCodes))
	for tag := range adapterCodes {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
