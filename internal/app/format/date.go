package format

import (
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

// Layouts used by the pages, in time.Format reference notation. Month and
// weekday names are translated by monday.
const (
	EpisodeDateLayout = "2 Jan 06"        // 8 jan 21
	HeaderDateLayout  = "Mon, 02 January" // qui, 22 abril
)

// Locale pairs a language tag with the monday locale that names months and
// weekdays in it.
type Locale struct {
	Tag    language.Tag
	Monday monday.Locale
}

var (
	// PortugueseBR is the default locale.
	PortugueseBR = Locale{Tag: language.BrazilianPortuguese, Monday: monday.LocalePtBR}

	// English is the en locale.
	English = Locale{Tag: language.English, Monday: monday.LocaleEnUS}

	locales = []Locale{PortugueseBR, English}
	matcher = language.NewMatcher([]language.Tag{PortugueseBR.Tag, English.Tag})
)

// LookupLocale resolves a BCP 47 tag such as "pt-BR" or "en-US" to one of
// the built-in locales. Unknown or malformed tags resolve to PortugueseBR.
func LookupLocale(tag string) Locale {
	t, err := language.Parse(tag)
	if err != nil {
		return PortugueseBR
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return PortugueseBR
	}
	return locales[idx]
}

// Date formats t with a time.Format layout, translating month and weekday
// names into loc.
func Date(t time.Time, layout string, loc Locale) string {
	return monday.Format(t, layout, loc.Monday)
}

// Today formats now for the site header.
func Today(now time.Time, loc Locale) string {
	return Date(now, HeaderDateLayout, loc)
}
