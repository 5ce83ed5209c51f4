package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// DefaultLanguage is used when a reporter's locale is unknown or unsupported.
var DefaultLanguage = language.English

var translations = map[language.Tag]map[string]string{
	language.German: {
		"User profile":      "Benutzerprofil",
		"Extension":         "Erweiterung",
		"Theme":             "Theme",
		"Dictionary":        "Wörterbuch",
		"Language pack":     "Sprachpaket",
		"Collection":        "Sammlung",
		"Review":            "Bewertung",
		"the review for %s": "die Bewertung für %s",
	},
	language.French: {
		"User profile":      "Profil utilisateur",
		"Extension":         "Extension",
		"Theme":             "Thème",
		"Dictionary":        "Dictionnaire",
		"Language pack":     "Paquet de langue",
		"Collection":        "Collection",
		"Review":            "Critique",
		"the review for %s": "la critique de %s",
	},
}

// Locales matches reporter locales against the languages notifications are translated into.
type Locales struct {
	supported []language.Tag
	matcher   language.Matcher
	catalog   *catalog.Builder
}

func NewLocales() (*Locales, error) {
	supported := []language.Tag{DefaultLanguage}
	cat := catalog.NewBuilder(catalog.Fallback(DefaultLanguage))
	for tag, msgs := range translations {
		supported = append(supported, tag)
		for key, msg := range msgs {
			if err := cat.SetString(tag, key, msg); err != nil {
				return nil, err
			}
		}
	}
	return &Locales{
		supported: supported,
		matcher:   language.NewMatcher(supported),
		catalog:   cat,
	}, nil
}

// Match picks the supported language closest to an application locale like "de" or "pt-BR".
func (l *Locales) Match(locale string) language.Tag {
	if locale == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := l.matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	return l.supported[idx]
}

// Printer returns a new printer for tag. Each message gets its own, so one recipient's language never
// carries over into the next message.
func (l *Locales) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(l.catalog))
}

// templateDir is the directory localized templates for tag live under.
func templateDir(tag language.Tag) string {
	if tag == DefaultLanguage {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
