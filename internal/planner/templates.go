// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package planner

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// template is one planned section. body may contain a single %s for the
// prompt; an empty body means the prompt itself.
type template struct {
	title string
	body  string
}

func (t template) render(prompt string) (string, string) {
	switch {
	case t.body == "":
		return t.title, prompt
	case strings.Contains(t.body, "%s"):
		return t.title, fmt.Sprintf(t.body, prompt)
	default:
		return t.title, t.body
	}
}

var supported = []language.Tag{
	language.English, // fallback
	language.French,
	language.Spanish,
	language.German,
}

var matcher = language.NewMatcher(supported)

// Section order: introduction, background, two key points, example, tips,
// summary, conclusion.
var templates = map[language.Tag][MaxSegments]template{
	language.English: {
		{"Introduction", ""},
		{"Background", "Aspect 1 of “%s”."},
		{"Key point 1", "Aspect 2 of “%s”."},
		{"Key point 2", "Aspect 3 of “%s”."},
		{"Example", "A concrete example of “%s”."},
		{"Tips", "Quick tips related to the topic."},
		{"Summary", "Recap of the essentials."},
		{"Conclusion", "Brief conclusion and call to action."},
	},
	language.French: {
		{"Introduction", ""},
		{"Contexte", "Aspect 1 de « %s »."},
		{"Point clé 1", "Aspect 2 de « %s »."},
		{"Point clé 2", "Aspect 3 de « %s »."},
		{"Exemple", "Un exemple concret de « %s »."},
		{"Conseils", "Conseils rapides liés au sujet."},
		{"Résumé", "Récapitulatif des idées essentielles."},
		{"Conclusion", "Conclusion brève et appel à l’action."},
	},
	language.Spanish: {
		{"Introducción", ""},
		{"Contexto", "Aspecto 1 de «%s»."},
		{"Punto clave 1", "Aspecto 2 de «%s»."},
		{"Punto clave 2", "Aspecto 3 de «%s»."},
		{"Ejemplo", "Un ejemplo concreto de «%s»."},
		{"Consejos", "Consejos rápidos relacionados con el tema."},
		{"Resumen", "Resumen de lo esencial."},
		{"Conclusión", "Conclusión breve y llamado a la acción."},
	},
	language.German: {
		{"Einleitung", ""},
		{"Kontext", "Aspekt 1 von „%s“."},
		{"Schlüsselpunkt 1", "Aspekt 2 von „%s“."},
		{"Schlüsselpunkt 2", "Aspekt 3 von „%s“."},
		{"Beispiel", "Ein konkretes Beispiel für „%s“."},
		{"Tipps", "Schnelle Tipps zum Thema."},
		{"Zusammenfassung", "Zusammenfassung der wichtigsten Punkte."},
		{"Fazit", "Kurzes Fazit und Handlungsaufforderung."},
	},
}

// MatchLanguage maps a BCP 47 tag or Accept-Language style list onto a
// supported language. Unknown input yields English.
func MatchLanguage(lang string) language.Tag {
	_, idx := language.MatchStrings(matcher, lang)
	return supported[idx]
}

func templatesFor(lang string) [MaxSegments]template {
	return templates[MatchLanguage(lang)]
}
