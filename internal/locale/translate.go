package locale

import (
	"fmt"
	"time"
)

// Pick returns the text matching the request language, defaulting to Portuguese.
func Pick(language, english, portuguese string) string {
	if NormalizeLanguage(language) == LanguageEnglish {
		if english != "" {
			return english
		}
		return portuguese
	}
	if portuguese != "" {
		return portuguese
	}
	return english
}

var portugueseMonths = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// FormatDate renders t as "02 jan 2006" in the given language.
func FormatDate(t time.Time, language string) string {
	if t.IsZero() {
		return ""
	}
	if NormalizeLanguage(language) == LanguageEnglish {
		return t.Format("02 Jan 2006")
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), portugueseMonths[t.Month()-1], t.Year())
}

// FormatEdited renders the edited marker shown under a post's header.
func FormatEdited(t time.Time, language string) string {
	if t.IsZero() {
		return ""
	}
	if NormalizeLanguage(language) == LanguageEnglish {
		return fmt.Sprintf("* edited on %s, at %s", FormatDate(t, language), t.Format("15:04"))
	}
	return fmt.Sprintf("* editado em %s, às %s", FormatDate(t, language), t.Format("15:04"))
}

// FormatReadingTime renders minutes as "4 min".
func FormatReadingTime(minutes int) string {
	return fmt.Sprintf("%d min", minutes)
}

// Text looks up a UI string by key. Unknown keys are returned as is.
func Text(language, key string) string {
	entry, ok := uiText[key]
	if !ok {
		return key
	}
	return Pick(language, entry[0], entry[1])
}

// uiText 每项为 {英文, 葡萄牙文}
var uiText = map[string][2]string{
	"load_more":       {"Load more posts", "Carregar mais posts"},
	"loading":         {"Loading...", "Carregando..."},
	"exit_preview":    {"Exit Preview mode", "Sair do modo Preview"},
	"previous_post":   {"Previous post", "Post anterior"},
	"next_post":       {"Next post", "Próximo post"},
	"not_found":       {"Post not found", "Post não encontrado"},
	"back_home":       {"Back to home", "Voltar para a home"},
	"load_failed":     {"Could not load more posts.", "Não foi possível carregar mais posts."},
	"try_again":       {"Try again", "Tentar novamente"},
	"server_error":    {"Something went wrong", "Algo deu errado"},
	"invalid_preview": {"Invalid preview link", "Link de preview inválido"},
}
