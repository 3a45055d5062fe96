package locale

import (
	"testing"
	"time"
)

func TestNormalizeLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "pt", want: LanguagePortuguese},
		{input: "pt-BR", want: LanguagePortuguese},
		{input: "PT_br", want: LanguagePortuguese},
		{input: "en", want: LanguageEnglish},
		{input: "en-US", want: LanguageEnglish},
		{input: "fr", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := NormalizeLanguage(tc.input); got != tc.want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestLanguageFromCountryCode(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "BR", want: LanguagePortuguese},
		{input: "pt", want: LanguagePortuguese},
		{input: "US", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := LanguageFromCountryCode(tc.input); got != tc.want {
			t.Fatalf("LanguageFromCountryCode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestLanguageFromAcceptLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "pt-BR,pt;q=0.9", want: LanguagePortuguese},
		{input: "pt-PT", want: LanguagePortuguese},
		{input: "en-US,en;q=0.9", want: LanguageEnglish},
		{input: "en-GB", want: LanguageEnglish},
		{input: "fr-FR,en;q=0.5", want: LanguageEnglish},
		{input: "ja-JP", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range cases {
		if got := LanguageFromAcceptLanguage(tc.input); got != tc.want {
			t.Fatalf("LanguageFromAcceptLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestPreferenceForLanguage(t *testing.T) {
	if got := PreferenceForLanguage("en"); got.HTMLLang != "en-US" || got.Locale != "en_US" {
		t.Fatalf("unexpected english preference: %+v", got)
	}
	if got := PreferenceForLanguage("de"); got.Language != LanguagePortuguese || got.HTMLLang != "pt-BR" {
		t.Fatalf("expected portuguese fallback, got %+v", got)
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2021, time.March, 19, 15, 49, 0, 0, time.UTC)
	if got := FormatDate(ts, "pt"); got != "19 mar 2021" {
		t.Fatalf("pt date = %q", got)
	}
	if got := FormatDate(time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC), ""); got != "01 fev 2021" {
		t.Fatalf("default date = %q", got)
	}
	if got := FormatDate(ts, "en"); got != "19 Mar 2021" {
		t.Fatalf("en date = %q", got)
	}
	if got := FormatDate(time.Time{}, "pt"); got != "" {
		t.Fatalf("zero date = %q", got)
	}
}

func TestFormatEdited(t *testing.T) {
	ts := time.Date(2021, time.March, 19, 15, 49, 0, 0, time.UTC)
	if got := FormatEdited(ts, "pt"); got != "* editado em 19 mar 2021, às 15:49" {
		t.Fatalf("pt edited = %q", got)
	}
	if got := FormatEdited(ts, "en"); got != "* edited on 19 Mar 2021, at 15:49" {
		t.Fatalf("en edited = %q", got)
	}
}

func TestText(t *testing.T) {
	if got := Text("pt", "load_more"); got != "Carregar mais posts" {
		t.Fatalf("pt load_more = %q", got)
	}
	if got := Text("en", "exit_preview"); got != "Exit Preview mode" {
		t.Fatalf("en exit_preview = %q", got)
	}
	if got := Text("pt", "missing.key"); got != "missing.key" {
		t.Fatalf("unknown key = %q", got)
	}
}
