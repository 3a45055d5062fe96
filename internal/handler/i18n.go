package handler

import "github.com/spacetraveling/internal/locale"

// fixedTitleMap 以葡语标题为键，值为英文标题
var fixedTitleMap = map[string]string{
	"Home":                "Home",
	"Post não encontrado": "Post not found",
	"Erro":                "Error",
	"Preview inválido":    "Invalid preview",
}

func localizeFixedTitle(language, title string) string {
	if title == "" {
		return title
	}
	normalized := locale.NormalizeLanguage(language)
	if normalized == locale.LanguageEnglish {
		if mapped, ok := fixedTitleMap[title]; ok {
			return mapped
		}
		return title
	}
	for key, value := range fixedTitleMap {
		if value == title {
			return key
		}
	}
	return title
}
