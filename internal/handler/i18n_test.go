package handler

import "testing"

func TestLocalizeFixedTitle(t *testing.T) {
	tests := []struct {
		name     string
		language string
		input    string
		want     string
	}{
		{
			name:     "pt to en",
			language: "en",
			input:    "Post não encontrado",
			want:     "Post not found",
		},
		{
			name:     "en to pt",
			language: "pt",
			input:    "Error",
			want:     "Erro",
		},
		{
			name:     "post titles stay",
			language: "en",
			input:    "Como utilizar Hooks",
			want:     "Como utilizar Hooks",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := localizeFixedTitle(tc.language, tc.input)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
