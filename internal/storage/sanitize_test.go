package storage

import "testing"

func TestSanitizeConfidence(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{"zero", 0.0, 0.0},
		{"one", 1.0, 1.0},
		{"negative clamped", -0.5, 0.0},
		{"above one clamped", 1.3, 1.0},
		{"excess precision rounded", 0.9632000000000001, 0.9632},
		{"rounds half up", 0.12345, 0.1235},
		{"four decimals unchanged", 0.5678, 0.5678},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeConfidence(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeConfidence(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean json passes through", `{"text":"hello"}`, `{"text":"hello"}`},
		{"null escape removed", `{"text":"a\u0000b"}`, `{"text":"ab"}`},
		{"control escape replaced", `{"text":"a\u0001b"}`, `{"text":"a b"}`},
		{"uppercase hex replaced", `{"text":"a\u001Fb"}`, `{"text":"a b"}`},
		{"repeated nulls removed", `{"a":"\u0000\u0000"}`, `{"a":""}`},
		{"printable escapes kept", `{"text":"caf\u00e9"}`, `{"text":"caf\u00e9"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(sanitizeJSONForPostgres([]byte(tt.input)))
			if got != tt.want {
				t.Errorf("sanitizeJSONForPostgres(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
