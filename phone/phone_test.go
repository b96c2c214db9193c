package phone

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		cc   string
		want string
	}{
		{"double zero prefix", "0039333123456", "39", "+39333123456"},
		{"national number", "3331234567", "39", "+393331234567"},
		{"already international", "+393331234567", "39", "+393331234567"},
		{"empty", "", "39", ""},
		{"whitespace only", "   ", "39", ""},
		{"no digits", "n/a", "39", ""},
		{"leading zero stripped", "0612345678", "33", "+33612345678"},
		{"parenthesized prefix removed", "(0039) 333-1234567", "39", "+393331234567"},
		{"punctuation removed", "333.123.4567", "39", "+393331234567"},
		{"plus kept with spaces", "+39 333 123 4567", "39", "+393331234567"},
		{"country code with plus", "3331234567", "+39", "+393331234567"},
		{"country code with double zero", "3331234567", "0039", "+393331234567"},
		{"group after prefix", "+39 (0) 333 1234567", "39", "+393331234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw, tt.cc); got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.cc, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"0039333123456", "3331234567", "(0039) 333 1234567", "0612345678"}
	for _, in := range inputs {
		once := Normalize(in, "39")
		if twice := Normalize(once, "39"); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
