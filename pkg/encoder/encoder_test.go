package encoder

import "testing"

func TestNoop(t *testing.T) {
	var c Codec = Noop{}
	for _, s := range []string{"", "plain", "a<b>", "100%"} {
		if got := c.EncodeField(s); got != s {
			t.Errorf("EncodeField(%q) = %q", s, got)
		}
		if got := c.DecodeValue(s); got != s {
			t.Errorf("DecodeValue(%q) = %q", s, got)
		}
	}
}

func TestForbiddenEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a<b>", "a%3Cb%3E"},
		{`say "hi"`, "say %22hi%22"},
		{"k=v;(x)'", "k%3Dv%3B%28x%29%27"},
		{"50%", "50%25"},
	}
	for _, tt := range tests {
		if got := (Forbidden{}).EncodeValue(tt.in); got != tt.want {
			t.Errorf("EncodeValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got := (Forbidden{}).EncodeField(tt.in); got != tt.want {
			t.Errorf("EncodeField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestForbiddenRoundTrip(t *testing.T) {
	inputs := []string{"", "x", "<script>alert('x')</script>", "a=b;c", "100% (sure)", "%zz"}
	for _, in := range inputs {
		enc := (Forbidden{}).EncodeField(in)
		if got := (Forbidden{}).DecodeField(enc); got != in {
			t.Errorf("DecodeField(EncodeField(%q)) = %q", in, got)
		}
	}
}

func TestForbiddenDecodeMalformed(t *testing.T) {
	for _, in := range []string{"%", "%4", "%zz", "a%"} {
		if got := (Forbidden{}).DecodeValue(in); got != in {
			t.Errorf("DecodeValue(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestForMode(t *testing.T) {
	if c, err := ForMode(""); err != nil || c != (Noop{}) {
		t.Errorf("ForMode(\"\") = %v, %v", c, err)
	}
	if c, err := ForMode("Forbidden"); err != nil || c != (Forbidden{}) {
		t.Errorf("ForMode(Forbidden) = %v, %v", c, err)
	}
	if _, err := ForMode("base64"); err == nil {
		t.Error("ForMode(base64) should fail")
	}
}
