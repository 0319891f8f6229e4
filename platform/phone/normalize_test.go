package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(11) 98765-4321", "+5511987654321"},
		{"+55 21 99876-5432", "+5521998765432"},
		{"  ", ""},
		{"abc", "abc"},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhatsAppJID(t *testing.T) {
	if got := WhatsAppJID("(11) 98765-4321"); got != "5511987654321@s.whatsapp.net" {
		t.Fatalf("unexpected jid %q", got)
	}
	if got := WhatsAppJID("123"); got != "" {
		t.Fatalf("expected empty jid for invalid number, got %q", got)
	}
}
