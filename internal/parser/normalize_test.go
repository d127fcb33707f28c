package parser

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	raw := "<html><head><title>x</title><style>p{}</style></head><body><p>Voc=C3=AA rece=\nbeu</p>" +
		"<p>R&#36; 10,00 &amp; mais =ZZ</p><script>alert(1)</script></body></html>"
	n := Normalize([]byte(raw))

	if !strings.Contains(n.Decoded, "<p>Você recebeu</p>") {
		t.Errorf("decoded view missing joined text: %q", n.Decoded)
	}
	if strings.Contains(n.Text, "<p>") || strings.Contains(n.Text, "alert") || strings.Contains(n.Text, "p{}") {
		t.Errorf("markup or script survived: %q", n.Text)
	}
	if !strings.Contains(n.Text, "Você recebeu") {
		t.Errorf("text view = %q", n.Text)
	}
	if !strings.Contains(n.Text, "R$ 10,00 & mais =ZZ") {
		t.Errorf("entities or invalid escapes mishandled: %q", n.Text)
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	got := Sanitize("  ANA\x07 <b>SILVA</b>\x1b  ")
	if got != "ANA &lt;b&gt;SILVA&lt;/b&gt;" {
		t.Errorf("Sanitize = %q", got)
	}
}
