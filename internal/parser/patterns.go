package parser

import (
	"regexp"

	"pixwebhook/internal/money"
)

// rule is one named extraction pattern. The first capture group is the value.
// Rules that run against the decoded view see the message before markup is
// stripped; all others run against the plain text.
type rule struct {
	name    string
	pattern *regexp.Regexp
	decoded bool
	// accept rejects a captured value so the cascade moves on to the next rule
	accept func(string) bool
}

// cascade is an ordered rule list; the first rule producing an accepted value wins
type cascade []rule

// first returns the value and rule name of the first accepted match
func (c cascade) first(n Normalized) (value, ruleName string, ok bool) {
	for _, r := range c {
		text := n.Text
		if r.decoded {
			text = n.Decoded
		}
		m := r.pattern.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v := collapseSpace(m[1])
		if v == "" {
			continue
		}
		if r.accept != nil && !r.accept(v) {
			continue
		}
		return v, r.name, true
	}
	return "", "", false
}

// Payer name rules. Later entries cover malformed variants seen in the wild:
// collapsed whitespace, <strong> wrappers, names wrapped across lines and broken
// charset decoding of accented letters.
var nameRules = map[Class]cascade{
	ClassDirect: {
		{
			// runs on stripped text: markup quoted as &lt;b&gt; comes out as a literal <b>
			name:    "direct_bold",
			pattern: regexp.MustCompile(`(?i)Voc[êe]\s+recebeu\s+uma\s+transfer[êe]ncia\s+de\s+<b>([^<]+)</b>`),
		},
		{
			name:    "direct_bold_markup",
			pattern: regexp.MustCompile(`(?i)Voc[êe]\s+recebeu\s+uma\s+transfer[êe]ncia\s+de\s*<(?:b|strong)[^>]*>\s*([^<]+?)\s*</(?:b|strong)>`),
			decoded: true,
		},
		{
			name:    "direct_minified_2025",
			pattern: regexp.MustCompile(`(?i)pelo\s+Pix\s+de\s*([A-Z\s.\-]+?)\s+e\s+o\s+valor`),
		},
		{
			name:    "direct_minified_accented",
			pattern: regexp.MustCompile(`(?i)pelo\s*Pix\s*de\s*([\p{L}\s.'\-]+?)\s*e\s+o\s+valor`),
		},
		{
			name:    "direct_plain",
			pattern: regexp.MustCompile(`(?i)Voc\S{0,2}\s*recebeu\s*uma\s*transfer\S{1,2}ncia\s*de\s*([\p{L}][\p{L}\s'\-]*?)\s*(?:\.|,|\n\s*\n|$)`),
		},
	},
	ClassForwarded: {
		{
			name:    "forwarded_asterisk",
			pattern: regexp.MustCompile(`(?i)transfer[êe]ncia\s+pelo\s+Pix\s+de\s+\*([^*]+)\*`),
		},
		{
			name:    "forwarded_asterisk_loose",
			pattern: regexp.MustCompile(`(?i)pelo\s*Pix\s*de\s*\*\s*([^*]+?)\s*\*`),
		},
		{
			name:    "forwarded_underscore",
			pattern: regexp.MustCompile(`(?i)pelo\s*Pix\s*de\s*_\s*([^_]+?)\s*_`),
		},
	},
}

// Amount rules; every candidate must pass Brazilian notation validation
var amountRules = map[Class]cascade{
	ClassDirect: {
		{
			name:    "direct_valor_recebido",
			pattern: regexp.MustCompile(`(?i)Valor\s+recebido[^R]*R\$\s*([0-9]+,\d{2})`),
			accept:  money.ValidBRL,
		},
		{
			name:    "direct_valor_recebido_thousands",
			pattern: regexp.MustCompile(`(?i)Valor\s*recebido[^R]*R\$\s*(\d{1,3}(?:\.\d{3})+,\d{2})`),
			accept:  money.ValidBRL,
		},
		{
			name:    "direct_e_o_valor",
			pattern: regexp.MustCompile(`(?i)e\s+o\s+valor\s+(?:de\s+)?R\$\s*([\d.]+,\d{2})`),
			accept:  money.ValidBRL,
		},
	},
	ClassForwarded: {
		{
			name:    "forwarded_asterisk",
			pattern: regexp.MustCompile(`(?i)\*R\$\s*([0-9]+,\d{2})\*`),
			accept:  money.ValidBRL,
		},
		{
			name:    "forwarded_asterisk_thousands",
			pattern: regexp.MustCompile(`(?i)\*\s*R\$\s*([\d.]+,\d{2})\s*\*`),
			accept:  money.ValidBRL,
		},
	},
}

// Day, three-letter month and 24-hour time: "15 JAN às 14:32"
var timestampPattern = regexp.MustCompile(`(?i)(\d{1,2}\s+[A-Z]{3})\s+[àa]s\s+(\d{2}:\d{2})`)

// cascadesFor returns the rule lists tried for a class, in order.
// Forwarded messages fall back to the direct rules; the inverse never happens.
func cascadesFor(rules map[Class]cascade, class Class) []cascade {
	if class == ClassForwarded {
		return []cascade{rules[ClassForwarded], rules[ClassDirect]}
	}
	return []cascade{rules[ClassDirect]}
}
