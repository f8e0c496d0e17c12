package redaction

import (
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"
)

// piiText is short text drawn from the characters the PII patterns match on.
type piiText string

func (piiText) Generate(r *rand.Rand, _ int) reflect.Value {
	const alphabet = "0123456789.-@ ()+abceomBr"

	b := make([]byte, r.Intn(40))
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}

	return reflect.ValueOf(piiText(b))
}

// Property: a sensitive key is masked at any nesting depth regardless of case.
func TestProperty_SensitiveKeyMaskedAtDepth(t *testing.T) {
	e := NewEngine()
	keys := e.SensitiveKeys()

	f := func(depth uint8, pick uint8, upper bool, secret string) bool {
		key := keys[int(pick)%len(keys)]
		if upper {
			key = strings.ToUpper(key)
		}

		var value any = map[string]any{key: secret, "plain": "visible"}
		levels := int(depth % 10)
		for i := 0; i < levels; i++ {
			value = map[string]any{"level": []any{value}}
		}

		out := e.Sanitize(value)
		for i := 0; i < levels; i++ {
			out = out.(map[string]any)["level"].([]any)[0]
		}

		leaf := out.(map[string]any)
		return leaf[key] == Marker && leaf["plain"] == "visible"
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Errorf("sensitive key property failed: %v", err)
	}
}

// Property: sanitized strings never exceed the preview cap and stay valid UTF-8.
func TestProperty_TruncationBounded(t *testing.T) {
	f := func(limit uint8, s string) bool {
		capBytes := int(limit%64) + 1
		e := NewEngine(WithMaxPreview(capBytes))

		out, ok := e.Sanitize(s).(string)
		if !ok {
			return false
		}

		return len(out) <= capBytes && utf8.ValidString(out)
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Errorf("truncation property failed: %v", err)
	}
}

// Property: an e-mail embedded in arbitrary text never survives masking.
func TestProperty_EmailNeverSurvives(t *testing.T) {
	e := NewEngine()

	f := func(user, domain uint16, prefix string) bool {
		email := "user" + strconv.Itoa(int(user)) + "@host" + strconv.Itoa(int(domain)) + ".com"
		out := e.MaskText(strings.ReplaceAll(prefix, "@", "") + " " + email + " tail")
		return !strings.Contains(out, email)
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 300}); err != nil {
		t.Errorf("email property failed: %v", err)
	}
}

// Property: no PII pattern matches a sanitized string, whatever the cap.
func TestProperty_NoPatternSurvivesSanitize(t *testing.T) {
	f := func(limit uint8, s piiText) bool {
		e := NewEngine(WithMaxPreview(int(limit%32) + 1))

		out, ok := e.Sanitize(string(s)).(string)
		if !ok {
			return false
		}

		return !e.matches(out)
	}

	if err := quick.Check(f, &quick.Config{MaxCount: 2000}); err != nil {
		t.Errorf("pii masking property failed: %v", err)
	}
}
