package safety

import (
	"strings"
	"testing"
)

func TestEscapeForSend(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`echo hello`, `echo hello`},
		{`echo "hi"`, `echo \"hi\"`},
		{`echo $HOME`, `echo \$HOME`},
		{"echo `date`", "echo \\`date\\`"},
		{`a; b`, `a\; b`},
		{`a | b`, `a \| b`},
		{`a && b`, `a \&\& b`},
		{`back\slash`, `back\\slash`},
		{`it's`, `it'\''s`},
	}
	for _, c := range cases {
		if got := EscapeForSend(c.in); got != c.want {
			t.Errorf("EscapeForSend(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestEscapeForSend_OrderSensitivity(t *testing.T) {
	// A backslash followed by a metacharacter: the backslash pass runs
	// first, so the double-quote pass must not re-escape its output.
	got := EscapeForSend(`\"`)
	if got != `\\\"` {
		t.Fatalf(`EscapeForSend(\") = %q, want \\\"`, got)
	}
}

func TestEscapeForSend_NoUnescapedMeta(t *testing.T) {
	// Every shell metacharacter in the output must be preceded by a
	// backslash (or sit inside the quote-break idiom for single quotes),
	// so the target shell cannot see a bare command separator.
	in := `echo "x" $V ` + "`id`" + ` ; rm | cat & done`
	out := EscapeForSend(in)
	for i := 0; i < len(out); i++ {
		switch out[i] {
		case ';', '|', '&', '$', '`', '"':
			if i == 0 || out[i-1] != '\\' {
				t.Fatalf("unescaped %q at %d in %q", out[i], i, out)
			}
		}
	}
}

func TestValidate_DenylistedCommand(t *testing.T) {
	var v Validator
	if err := v.Validate("rm", []string{"-rf", "/"}); err == nil {
		t.Fatal("expected rm -rf / to be rejected")
	}
	if err := v.Validate("/bin/rm", []string{"-rf", "/tmp/x"}); err == nil {
		t.Fatal("expected path-prefixed rm to be rejected")
	}
}

func TestValidate_AllowedCommand(t *testing.T) {
	var v Validator
	if err := v.Validate("npm", []string{"run", "dev"}); err != nil {
		t.Fatalf("npm run dev rejected: %v", err)
	}
}

func TestValidate_DangerousOverride(t *testing.T) {
	v := Validator{AllowDangerous: true}
	if err := v.Validate("rm", []string{"-rf", "./build"}); err != nil {
		t.Fatalf("override did not permit rm: %v", err)
	}
}

func TestValidate_InjectionRejectedDespiteOverride(t *testing.T) {
	v := Validator{AllowDangerous: true}
	cases := [][]string{
		{"run", "dev;", "rm -rf /"},
		{"test", "| rm -rf /"},
		{"build", "&& sudo reboot"},
		{"x", "$(rm -rf /)"},
		{"x", "`kill -9 1`"},
	}
	for _, args := range cases {
		if err := v.Validate("npm", args); err == nil {
			t.Errorf("injection args %q not rejected", strings.Join(args, " "))
		}
	}
}

func TestCheck(t *testing.T) {
	var v Validator
	ok, reason := v.Check("npm", []string{"run", "dev"})
	if !ok || reason != "" {
		t.Fatalf("Check(npm run dev) = %v, %q", ok, reason)
	}
	ok, reason = v.Check("rm", []string{"-rf", "/"})
	if ok || reason == "" {
		t.Fatalf("Check(rm -rf /) = %v, %q; want rejection with reason", ok, reason)
	}
}

func TestFormatForDisplay(t *testing.T) {
	got := FormatForDisplay("npm", []string{"run", "dev", "--filter", "a b"})
	want := `npm run dev --filter 'a b'`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatForDisplay_EmptyArg(t *testing.T) {
	got := FormatForDisplay("echo", []string{""})
	if got != "echo ''" {
		t.Fatalf("got %q, want echo ''", got)
	}
}
