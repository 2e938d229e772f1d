package comments

import (
	"strings"
	"testing"
)

func TestMalicious(t *testing.T) {
	cases := map[string]bool{
		"hola, buen post":                      false,
		"<script>alert(1)</script>":            true,
		"<SCRIPT>\nalert(1)\n</SCRIPT>":        true,
		"click javascript:void(0)":             true,
		`<img src=x onerror=alert(1)>`:         true,
		"data:text/html;base64,AAAA":           true,
		"vbscript:msgbox":                      true,
		"<iframe src=//evil>":                  true,
		"<object data=x>":                      true,
		"<embed src=x>":                        true,
		"<form action=x>":                      true,
		"width: expression(alert(1))":          true,
		"background: url( javascript:alert())": true,
		"x = y":                                false,
	}
	for in, want := range cases {
		if got := Malicious(in); got != want {
			t.Errorf("Malicious(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  hola   mundo \n\t bien  ", "hola mundo bien"},
		{"<b>negrita</b> y <i>cursiva</i>", "negrita y cursiva"},
		{"a &amp; b &lt;c&gt;", "a b c"},
		{`dijo "hola" y 'chao'`, "dijo hola y chao"},
		{"solo < y > sueltos", "solo sueltos"},
		{"5 > 3", "5 3"},
	}
	for _, tc := range cases {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeNickname(t *testing.T) {
	if got := SanitizeNickname("   "); got != DefaultNickname {
		t.Fatalf("blank nickname = %q, want %q", got, DefaultNickname)
	}
	if got := SanitizeNickname(` <b>"Pipe"</b> `); got != "Pipe" {
		t.Fatalf("quoted nickname = %q", got)
	}
	long := strings.Repeat("ñ", 40)
	if got := SanitizeNickname(long); got != strings.Repeat("ñ", 30) {
		t.Fatalf("long nickname not capped at 30 runes: %q", got)
	}
}

func TestSpam(t *testing.T) {
	if !Spam("Gana dinero en el CASINO") {
		t.Fatal("expected casino to be spam")
	}
	if !Spam("cheap loans here") {
		t.Fatal("expected loan to be spam")
	}
	if Spam("excelente artículo sobre startups") {
		t.Fatal("unexpected spam verdict")
	}
}
