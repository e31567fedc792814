package fingerprint

import (
	"strings"
	"testing"
)

func TestContentDeterministic(t *testing.T) {
	first := Content("# Title\n\nSome body text.")
	second := Content("# Title\n\nSome body text.")
	if first != second {
		t.Fatalf("same input produced different digests: %s vs %s", first, second)
	}
}

func TestContentFormat(t *testing.T) {
	digest := Content("hello")
	if !strings.HasPrefix(digest, Prefix) {
		t.Fatalf("digest %q missing prefix %q", digest, Prefix)
	}
	if got := len(digest) - len(Prefix); got != 64 {
		t.Fatalf("expected 64 hex characters, got %d", got)
	}
}

func TestContentSensitive(t *testing.T) {
	base := Content("# Title\n\nSome body text.")
	changed := Content("# Title\n\nSome body text!")
	if base == changed {
		t.Fatal("single byte change did not change the digest")
	}
}

func TestNormalizeEquivalences(t *testing.T) {
	canonical := Content("line one\nline two")

	cases := map[string]string{
		"crlf endings":       "line one\r\nline two",
		"cr endings":         "line one\rline two",
		"trailing spaces":    "line one   \nline two\t",
		"outer blank lines":  "\n\nline one\nline two\n\n\n",
		"mixed":              "\r\nline one  \r\nline two \r\n",
	}
	for name, input := range cases {
		if got := Content(input); got != canonical {
			t.Errorf("%s: expected digest to match canonical form", name)
		}
	}
}

func TestNormalizePreservesInterior(t *testing.T) {
	// Blank lines between paragraphs are content, not jitter.
	if Content("a\n\nb") == Content("a\nb") {
		t.Fatal("interior blank line should affect the digest")
	}
}

func TestDocumentMatchesWrittenShape(t *testing.T) {
	title := "Getting Started"
	content := "Install the tool.\n\nRun it."
	if Document(title, content) != Content("# "+title+"\n\n"+content) {
		t.Fatal("document digest must hash the generated body shape")
	}
}
