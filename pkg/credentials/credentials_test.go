package credentials

import "testing"

func TestBasicEncode(t *testing.T) {
	b := NewBasic("Aladdin", "open sesame")
	if got, want := b.HeaderValue(), "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ=="; got != want {
		t.Fatalf("HeaderValue() = %q, want %q", got, want)
	}
}

func TestBasicEncodeNoPassword(t *testing.T) {
	b := NewBasicUnprotected("Aladdin")
	if got, want := b.HeaderValue(), "Basic QWxhZGRpbjo="; got != want {
		t.Fatalf("HeaderValue() = %q, want %q", got, want)
	}
}

func TestBasicDecode(t *testing.T) {
	b, err := ParseBasic("Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Username() != "Aladdin" || b.Password() != "open sesame" {
		t.Fatalf("got %q/%q", b.Username(), b.Password())
	}
}

func TestBasicDecodeCaseInsensitiveScheme(t *testing.T) {
	b, err := ParseBasic("basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Username() != "Aladdin" {
		t.Fatalf("username = %q", b.Username())
	}
}

func TestBasicDecodeExtraWhitespace(t *testing.T) {
	b, err := ParseBasic("Basic  QWxhZGRpbjpvcGVuIHNlc2FtZQ==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Username() != "Aladdin" {
		t.Fatalf("username = %q", b.Username())
	}
}

func TestBasicDecodeNoPassword(t *testing.T) {
	b, err := ParseBasic("Basic QWxhZGRpbjo=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Username() != "Aladdin" || b.Password() != "" {
		t.Fatalf("got %q/%q", b.Username(), b.Password())
	}
}

func TestBasicDecodeEmptyIsError(t *testing.T) {
	if _, err := ParseBasic(""); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestBasicDecodeMissingColonIsError(t *testing.T) {
	// base64("nocolon")
	if _, err := ParseBasic("Basic bm9jb2xvbg=="); err == nil {
		t.Fatalf("expected an error for a missing colon separator")
	}
}

func TestBasicRoundTripPreservesExtraColons(t *testing.T) {
	b, err := ParseBasic(NewBasic("user", "pass:word").HeaderValue())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Username() != "user" || b.Password() != "pass:word" {
		t.Fatalf("got %q/%q", b.Username(), b.Password())
	}
}

func TestBearerHeaderValue(t *testing.T) {
	b, err := NewBearer("abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := b.HeaderValue(), "Bearer abc123"; got != want {
		t.Fatalf("HeaderValue() = %q, want %q", got, want)
	}
}

func TestBearerRejectsControlCharacters(t *testing.T) {
	if _, err := NewBearer("abc\r\ndef"); err == nil {
		t.Fatalf("expected an error for a CRLF-containing token")
	}
}

func TestBearerRejectsEmpty(t *testing.T) {
	if _, err := NewBearer(""); err == nil {
		t.Fatalf("expected an error for an empty token")
	}
}

func TestParseBearer(t *testing.T) {
	b, err := ParseBearer("Bearer xyz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Token() != "xyz" {
		t.Fatalf("Token() = %q", b.Token())
	}
}
