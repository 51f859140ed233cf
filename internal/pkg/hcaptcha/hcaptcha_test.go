package hcaptcha

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func withSiteverify(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	orig := siteverifyURL
	siteverifyURL = srv.URL
	t.Cleanup(func() {
		siteverifyURL = orig
		srv.Close()
	})
}

func TestVerifySkipsWithoutSecret(t *testing.T) {
	t.Setenv("HCAPTCHA_SECRET", "")

	ok, err := Verify("anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to be skipped without a secret")
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	t.Setenv("HCAPTCHA_SECRET", "0xsecret")

	ok, err := Verify("")
	if ok || err == nil {
		t.Fatalf("expected empty token to fail, got ok=%v err=%v", ok, err)
	}
}

func TestVerifySuccess(t *testing.T) {
	t.Setenv("HCAPTCHA_SECRET", "0xsecret")
	withSiteverify(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	})

	ok, err := Verify("tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed")
	}
}

func TestVerifyFailureKeepsErrorCodesVerbatim(t *testing.T) {
	t.Setenv("HCAPTCHA_SECRET", "0xsecret")
	withSiteverify(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response", "code-with-%d-inside"]}`))
	})

	ok, err := Verify("tok")
	if ok || err == nil {
		t.Fatalf("expected failure, got ok=%v err=%v", ok, err)
	}
	if !strings.Contains(err.Error(), "invalid-input-response") {
		t.Fatalf("expected error codes in message, got %q", err)
	}
	if !strings.Contains(err.Error(), "code-with-%d-inside") {
		t.Fatalf("expected error codes untouched by formatting, got %q", err)
	}
}
