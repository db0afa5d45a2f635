package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"google.golang.org/api/idtoken"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/tick", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, ok := BearerToken(r)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}

func TestParseStaticTokens(t *testing.T) {
	v, err := ParseStaticTokens(" t1:alice , t2:bob,")
	if err != nil {
		t.Fatalf("ParseStaticTokens: %v", err)
	}
	uid, err := v.Verify(context.Background(), "t2")
	if err != nil || uid != "bob" {
		t.Fatalf("Verify(t2) = %q, %v", uid, err)
	}
	if _, err := v.Verify(context.Background(), "t3"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	for _, bad := range []string{"", "nocolon", "t1:", ":alice", "t1:a,t1:b"} {
		if _, err := ParseStaticTokens(bad); err == nil {
			t.Errorf("ParseStaticTokens(%q) should fail", bad)
		}
	}
}

func TestGoogleVerifier(t *testing.T) {
	if _, err := NewGoogleVerifier(""); err == nil {
		t.Fatal("empty audience should be rejected")
	}
	v, err := NewGoogleVerifier("simbank")
	if err != nil {
		t.Fatal(err)
	}

	v.validate = func(_ context.Context, token, aud string) (*idtoken.Payload, error) {
		if aud != "simbank" {
			t.Errorf("audience = %q", aud)
		}
		switch token {
		case "good":
			return &idtoken.Payload{Subject: "1234567890"}, nil
		case "nosub":
			return &idtoken.Payload{}, nil
		default:
			return nil, errors.New("idtoken: invalid token")
		}
	}

	uid, err := v.Verify(context.Background(), "good")
	if err != nil || uid != "1234567890" {
		t.Fatalf("Verify(good) = %q, %v", uid, err)
	}
	for _, tok := range []string{"nosub", "forged"} {
		if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Verify(%s) err = %v", tok, err)
		}
	}
}

func TestNewSelectsMode(t *testing.T) {
	if v, err := New("", "t:u", ""); err != nil {
		t.Fatalf("default mode: %v", err)
	} else if _, ok := v.(*StaticVerifier); !ok {
		t.Fatalf("default mode built %T", v)
	}
	if v, err := New("GOOGLE", "", "aud"); err != nil {
		t.Fatalf("google mode: %v", err)
	} else if _, ok := v.(*GoogleVerifier); !ok {
		t.Fatalf("google mode built %T", v)
	}
	if _, err := New("ldap", "", ""); err == nil {
		t.Fatal("unknown mode should fail")
	}
}
