package auth

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestParseBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "", want: "", ok: false},
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer   abc  ", want: "abc", ok: true},
		{header: "Basic abc", want: "", ok: false},
		{header: "Bearer", want: "", ok: false},
		{header: "Bearer    ", want: "", ok: false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("POST", "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := ParseBearer(r)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseBearer(%q) = (%q, %v), want (%q, %v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	if _, ok := PrincipalFrom(context.Background()); ok {
		t.Fatal("expected no principal in empty context")
	}
	p := &Principal{Kind: PrincipalUser, UserID: "u1", Token: "tok"}
	got, ok := PrincipalFrom(WithPrincipal(context.Background(), p))
	if !ok || got.UserID != "u1" {
		t.Fatalf("unexpected principal: %+v", got)
	}
	if got.IsService() {
		t.Fatal("user principal must not be service")
	}
}
