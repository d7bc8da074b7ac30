package databag

import "testing"

func TestBag_SetGetHas(t *testing.T) {
	b := New(nil).With("scope", "openid profile")

	if !b.Has("scope") {
		t.Fatalf("expected Has(scope) == true")
	}
	if got := b.String("scope"); got != "openid profile" {
		t.Fatalf("Get(scope): got %q", got)
	}
	if b.Has("missing") {
		t.Fatalf("expected Has(missing) == false")
	}
	if got := b.GetOr("missing", "fallback"); got != "fallback" {
		t.Fatalf("GetOr default: got %v", got)
	}
}

func TestBag_CopyOnWrite(t *testing.T) {
	base := New(map[string]any{"a": 1})
	derived := base.With("b", 2)

	if base.Has("b") {
		t.Fatalf("With must not mutate the receiver")
	}
	if !derived.Has("a") || !derived.Has("b") {
		t.Fatalf("derived bag missing keys")
	}

	removed := derived.Without("a")
	if !derived.Has("a") {
		t.Fatalf("Without must not mutate the receiver")
	}
	if removed.Has("a") {
		t.Fatalf("Without did not remove the key")
	}
}

func TestBag_Strings(t *testing.T) {
	// []any de strings es la forma que produce json.Unmarshal
	b := New(map[string]any{
		"grant_types":    []any{"authorization_code", "refresh_token"},
		"redirect_uris":  []string{"https://app.example/cb"},
		"response_types": "not-a-slice",
	})

	if got := b.Strings("grant_types"); len(got) != 2 || got[0] != "authorization_code" {
		t.Fatalf("Strings([]any): got %v", got)
	}
	if got := b.Strings("redirect_uris"); len(got) != 1 {
		t.Fatalf("Strings([]string): got %v", got)
	}
	if got := b.Strings("response_types"); got != nil {
		t.Fatalf("Strings(non-slice): got %v", got)
	}
}

func TestBag_Merge(t *testing.T) {
	a := New(map[string]any{"x": 1, "y": 1})
	b := New(map[string]any{"y": 2, "z": 2})

	m := a.Merge(b)
	if m.Get("x") != 1 || m.Get("y") != 2 || m.Get("z") != 2 {
		t.Fatalf("merge result wrong: %v", m.Map())
	}
	if a.Get("y") != 1 {
		t.Fatalf("Merge must not mutate the receiver")
	}
}
