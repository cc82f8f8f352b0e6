package main

import "testing"

func TestParseKeys(t *testing.T) {
	keys, err := parseKeys([]string{"good=Alice", " other = Bob Smith", "bare"})
	if err != nil {
		t.Fatalf("parseKeys() error = %v", err)
	}
	want := map[string]string{"good": "Alice", "other": "Bob Smith", "bare": ""}
	if len(keys) != len(want) {
		t.Fatalf("parseKeys() = %v, want %v", keys, want)
	}
	for k, v := range want {
		if keys[k] != v {
			t.Errorf("keys[%q] = %q, want %q", k, keys[k], v)
		}
	}

	if _, err := parseKeys([]string{"=Alice"}); err == nil {
		t.Error("parseKeys() accepted an empty key")
	}
	if keys, _ := parseKeys(nil); keys != nil {
		t.Errorf("parseKeys(nil) = %v, want nil", keys)
	}
}
