package util

import "testing"

func TestTruncateShort(t *testing.T) {
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTruncateCut(t *testing.T) {
	if got := Truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("unexpected %q", got)
	}
}

func TestTruncateZero(t *testing.T) {
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
