package env

import (
	"testing"
	"time"
)

func TestString(t *testing.T) {
	t.Setenv("TRUSTBUILD_TEST_STRING", "value")
	if got := String("TRUSTBUILD_TEST_STRING", "def"); got != "value" {
		t.Fatalf("String()=%q, want value", got)
	}
	if got := String("TRUSTBUILD_TEST_STRING_MISSING", "def"); got != "def" {
		t.Fatalf("String()=%q, want def", got)
	}
}

func TestStrings(t *testing.T) {
	t.Setenv("TRUSTBUILD_TEST_LIST", "a, b ,,c")
	got := Strings("TRUSTBUILD_TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Strings()=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Strings()[%d]=%q, want %q", i, got[i], want[i])
		}
	}
	def := []string{"x"}
	if got := Strings("TRUSTBUILD_TEST_LIST_MISSING", def); len(got) != 1 || got[0] != "x" {
		t.Fatalf("Strings() default=%v", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("TRUSTBUILD_TEST_DURATION", "90s")
	got, err := Duration("TRUSTBUILD_TEST_DURATION", time.Second)
	if err != nil {
		t.Fatalf("Duration() err=%v", err)
	}
	if got != 90*time.Second {
		t.Fatalf("Duration()=%v, want 90s", got)
	}

	t.Setenv("TRUSTBUILD_TEST_DURATION", "ninety")
	if _, err := Duration("TRUSTBUILD_TEST_DURATION", time.Second); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("TRUSTBUILD_TEST_INT", "42")
	if got, err := Int("TRUSTBUILD_TEST_INT", 1); err != nil || got != 42 {
		t.Fatalf("Int()=%d err=%v", got, err)
	}
	t.Setenv("TRUSTBUILD_TEST_BOOL", "true")
	if got, err := Bool("TRUSTBUILD_TEST_BOOL", false); err != nil || !got {
		t.Fatalf("Bool()=%v err=%v", got, err)
	}
	t.Setenv("TRUSTBUILD_TEST_BOOL", "maybe")
	if _, err := Bool("TRUSTBUILD_TEST_BOOL", false); err == nil {
		t.Fatalf("expected parse error")
	}
}
