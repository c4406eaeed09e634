package sqlident

import (
	"regexp"
	"testing"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"posthog_event", "posthog_event"},
		{"my table; DROP", "mytableDROP"},
		{"events-2024", "events2024"},
		{"public.posthog_event", "publicposthog_event"},
		{`"quoted"`, "quoted"},
		{"ünïcode_tåble", "ncode_tble"},
		{"", ""},
		{"; --", ""},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitize_OnlySafeRunesSurvive(t *testing.T) {
	t.Parallel()

	safe := regexp.MustCompile(`^[A-Za-z0-9_]*$`)
	safeDotted := regexp.MustCompile(`^[A-Za-z0-9_.]*$`)
	for _, in := range []string{"my table; DROP", "a\tb\nc", "x'); DELETE FROM y; --", "s.t​"} {
		if got := Sanitize(in); !safe.MatchString(got) {
			t.Fatalf("Sanitize(%q) = %q", in, got)
		}
		if got := SanitizeDotted(in); !safeDotted.MatchString(got) {
			t.Fatalf("SanitizeDotted(%q) = %q", in, got)
		}
	}
}

func TestSanitizeDotted(t *testing.T) {
	t.Parallel()

	if got := SanitizeDotted("analytics.posthog event"); got != "analytics.posthogevent" {
		t.Fatalf("got %q", got)
	}
}

func TestQualified(t *testing.T) {
	t.Parallel()

	if got := Qualified("public", "posthog_event"); got != "public.posthog_event" {
		t.Fatalf("got %q", got)
	}
	if got := Qualified("", "posthog_event"); got != "posthog_event" {
		t.Fatalf("got %q", got)
	}
	if got := Qualified("pub lic;", "t.x"); got != "public.tx" {
		t.Fatalf("got %q", got)
	}
}
