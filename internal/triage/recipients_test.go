package triage

import "testing"

func TestJoinRecipients(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   []string
		want string
	}{
		{"empty", nil, ""},
		{"single", []string{"a@x.test"}, "a@x.test"},
		{"drops empties", []string{"", "a@x.test", "  "}, "a@x.test"},
		{"dedups first-seen", []string{"a@x.test", "b@x.test", "a@x.test"}, "a@x.test,b@x.test"},
		{"trims whitespace", []string{" a@x.test ", "b@x.test"}, "a@x.test,b@x.test"},
		{"preserves order", []string{"c@x.test", "a@x.test", "b@x.test"}, "c@x.test,a@x.test,b@x.test"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := JoinRecipients(tc.in...); got != tc.want {
				t.Errorf("JoinRecipients(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
