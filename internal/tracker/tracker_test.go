package tracker

import "testing"

func TestJQLHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"quote", Quote(`a "b" \c`), `"a \"b\" \\c"`},
		{"field name", Field("Launchpad ID"), `"Launchpad ID"`},
		{"field id", Field("customfield_10001"), "customfield_10001"},
		{"field cf", Field("cf[10001]"), "cf[10001]"},
		{"clause", Clause("summary", "~", "crash"), `summary ~ "crash"`},
		{"and", And("a", "b", "c"), "a AND b AND c"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestExternalID(t *testing.T) {
	is := Issue{Fields: map[string]any{"externalId": "42/focal"}}
	if is.ExternalID() != "42/focal" {
		t.Errorf("ExternalID = %q", is.ExternalID())
	}
}
