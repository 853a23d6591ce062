package buildinfo

import (
	"strings"
	"testing"
)

func TestCurrent(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	defer func() { Version = old }()

	if got := Current(); got.Version != "v1.2.3" || got.Commit != Commit || got.Date != Date {
		t.Errorf("Current() = %+v", got)
	}
	if !strings.Contains(Template(), "v1.2.3") {
		t.Errorf("Template() = %q, want version", Template())
	}
}
