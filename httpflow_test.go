package httpflow_test

import (
	"testing"

	"github.com/adamwoolhether/httpflow"
)

func TestDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	m1, err := httpflow.Default()
	if err != nil {
		t.Fatalf("default manager: %v", err)
	}
	m2, err := httpflow.Default()
	if err != nil {
		t.Fatalf("default manager: %v", err)
	}

	if m1 != m2 {
		t.Error("Default returned different managers")
	}
}
