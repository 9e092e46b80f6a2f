package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/waypoint/pkg/models"
)

func testBuiltins() []Capability {
	return []Capability{
		{Name: "pattern-application", Description: "built-in", ResourceClass: models.ResourceMedium, Invoker: noopInvoker("pattern-application")},
		{Name: "gap-analysis", Description: "built-in", ResourceClass: models.ResourceMedium, Invoker: noopInvoker("gap-analysis")},
	}
}

func writeDescriptor(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCatalogueMissingDir(t *testing.T) {
	reg, err := LoadCatalogue(filepath.Join(t.TempDir(), "absent"), testBuiltins())
	if err != nil {
		t.Fatal(err)
	}
	if got := len(reg.List()); got != 2 {
		t.Errorf("got %d capabilities, want the 2 builtins", got)
	}
}

func TestLoadCatalogueOverrides(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "gap.yaml", "name: gap-analysis\ndescription: project-tuned\nresource_class: heavy\n")

	reg, err := LoadCatalogue(dir, testBuiltins())
	if err != nil {
		t.Fatal(err)
	}

	cap, err := reg.Get("gap-analysis")
	if err != nil {
		t.Fatal(err)
	}
	if cap.Description != "project-tuned" {
		t.Errorf("description = %q", cap.Description)
	}
	if cap.ResourceClass != models.ResourceHeavy {
		t.Errorf("resource class = %q, want heavy", cap.ResourceClass)
	}

	// The untouched builtin keeps its defaults.
	other, _ := reg.Get("pattern-application")
	if other.ResourceClass != models.ResourceMedium {
		t.Errorf("pattern-application class = %q", other.ResourceClass)
	}
}

func TestLoadCatalogueDisable(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "off.yml", "name: gap-analysis\ndisabled: true\n")

	reg, err := LoadCatalogue(dir, testBuiltins())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get("gap-analysis"); err == nil {
		t.Error("disabled capability should not be registered")
	}
	if _, err := reg.Get("pattern-application"); err != nil {
		t.Errorf("sibling capability lost: %v", err)
	}
}

func TestLoadCatalogueRejectsUnknownName(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "ghost.yaml", "name: no-such-capability\n")

	if _, err := LoadCatalogue(dir, testBuiltins()); err == nil {
		t.Error("descriptor for an unknown capability should fail")
	}
}

func TestLoadCatalogueRejectsBadClass(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "bad.yaml", "name: gap-analysis\nresource_class: enormous\n")

	if _, err := LoadCatalogue(dir, testBuiltins()); err == nil {
		t.Error("invalid resource class should fail")
	}
}
