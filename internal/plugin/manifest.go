package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Manifest carries per-plug-in overrides loaded from an HCL file: site
// administrators use these to re-prioritize or disable back-ends without
// rebuilding the agent.
type Manifest struct {
	Name     string
	Priority *int
	Enabled  *bool
}

// LoadManifests parses every .hcl file in dir and returns the overrides
// keyed by plug-in name. A missing directory yields an empty map.
func LoadManifests(dir string) (map[string]Manifest, error) {
	manifests := make(map[string]Manifest)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return manifests, nil
		}
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hcl") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		parsed, err := parseManifestFile(path)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", entry.Name(), err)
		}
		for name, m := range parsed {
			manifests[name] = m
		}
	}

	return manifests, nil
}

func parseManifestFile(path string) (map[string]Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("unexpected body type: %T", file.Body)
	}

	manifests := make(map[string]Manifest)
	for _, block := range body.Blocks {
		if block.Type != "plugin" {
			continue
		}
		if len(block.Labels) == 0 {
			continue
		}

		m := Manifest{Name: block.Labels[0]}

		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to get attributes for plugin %s: %s", m.Name, diags.Error())
		}

		if attr, ok := attrs["priority"]; ok {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("plugin %s: priority: %s", m.Name, diags.Error())
			}
			var priority int
			if err := gocty.FromCtyValue(val, &priority); err != nil {
				return nil, fmt.Errorf("plugin %s: priority must be a number: %w", m.Name, err)
			}
			m.Priority = &priority
		}

		if attr, ok := attrs["enabled"]; ok {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("plugin %s: enabled: %s", m.Name, diags.Error())
			}
			if val.Type() != cty.Bool {
				return nil, fmt.Errorf("plugin %s: enabled must be a bool", m.Name)
			}
			enabled := val.True()
			m.Enabled = &enabled
		}

		manifests[m.Name] = m
	}

	return manifests, nil
}

// Apply folds a manifest override into a declaration.
func (m Manifest) Apply(d *Declaration) {
	if m.Priority != nil {
		d.Priority = *m.Priority
	}
	if m.Enabled != nil {
		if *m.Enabled {
			d.Active |= ActiveEnabled
		} else {
			d.Active &^= ActiveEnabled
		}
	}
}
