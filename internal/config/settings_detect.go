// Settings-module detection from Python project metadata.
// Reads pyproject.toml and manage.py so the probe script can be pointed at
// the right DJANGO_SETTINGS_MODULE without user configuration.
package config

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// reSettingsModule matches the conventional manage.py bootstrap line:
// os.environ.setdefault("DJANGO_SETTINGS_MODULE", "project.settings")
var reSettingsModule = regexp.MustCompile(
	`os\.environ\.setdefault\(\s*["']DJANGO_SETTINGS_MODULE["']\s*,\s*["']([\w.]+)["']`)

type pyprojectFile struct {
	Tool struct {
		Djtpls struct {
			SettingsModule string `toml:"django_settings_module"`
		} `toml:"djtpls"`
		DjangoStubs struct {
			SettingsModule string `toml:"django_settings_module"`
		} `toml:"django-stubs"`
	} `toml:"tool"`
}

// DetectSettingsModule finds the DJANGO_SETTINGS_MODULE for a source root.
// Order: [tool.djtpls] in pyproject.toml, [tool.django-stubs] (the same key
// django-stubs users already maintain), then the manage.py bootstrap line.
// Returns "" when nothing is found; the probe script then falls back to
// importing manage.py inside the project environment.
func DetectSettingsModule(srcRoot string) string {
	if module := detectFromPyproject(filepath.Join(srcRoot, "pyproject.toml")); module != "" {
		return module
	}
	return detectFromManagePy(filepath.Join(srcRoot, "manage.py"))
}

func detectFromPyproject(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var pyproject pyprojectFile
	if err := toml.Unmarshal(data, &pyproject); err != nil {
		return ""
	}
	if module := pyproject.Tool.Djtpls.SettingsModule; module != "" {
		return module
	}
	return pyproject.Tool.DjangoStubs.SettingsModule
}

func detectFromManagePy(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if m := reSettingsModule.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}
