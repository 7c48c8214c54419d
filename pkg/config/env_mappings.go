package config

import (
	"reflect"
	"slices"
	"strings"
	"sync"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "CREDPORTAL_"

// Setting describes one leaf of Config.
type Setting struct {
	Path      string // koanf path, e.g. "database.host"
	EnvVar    string // empty when the setting has no env tag
	Sensitive bool
}

// Settings lists every leaf setting of Config in declaration order.
var Settings = sync.OnceValue(func() []Setting {
	return collectSettings(reflect.TypeFor[Config](), nil)
})

var sensitiveType = reflect.TypeFor[SensitiveString]()

func collectSettings(t reflect.Type, parents []string) []Setting {
	var out []Setting
	for _, sf := range reflect.VisibleFields(t) {
		key := sf.Tag.Get("koanf")
		if !sf.IsExported() || key == "" || key == "-" {
			continue
		}
		path := append(slices.Clip(parents), key)
		if sf.Type.Kind() == reflect.Struct {
			out = append(out, collectSettings(sf.Type, path)...)
			continue
		}
		s := Setting{
			Path:      strings.Join(path, "."),
			Sensitive: sf.Type == sensitiveType || sf.Tag.Get("sensitive") == "true",
		}
		if env := sf.Tag.Get("env"); env != "" && env != "-" {
			s.EnvVar = EnvPrefix + env
		}
		out = append(out, s)
	}
	return out
}

// envPaths maps each prefixed variable name to its koanf path.
func envPaths() map[string]string {
	paths := make(map[string]string)
	for _, s := range Settings() {
		if s.EnvVar != "" {
			paths[s.EnvVar] = s.Path
		}
	}
	return paths
}
