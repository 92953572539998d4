// Package config loads preprocessor settings from an INI file and macro
// definitions from YAML.
//
//	KEEP_COMMENTS = false
//	MAX_INCLUDE_DEPTH = 64
//
//	[include]
//	DIRS = shaders, /usr/share/linepp
//	ALLOW = *.glsl, lib/**
//	CACHE_SIZE = 128
//	DISABLED = false
//
//	[define]
//	USE_FOG = 1
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fwessels/linepp/internal/preprocessor"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

type Include struct {
	Dirs      []string
	Allow     []string
	CacheSize int
	Disabled  bool
}

type Config struct {
	KeepComments    bool
	MaxIncludeDepth int
	Include         Include
	Defines         map[string]string
}

func Default() *Config {
	return &Config{
		MaxIncludeDepth: 64,
		Include: Include{
			Dirs:      []string{"."},
			CacheSize: 128,
		},
		Defines: map[string]string{},
	}
}

// Load reads an INI configuration from a file name or a []byte on top of
// the defaults.
func Load(source any) (*Config, error) {
	f, err := ini.Load(source)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	c := Default()
	if err := c.loadFrom(f); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFrom(f *ini.File) error {
	root := f.Section(ini.DefaultSection)
	c.KeepComments = root.Key("KEEP_COMMENTS").MustBool(c.KeepComments)
	c.MaxIncludeDepth = root.Key("MAX_INCLUDE_DEPTH").MustInt(c.MaxIncludeDepth)
	if c.MaxIncludeDepth < 0 {
		return errors.Errorf("MAX_INCLUDE_DEPTH must not be negative, got %d", c.MaxIncludeDepth)
	}

	sec := f.Section("include")
	if sec.HasKey("DIRS") {
		c.Include.Dirs = nonEmpty(sec.Key("DIRS").Strings(","))
	}
	if sec.HasKey("ALLOW") {
		c.Include.Allow = nonEmpty(sec.Key("ALLOW").Strings(","))
	}
	c.Include.CacheSize = sec.Key("CACHE_SIZE").MustInt(c.Include.CacheSize)
	c.Include.Disabled = sec.Key("DISABLED").MustBool(c.Include.Disabled)

	for _, key := range f.Section("define").Keys() {
		if err := c.define(key.Name(), key.Value()); err != nil {
			return err
		}
	}
	return nil
}

// LoadDefines merges a YAML mapping of macro names to values. Booleans
// become "1" and "0" so they can be used directly in conditions.
func (c *Config) LoadDefines(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read defines")
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return errors.Wrapf(err, "parse defines %s", path)
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.define(name, yamlValue(m[name])); err != nil {
			return errors.Wrap(err, path)
		}
	}
	return nil
}

func yamlValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// Define adds a NAME or NAME=VALUE definition as given on the command line.
func (c *Config) Define(s string) error {
	name, value := ParseDefine(s)
	return c.define(name, value)
}

func (c *Config) define(name, value string) error {
	if !preprocessor.ValidName(name) {
		return errors.Errorf("invalid macro name %q", name)
	}
	if c.Defines == nil {
		c.Defines = map[string]string{}
	}
	c.Defines[name] = value
	return nil
}

// Apply copies the settings and definitions into ctx.
func (c *Config) Apply(ctx *preprocessor.Context) {
	ctx.KeepComments = c.KeepComments
	ctx.MaxIncludeDepth = c.MaxIncludeDepth
	for name, value := range c.Defines {
		ctx.Define(name, value)
	}
}

func ParseDefine(s string) (name, value string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "1"
}

func nonEmpty(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
