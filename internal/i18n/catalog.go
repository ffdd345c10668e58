// Package i18n holds the office's embedded locale catalogs: scene labels
// and the per-locale phrase pools meeting attendees speak from.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const BaseLocale = "en"

const DefaultPhase = "default"

type localeFile struct {
	Locale  string              `yaml:"locale"`
	Labels  map[string]string   `yaml:"labels"`
	Phrases map[string][]string `yaml:"phrases"`
}

type Catalog struct {
	locales map[string]localeFile
	tags    []language.Tag
	names   []string
	matcher language.Matcher
}

//go:embed locales/*.yaml
var embeddedLocales embed.FS

var defaultCatalog = mustLoadEmbedded()

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	return defaultCatalog
}

func mustLoadEmbedded() *Catalog {
	c, err := Load(embeddedLocales)
	if err != nil {
		panic(fmt.Sprintf("load embedded locales: %v", err))
	}
	return c
}

// Load reads every locales/*.yaml file in fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	c := &Catalog{locales: map[string]localeFile{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", p, err)
		}
		var f localeFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", p, err)
		}
		name := strings.TrimSpace(f.Locale)
		if name == "" {
			return nil, fmt.Errorf("locale %s: locale is required", p)
		}
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", p, err)
		}
		c.locales[name] = f
		c.tags = append(c.tags, tag)
		c.names = append(c.names, name)
	}
	if _, ok := c.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}

	// The matcher falls back to its first tag, so the base locale goes first.
	for i, name := range c.names {
		if name == BaseLocale && i != 0 {
			c.names[0], c.names[i] = c.names[i], c.names[0]
			c.tags[0], c.tags[i] = c.tags[i], c.tags[0]
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Match resolves a free-form locale ("ko-KR", "ja", "") to a catalog
// locale, falling back to the base locale.
func (c *Catalog) Match(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return BaseLocale
	}
	if _, ok := c.locales[locale]; ok {
		return locale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return BaseLocale
	}
	_, index, confidence := c.matcher.Match(tag)
	if confidence == language.No {
		return BaseLocale
	}
	return c.names[index]
}

func (c *Catalog) Label(locale, key string) string {
	if v, ok := c.locales[c.Match(locale)].Labels[key]; ok {
		return v
	}
	if v, ok := c.locales[BaseLocale].Labels[key]; ok {
		return v
	}
	return key
}

// Phrases returns the pool for phase, falling back to the locale's default
// pool and then to the base locale.
func (c *Catalog) Phrases(locale, phase string) []string {
	for _, name := range []string{c.Match(locale), BaseLocale} {
		f := c.locales[name]
		if pool := f.Phrases[phase]; len(pool) > 0 {
			return pool
		}
		if pool := f.Phrases[DefaultPhase]; len(pool) > 0 {
			return pool
		}
	}
	return nil
}

// Pick chooses a phrase deterministically from seed.
func (c *Catalog) Pick(locale, phase string, seed uint64) string {
	pool := c.Phrases(locale, phase)
	if len(pool) == 0 {
		return "..."
	}
	return pool[seed%uint64(len(pool))]
}
