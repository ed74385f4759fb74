// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plugin is roam's process-local extension registry: commands,
// detectors, language extractors, and cross-language bridges all register
// through one PluginAPI, the Go-ified shape of original_source's
// plugins.py. A statically linked Go binary has no dynamic import
// machinery to mirror Python's importlib/entry_points loading, so
// discovery here is a list of init-time registration funcs named by
// ROAM_PLUGIN_MODULES rather than a dynamic loader — see Discover.
package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// CommandFunc is a roam subcommand's entrypoint, given the remaining argv
// after the subcommand name itself.
type CommandFunc func(args []string) error

// DetectorFunc implements one health/rule detector, returning free-form
// findings the caller renders or folds into a gate.
type DetectorFunc func() ([]Finding, error)

// Finding is one detector result.
type Finding struct {
	TaskID string
	WayID  string
	Detail string
}

// LanguageExtractorFactory builds a pkg/parser-compatible extractor for a
// plugin-registered language. Declared as `any` here (rather than
// importing pkg/parser) so pkg/plugin has no dependency on pkg/parser;
// cmd/roam's wiring code does the type assertion to parser.Extractor.
type LanguageExtractorFactory func() any

// Bridge mirrors pkg/bridge.Bridge's shape without importing it, for the
// same reason as LanguageExtractorFactory.
type Bridge interface {
	Name() string
}

// registration records a plugin's named, typed contribution.
type registration struct {
	kind string
	name string
}

// PluginAPI is the surface a roam plugin module registers against. One
// instance is shared process-wide; Register* calls are not safe for
// concurrent use with each other (discovery runs single-threaded at
// startup, matching original_source's import-time registration model).
type PluginAPI struct {
	commands   map[string]CommandFunc
	detectors  map[string]DetectorFunc
	extractors map[string]languageExtractorEntry
	bridges    map[string]Bridge

	order []registration // registration order, for deterministic listing
	log   *slog.Logger
}

type languageExtractorEntry struct {
	factory     LanguageExtractorFactory
	extensions  []string
	grammarName string
}

// New builds an empty registry.
func New(log *slog.Logger) *PluginAPI {
	if log == nil {
		log = slog.Default()
	}
	return &PluginAPI{
		commands:   map[string]CommandFunc{},
		detectors:  map[string]DetectorFunc{},
		extractors: map[string]languageExtractorEntry{},
		bridges:    map[string]Bridge{},
		log:        log,
	}
}

// RegisterCommand adds a new roam subcommand. name must be non-empty and
// not already registered.
func (p *PluginAPI) RegisterCommand(name string, fn CommandFunc) error {
	if name == "" {
		return fmt.Errorf("plugin: command name must not be empty")
	}
	if _, exists := p.commands[name]; exists {
		return fmt.Errorf("plugin: command %q already registered", name)
	}
	p.commands[name] = fn
	p.order = append(p.order, registration{kind: "command", name: name})
	return nil
}

// RegisterDetector adds a detector identified by taskID/wayID (the pair
// spec.md's health-score taxonomy keys findings on).
func (p *PluginAPI) RegisterDetector(taskID, wayID string, fn DetectorFunc) error {
	key := taskID + "/" + wayID
	if taskID == "" || wayID == "" {
		return fmt.Errorf("plugin: detector task_id and way_id must not be empty")
	}
	if _, exists := p.detectors[key]; exists {
		return fmt.Errorf("plugin: detector %q already registered", key)
	}
	p.detectors[key] = fn
	p.order = append(p.order, registration{kind: "detector", name: key})
	return nil
}

// RegisterLanguageExtractor adds an extractor for language, normalizing
// extensions to a lowercase, dot-prefixed form the way
// original_source's plugins.py does.
func (p *PluginAPI) RegisterLanguageExtractor(language string, factory LanguageExtractorFactory, extensions []string, grammarAlias string) error {
	if language == "" {
		return fmt.Errorf("plugin: language must not be empty")
	}
	if _, exists := p.extractors[language]; exists {
		return fmt.Errorf("plugin: language extractor %q already registered", language)
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	p.extractors[language] = languageExtractorEntry{factory: factory, extensions: normalized, grammarName: grammarAlias}
	p.order = append(p.order, registration{kind: "language_extractor", name: language})
	return nil
}

// RegisterBridge adds a cross-language bridge under its own Name().
func (p *PluginAPI) RegisterBridge(b Bridge) error {
	name := b.Name()
	if name == "" {
		return fmt.Errorf("plugin: bridge name must not be empty")
	}
	if _, exists := p.bridges[name]; exists {
		return fmt.Errorf("plugin: bridge %q already registered", name)
	}
	p.bridges[name] = b
	p.order = append(p.order, registration{kind: "bridge", name: name})
	return nil
}

// Command looks up a registered command by name.
func (p *PluginAPI) Command(name string) (CommandFunc, bool) {
	fn, ok := p.commands[name]
	return fn, ok
}

// Detectors returns every registered detector, keyed task_id/way_id.
func (p *PluginAPI) Detectors() map[string]DetectorFunc {
	return p.detectors
}

// LanguageExtractor looks up a registered extractor by language name.
func (p *PluginAPI) LanguageExtractor(language string) (factory LanguageExtractorFactory, extensions []string, ok bool) {
	e, ok := p.extractors[language]
	if !ok {
		return nil, nil, false
	}
	return e.factory, e.extensions, true
}

// Bridges returns every registered bridge.
func (p *PluginAPI) Bridges() map[string]Bridge {
	return p.bridges
}

// RegisteredNames returns every registration in the order it was made,
// for `roam status --plugins`-style introspection.
func (p *PluginAPI) RegisteredNames() []string {
	names := make([]string, len(p.order))
	for i, r := range p.order {
		names[i] = fmt.Sprintf("%s:%s", r.kind, r.name)
	}
	return names
}

// Register is the signature a plugin module exposes to the registry: it
// receives the shared PluginAPI and wires whatever it contributes.
type Register func(api *PluginAPI) error

// builtins holds the compiled-in registrations this binary ships with.
// Out-of-tree plugins are not dynamically loadable in a static Go binary;
// ROAM_PLUGIN_MODULES only selects which of these built-ins actually
// register, mirroring original_source's env-var gate without pretending
// to support arbitrary dynamic code loading.
var builtins = map[string]Register{}

// AddBuiltin makes a compiled-in plugin available to Discover under name.
// Called from package init funcs of files that ship a built-in plugin.
func AddBuiltin(name string, reg Register) {
	builtins[name] = reg
}

// Discover runs every built-in plugin named in the comma-separated
// ROAM_PLUGIN_MODULES environment variable (or every built-in, if the
// variable is unset) against api, logging and skipping any plugin whose
// Register func returns an error rather than aborting the whole run.
func Discover(api *PluginAPI) error {
	names := selectedBuiltins()
	for _, name := range names {
		reg, ok := builtins[name]
		if !ok {
			api.log.Warn("plugin: unknown plugin module requested", "name", name)
			continue
		}
		if err := reg(api); err != nil {
			api.log.Warn("plugin: registration failed", "name", name, "err", err)
			continue
		}
	}
	return nil
}

func selectedBuiltins() []string {
	raw := os.Getenv("ROAM_PLUGIN_MODULES")
	if raw == "" {
		names := make([]string, 0, len(builtins))
		for name := range builtins {
			names = append(names, name)
		}
		return names
	}
	var names []string
	for _, n := range strings.Split(raw, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}
