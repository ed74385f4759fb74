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

package plugin

import "testing"

func TestRegisterCommand_DuplicateFails(t *testing.T) {
	api := New(nil)
	if err := api.RegisterCommand("hotspots", func(args []string) error { return nil }); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := api.RegisterCommand("hotspots", func(args []string) error { return nil }); err == nil {
		t.Fatal("expected duplicate command registration to fail")
	}
}

func TestRegisterDetector_DuplicateFails(t *testing.T) {
	api := New(nil)
	fn := func() ([]Finding, error) { return nil, nil }
	if err := api.RegisterDetector("health", "god-class", fn); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := api.RegisterDetector("health", "god-class", fn); err == nil {
		t.Fatal("expected duplicate detector registration to fail")
	}
}

func TestRegisterLanguageExtractor_NormalizesExtensions(t *testing.T) {
	api := New(nil)
	err := api.RegisterLanguageExtractor("kotlin", func() any { return nil }, []string{"KT", ".kts", " "}, "kotlin-ts")
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	_, exts, ok := api.LanguageExtractor("kotlin")
	if !ok {
		t.Fatal("expected kotlin extractor to be registered")
	}
	want := []string{".kt", ".kts"}
	if len(exts) != len(want) {
		t.Fatalf("expected %v, got %v", want, exts)
	}
	for i := range want {
		if exts[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, exts)
		}
	}
}

func TestRegisterBridge_DuplicateNameFails(t *testing.T) {
	api := New(nil)
	b := fakeBridge{name: "protobuf-go"}
	if err := api.RegisterBridge(b); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := api.RegisterBridge(b); err == nil {
		t.Fatal("expected duplicate bridge registration to fail")
	}
}

func TestRegisteredNames_PreservesRegistrationOrder(t *testing.T) {
	api := New(nil)
	_ = api.RegisterCommand("a", func(args []string) error { return nil })
	_ = api.RegisterDetector("t", "w", func() ([]Finding, error) { return nil, nil })
	_ = api.RegisterBridge(fakeBridge{name: "b"})

	names := api.RegisteredNames()
	want := []string{"command:a", "detector:t/w", "bridge:b"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}

func TestDiscover_SkipsUnknownAndFailingPluginsWithoutAborting(t *testing.T) {
	t.Setenv("ROAM_PLUGIN_MODULES", "known-good,unknown,known-bad")

	AddBuiltin("known-good", func(api *PluginAPI) error {
		return api.RegisterCommand("good", func(args []string) error { return nil })
	})
	AddBuiltin("known-bad", func(api *PluginAPI) error {
		return errFakeRegistration
	})

	api := New(nil)
	if err := Discover(api); err != nil {
		t.Fatalf("Discover must not abort on a bad/unknown plugin: %v", err)
	}
	if _, ok := api.Command("good"); !ok {
		t.Fatal("expected the known-good plugin's command to have registered")
	}
}

type fakeBridge struct{ name string }

func (f fakeBridge) Name() string { return f.name }

var errFakeRegistration = fakeError("registration intentionally fails")

type fakeError string

func (e fakeError) Error() string { return string(e) }
