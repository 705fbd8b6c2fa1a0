// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package cache

import (
	"sync"
	"testing"
)

func TestAhoCorasick_BasicOperations(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("he", nil)
	ac.AddPattern("she", nil)
	ac.AddPattern("his", nil)
	ac.AddPattern("hers", nil)
	ac.Build()

	matches := ac.Search("ushers")

	// Should find: "she" at 1, "he" at 2, "hers" at 2
	if len(matches) < 3 {
		t.Errorf("Expected at least 3 matches, got %d", len(matches))
	}

	found := map[string]bool{}
	for _, m := range matches {
		found[m.Pattern] = true
	}
	for _, want := range []string{"she", "he", "hers"} {
		if !found[want] {
			t.Errorf("Expected to find %q", want)
		}
	}
}

func TestAhoCorasick_ChatKeywords(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("giveaway", "promo")
	ac.AddPattern("free crypto", "scam")
	ac.AddPattern("dm me", "solicitation")
	ac.Build()

	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{
			name:    "single keyword",
			message: "huge GIVEAWAY tonight at 9",
			want:    []string{"giveaway"},
		},
		{
			name:    "multiple keywords",
			message: "Free crypto! dm me now",
			want:    []string{"free crypto", "dm me"},
		},
		{
			name:    "no keywords",
			message: "hello from Lisbon",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := ac.Search(tt.message)
			if len(matches) != len(tt.want) {
				t.Fatalf("Search(%q) = %d matches, want %d", tt.message, len(matches), len(tt.want))
			}
			for i, m := range matches {
				if m.Pattern != tt.want[i] {
					t.Errorf("match[%d] = %q, want %q", i, m.Pattern, tt.want[i])
				}
			}
		})
	}
}

func TestAhoCorasick_CaseInsensitive(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick() // Default is case-insensitive
	ac.AddPattern("hello", nil)
	ac.AddPattern("world", nil)
	ac.Build()

	tests := []string{
		"hello world",
		"HELLO WORLD",
		"Hello World",
		"hElLo WoRlD",
	}

	for _, text := range tests {
		matches := ac.Search(text)
		if len(matches) != 2 {
			t.Errorf("Search(%q) = %d matches, want 2", text, len(matches))
		}
	}
}

func TestAhoCorasick_CaseSensitive(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasickCaseSensitive()
	ac.AddPattern("Hello", nil)
	ac.Build()

	if !ac.Contains("Hello World") {
		t.Error("Should find 'Hello' in 'Hello World'")
	}

	if ac.Contains("hello world") {
		t.Error("Should NOT find 'Hello' in 'hello world' (case-sensitive)")
	}
}

func TestAhoCorasick_SearchFirst(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("first", "1")
	ac.AddPattern("second", "2")
	ac.AddPattern("third", "3")
	ac.Build()

	match, found := ac.SearchFirst("The first thing, then second and third")
	if !found {
		t.Fatal("SearchFirst should find a match")
	}

	if match.Pattern != "first" {
		t.Errorf("SearchFirst pattern = %q, want 'first'", match.Pattern)
	}

	if match.Data != "1" {
		t.Errorf("SearchFirst data = %v, want '1'", match.Data)
	}
}

func TestAhoCorasick_Contains(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("pattern1", nil)
	ac.AddPattern("pattern2", nil)
	ac.Build()

	if !ac.Contains("text with pattern1 inside") {
		t.Error("Contains should return true")
	}

	if ac.Contains("text without any of them") {
		t.Error("Contains should return false")
	}
}

func TestAhoCorasick_MatchCount(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("a", nil)
	ac.Build()

	if count := ac.MatchCount("abracadabra"); count != 5 {
		t.Errorf("MatchCount = %d, want 5", count)
	}
}

func TestAhoCorasick_EmptyPattern(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("", nil) // Should be ignored
	ac.AddPattern("valid", nil)
	ac.Build()

	if ac.PatternCount() != 1 {
		t.Errorf("PatternCount = %d, want 1", ac.PatternCount())
	}
}

func TestAhoCorasick_NoPatterns(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.Build()

	if matches := ac.Search("any text"); len(matches) != 0 {
		t.Errorf("Search with no patterns should return empty, got %d", len(matches))
	}

	if ac.Contains("any text") {
		t.Error("Contains with no patterns should return false")
	}
}

func TestAhoCorasick_NotBuilt(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("test", nil)
	// Don't call Build()

	if matches := ac.Search("test string"); len(matches) != 0 {
		t.Errorf("Search without Build should return empty, got %d", len(matches))
	}
}

func TestAhoCorasick_Rebuild(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("first", nil)
	ac.Build()

	// A settings change adds keywords after the first build
	ac.AddPattern("second", nil)
	ac.Build()

	if ac.PatternCount() != 2 {
		t.Errorf("PatternCount after rebuild = %d, want 2", ac.PatternCount())
	}

	if !ac.Contains("first and second") {
		t.Error("Should find both patterns after rebuild")
	}
}

func TestAhoCorasick_Clear(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("test", nil)
	ac.Build()

	ac.Clear()

	if ac.PatternCount() != 0 {
		t.Errorf("PatternCount after Clear = %d, want 0", ac.PatternCount())
	}

	if ac.Contains("test") {
		t.Error("Contains should return false after Clear")
	}
}

func TestAhoCorasick_OverlappingPatterns(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("ab", nil)
	ac.AddPattern("abc", nil)
	ac.AddPattern("bc", nil)
	ac.Build()

	if matches := ac.Search("abc"); len(matches) != 3 {
		t.Errorf("Expected 3 matches for overlapping patterns, got %d", len(matches))
	}
}

func TestAhoCorasick_WithData(t *testing.T) {
	t.Parallel()

	type Category struct {
		Name     string
		Severity int
	}

	ac := NewAhoCorasick()
	ac.AddPattern("blocked", Category{Name: "Block", Severity: 3})
	ac.AddPattern("captcha", Category{Name: "Challenge", Severity: 2})
	ac.Build()

	matches := ac.Search("request blocked: captcha required")

	for _, m := range matches {
		cat, ok := m.Data.(Category)
		if !ok {
			t.Error("Data should be Category type")
			continue
		}

		if m.Pattern == "blocked" && cat.Severity != 3 {
			t.Errorf("blocked severity = %d, want 3", cat.Severity)
		}
		if m.Pattern == "captcha" && cat.Severity != 2 {
			t.Errorf("captcha severity = %d, want 2", cat.Severity)
		}
	}
}

func TestAhoCorasick_Concurrent(t *testing.T) {
	t.Parallel()

	ac := NewAhoCorasick()
	ac.AddPattern("pattern1", nil)
	ac.AddPattern("pattern2", nil)
	ac.AddPattern("pattern3", nil)
	ac.Build()

	var wg sync.WaitGroup
	numGoroutines := 50
	numOps := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				text := "text with pattern1 and pattern2 inside"
				ac.Search(text)
				ac.Contains(text)
				ac.SearchFirst(text)
			}
		}()
	}

	wg.Wait()
}

func TestPatternMatcher_BasicOperations(t *testing.T) {
	t.Parallel()

	pm := NewPatternMatcher(map[string]any{
		"blocked":       "block_signature",
		"access denied": "block_signature",
		"captcha":       "challenge_signature",
	})

	matches := pm.Match("connection Blocked: access denied by host")
	if len(matches) != 2 {
		t.Errorf("Match returned %d results, want 2", len(matches))
	}

	if !pm.Contains("verification captcha shown") {
		t.Error("Contains should return true for captcha text")
	}

	if pm.Contains("stream ended normally") {
		t.Error("Contains should return false for benign text")
	}
}

func TestPatternMatcherFromSlice(t *testing.T) {
	t.Parallel()

	pm := NewPatternMatcherFromSlice([]string{"giveaway", "free crypto"}, "alert")

	matches := pm.Match("giveaway of free crypto")
	if len(matches) != 2 {
		t.Errorf("Match returned %d results, want 2", len(matches))
	}

	for _, m := range matches {
		if m.Data != "alert" {
			t.Errorf("Data = %v, want 'alert'", m.Data)
		}
	}

	if match, found := pm.MatchFirst("big giveaway tonight"); !found || match.Pattern != "giveaway" {
		t.Errorf("MatchFirst = %v/%v, want giveaway/true", match.Pattern, found)
	}
}

func BenchmarkAhoCorasick_Search(b *testing.B) {
	ac := NewAhoCorasick()
	ac.AddPatterns([]string{
		"giveaway", "free crypto", "dm me", "scam", "promo code",
		"follow back", "check bio", "cashapp", "telegram",
	}, nil)
	ac.Build()

	text := "yo everyone big giveaway tonight check bio for the promo code"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ac.Search(text)
	}
}

func BenchmarkAhoCorasick_Contains(b *testing.B) {
	ac := NewAhoCorasick()
	ac.AddPatterns([]string{"blocked", "captcha", "access denied", "rate limit"}, nil)
	ac.Build()

	text := "websocket: close 1006 (abnormal closure): unexpected EOF"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ac.Contains(text)
	}
}
