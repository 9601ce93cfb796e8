package passages

import "testing"

func TestPickRandom_ReturnsPoolMember(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		p := PickRandom("")
		if p == "" {
			t.Fatal("PickRandom returned an empty passage")
		}
		seen[p] = true
	}
	if len(seen) < 2 {
		t.Error("PickRandom never varied over 100 draws")
	}
}

func TestPickRandom_ExcludesCurrentPassage(t *testing.T) {
	exclude := PickRandom("")
	for i := 0; i < 100; i++ {
		if PickRandom(exclude) == exclude {
			t.Fatal("PickRandom returned the excluded passage")
		}
	}
}

func TestPickRandom_UnknownExcludeIsHarmless(t *testing.T) {
	if PickRandom("not in the pool") == "" {
		t.Error("PickRandom returned empty for an unknown exclude")
	}
}
