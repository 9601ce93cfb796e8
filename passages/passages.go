// passages/passages.go
package passages

import (
	"math/rand"
)

// Typing test passages. Each is a single sentence of roughly similar length,
// mixing common words and varied finger patterns.
var pool = []string{
	"The quick brown fox jumps over the lazy dog near the riverbank while the sun sets behind the distant mountains casting golden light across the valley below.",
	"Programming is the art of telling a computer what to do through carefully written instructions that transform abstract ideas into working software applications.",
	"A journey of a thousand miles begins with a single step and every great achievement starts from the courage to take that first leap of faith forward.",
	"The ocean waves crashed against the rocky shore as seagulls circled overhead and the salty breeze carried the scent of adventure across the sandy beach.",
	"Technology continues to reshape how we live and work creating new opportunities for connection and collaboration across borders and time zones every single day.",
	"In the heart of the forest tall ancient trees stretched toward the sky their branches forming a natural canopy that filtered the warm afternoon sunlight.",
	"Music has the power to transcend language and culture bringing people together through shared rhythms melodies and emotions that resonate deep within the soul.",
	"The scientist carefully recorded her observations noting every small detail that could lead to a breakthrough discovery in the field of quantum mechanics research.",
}

// PickRandom selects a random passage from the pool. The exclude argument
// (usually the current passage) is filtered out so a replay always gets a
// different text; if exclusion empties the pool, the full pool is used.
func PickRandom(exclude string) string {
	filtered := make([]string, 0, len(pool))
	for _, p := range pool {
		if p != exclude {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		filtered = pool
	}
	return filtered[rand.Intn(len(filtered))]
}
