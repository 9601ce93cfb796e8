// models/stats.go
package models

import (
	"math"
	"sort"
)

// PlayerStats holds computed typing performance metrics.
type PlayerStats struct {
	// Words per minute, based on correct characters typed (5 chars = 1 word).
	WPM int `json:"wpm"`
	// Percentage of keystrokes that were correct (0-100). Backspace does not
	// recover accuracy; once an error is counted, it stays.
	Accuracy int `json:"accuracy"`
	// Fraction of the passage completed (0-1).
	Progress float64 `json:"progress"`
}

const charsPerWord = 5

// ComputeStats derives performance metrics from raw typing counters.
// Pure function; works for any player, local or remote. Edge cases (no time
// elapsed, no input) return zeroed/defaulted stats.
func ComputeStats(typed, passage string, totalKeystrokes, errors int, elapsedSeconds float64) PlayerStats {
	stats := PlayerStats{Accuracy: 100}

	if len(passage) > 0 {
		stats.Progress = float64(len(typed)) / float64(len(passage))
	}

	correct := 0
	for i := 0; i < len(typed) && i < len(passage); i++ {
		if typed[i] == passage[i] {
			correct++
		}
	}

	if elapsedSeconds > 0 {
		wpm := float64(correct) / charsPerWord / (elapsedSeconds / 60)
		if !math.IsInf(wpm, 0) && !math.IsNaN(wpm) {
			stats.WPM = int(math.Round(wpm))
		}
	}

	if totalKeystrokes > 0 {
		stats.Accuracy = int(math.Round(float64(totalKeystrokes-errors) / float64(totalKeystrokes) * 100))
	}

	return stats
}

// RankPlayers orders players for the results view: finishers first by finish
// time, then everyone else by how far they got. Does not mutate its input.
func RankPlayers(players []Player) []Player {
	ranked := make([]Player, len(players))
	copy(ranked, players)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Finished != b.Finished {
			return a.Finished
		}
		if a.Finished && b.Finished && a.FinishedAt != nil && b.FinishedAt != nil {
			return a.FinishedAt.Before(*b.FinishedAt)
		}
		return a.TypedLength > b.TypedLength
	})

	return ranked
}
