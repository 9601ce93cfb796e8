package models

import (
	"testing"
	"time"
)

func TestComputeStats_WPM(t *testing.T) {
	passage := "the quick brown fox jumps over the lazy dog and runs on"

	// 50 correct chars in 60 seconds is 10 words per minute.
	stats := ComputeStats(passage[:50], passage, 50, 0, 60)
	if stats.WPM != 10 {
		t.Errorf("Expected 10 WPM, got %d", stats.WPM)
	}

	// Same chars in half the time doubles the rate.
	stats = ComputeStats(passage[:50], passage, 50, 0, 30)
	if stats.WPM != 20 {
		t.Errorf("Expected 20 WPM, got %d", stats.WPM)
	}
}

func TestComputeStats_MistypedCharsDoNotCount(t *testing.T) {
	passage := "aaaaaaaaaa"
	typed := "aaaaabbbbb" // 5 correct, 5 wrong

	stats := ComputeStats(typed, passage, 10, 5, 60)
	if stats.WPM != 1 {
		t.Errorf("Only correct chars should count toward WPM, got %d", stats.WPM)
	}
}

func TestComputeStats_Accuracy(t *testing.T) {
	stats := ComputeStats("abcd", "abcd", 10, 2, 10)
	if stats.Accuracy != 80 {
		t.Errorf("Expected 80%% accuracy, got %d", stats.Accuracy)
	}

	// No keystrokes yet: accuracy defaults to 100, not a division by zero.
	stats = ComputeStats("", "abcd", 0, 0, 0)
	if stats.Accuracy != 100 {
		t.Errorf("Expected default 100%% accuracy, got %d", stats.Accuracy)
	}
	if stats.WPM != 0 {
		t.Errorf("Expected 0 WPM with no elapsed time, got %d", stats.WPM)
	}
}

func TestComputeStats_Progress(t *testing.T) {
	stats := ComputeStats("abcde", "abcdefghij", 5, 0, 10)
	if stats.Progress != 0.5 {
		t.Errorf("Expected progress 0.5, got %f", stats.Progress)
	}

	stats = ComputeStats("", "", 0, 0, 0)
	if stats.Progress != 0 {
		t.Errorf("Empty passage should yield 0 progress, got %f", stats.Progress)
	}
}

func TestRankPlayers(t *testing.T) {
	base := time.Now()
	early := base.Add(10 * time.Second)
	late := base.Add(20 * time.Second)

	players := []Player{
		{GuestID: "slowFinisher", Finished: true, FinishedAt: &late, TypedLength: 100},
		{GuestID: "stillTyping", TypedLength: 80},
		{GuestID: "fastFinisher", Finished: true, FinishedAt: &early, TypedLength: 100},
		{GuestID: "barelyStarted", TypedLength: 5},
	}

	ranked := RankPlayers(players)

	want := []string{"fastFinisher", "slowFinisher", "stillTyping", "barelyStarted"}
	for i, w := range want {
		if ranked[i].GuestID != w {
			t.Errorf("Rank %d: expected %s, got %s", i, w, ranked[i].GuestID)
		}
	}

	// Input order untouched.
	if players[0].GuestID != "slowFinisher" {
		t.Error("RankPlayers mutated its input")
	}
}
