package game

import (
	"context"
	"testing"
	"time"

	"github.com/shahank42/hyper-typer/models"
	"github.com/shahank42/hyper-typer/persistence"
	"github.com/shahank42/hyper-typer/scheduler"
)

// finishGame walks a room through a whole race so its game is finished and
// ready for votes. The first guest is the host.
func finishGame(t *testing.T, svc *Service, sched *scheduler.Scheduler, guests ...string) (string, string) {
	t.Helper()

	roomID, gameID := startRunningGame(t, svc, sched, guests...)
	for _, g := range guests {
		if err := svc.FinishPlayer(context.Background(), gameID, g); err != nil {
			t.Fatalf("FinishPlayer(%s) failed: %v", g, err)
		}
	}
	advance(sched, models.FinishGraceDelay+time.Second)

	if got := mustGet(t, svc, roomID).Game.Status; got != models.StatusFinished {
		t.Fatalf("Setup failed: expected finished, got %s", got)
	}
	return roomID, gameID
}

func TestVote_WriteOnce(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, _ := finishGame(t, svc, sched, "hostA", "guestB")
	ctx := context.Background()

	if err := svc.VoteReplay(ctx, roomID, "guestB", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}

	if err := svc.VoteExit(ctx, roomID, "guestB"); CodeOf(err) != CodeDuplicate {
		t.Errorf("Expected DUPLICATE changing vote to exit, got %v", err)
	}
	if err := svc.VoteReplay(ctx, roomID, "guestB", testPassage); CodeOf(err) != CodeDuplicate {
		t.Errorf("Expected DUPLICATE voting replay twice, got %v", err)
	}

	for _, p := range mustGet(t, svc, roomID).Players {
		if p.GuestID == "guestB" && p.Vote != models.VoteReplay {
			t.Errorf("Stored vote changed: %s", p.Vote)
		}
	}
}

func TestVote_RequiresFinishedGame(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, _ := startRunningGame(t, svc, sched, "hostA", "guestB")

	err := svc.VoteReplay(context.Background(), roomID, "guestB", testPassage)
	if CodeOf(err) != CodeInvalidState {
		t.Errorf("Expected INVALID_STATE voting on a running game, got %v", err)
	}
}

func TestVote_UnknownPlayerRejected(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, _ := finishGame(t, svc, sched, "hostA")

	err := svc.VoteExit(context.Background(), roomID, "stranger")
	if CodeOf(err) != CodeNotFound {
		t.Errorf("Expected NOT_FOUND for an unknown voter, got %v", err)
	}
}

func TestReplayConsensus_Unanimous(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, oldGameID := finishGame(t, svc, sched, "hostA", "guestB")
	ctx := context.Background()

	const nextPassage = "a brand new race"

	if err := svc.VoteReplay(ctx, roomID, "hostA", nextPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}
	if err := svc.VoteReplay(ctx, roomID, "guestB", nextPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}

	snapshot := mustGet(t, svc, roomID)
	if snapshot.Game.ID == oldGameID {
		t.Fatal("Room should point at a fresh game after unanimous replay")
	}
	if snapshot.Game.Status != models.StatusCountdown {
		t.Errorf("New game should start in countdown, got %s", snapshot.Game.Status)
	}
	if snapshot.Game.CountdownStartedAt == nil {
		t.Error("New game should carry a countdown timestamp")
	}
	if snapshot.Game.Passage != nextPassage {
		t.Errorf("New game should use the voter's passage, got %q", snapshot.Game.Passage)
	}

	if len(snapshot.Players) != 2 {
		t.Fatalf("Expected 2 fresh players, got %d", len(snapshot.Players))
	}
	for _, p := range snapshot.Players {
		if p.TypedLength != 0 || p.TotalKeystrokes != 0 || p.Errors != 0 {
			t.Errorf("Player %s counters not reset", p.GuestID)
		}
		if p.Finished || p.FinishedAt != nil {
			t.Errorf("Player %s should not be finished in the new game", p.GuestID)
		}
		if p.Vote != models.VoteNone {
			t.Errorf("Player %s carried a vote into the new game", p.GuestID)
		}
	}

	// Identity carries over into the new game.
	for _, p := range snapshot.Players {
		if p.Name != "Player "+p.GuestID {
			t.Errorf("Player %s name not carried over: %s", p.GuestID, p.Name)
		}
		if p.Color == "" {
			t.Errorf("Player %s lost its color", p.GuestID)
		}
	}

	// The new countdown finishes without further client action.
	advance(sched, models.CountdownSeconds*time.Second+time.Second)
	if got := mustGet(t, svc, roomID).Game.Status; got != models.StatusRunning {
		t.Errorf("Replay game should be running after countdown, got %s", got)
	}
}

func TestReplayConsensus_NotUnanimous(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, oldGameID := finishGame(t, svc, sched, "hostA", "guestB")

	if err := svc.VoteReplay(context.Background(), roomID, "hostA", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}

	snapshot := mustGet(t, svc, roomID)
	if snapshot.Game.ID != oldGameID {
		t.Error("No new game should exist while a player has not voted")
	}
	if snapshot.Game.Status != models.StatusFinished {
		t.Errorf("Game should stay finished, got %s", snapshot.Game.Status)
	}
}

func TestReplayConsensus_ExitTipsConsensus(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, oldGameID := finishGame(t, svc, sched, "hostA", "guestB", "guestC")
	ctx := context.Background()

	if err := svc.VoteReplay(ctx, roomID, "hostA", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}
	if err := svc.VoteReplay(ctx, roomID, "guestB", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}

	// Two replays out of three: no consensus yet.
	if got := mustGet(t, svc, roomID).Game.ID; got != oldGameID {
		t.Fatal("Consensus fired before the last vote")
	}

	// The third player leaving makes replay unanimous among the remainder.
	if err := svc.VoteExit(ctx, roomID, "guestC"); err != nil {
		t.Fatalf("VoteExit failed: %v", err)
	}

	snapshot := mustGet(t, svc, roomID)
	if snapshot.Game.ID == oldGameID {
		t.Fatal("Exit should have tipped replay consensus")
	}
	if len(snapshot.Players) != 2 {
		t.Fatalf("Expected 2 players copied, got %d", len(snapshot.Players))
	}
	for _, p := range snapshot.Players {
		if p.GuestID == "guestC" {
			t.Error("Exited player copied into the new game")
		}
	}
	// An exit keeps the current passage for the next race.
	if snapshot.Game.Passage != testPassage {
		t.Errorf("Expected the original passage, got %q", snapshot.Game.Passage)
	}
}

func TestVoteExit_LastPlayerTearsDownRoom(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, _ := finishGame(t, svc, sched, "hostA")

	if err := svc.VoteExit(context.Background(), roomID, "hostA"); err != nil {
		t.Fatalf("VoteExit failed: %v", err)
	}

	snapshot, err := svc.Get(context.Background(), roomID)
	if err != nil {
		t.Fatalf("Get failed after teardown: %v", err)
	}
	if snapshot != nil {
		t.Error("Room should be gone after the last player exits")
	}
}

func TestVoteExit_TeardownCascadesOverReplayChain(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, _ := finishGame(t, svc, sched, "hostA", "guestB")
	ctx := context.Background()

	// One replay first, so the room owns two games when it dies.
	if err := svc.VoteReplay(ctx, roomID, "hostA", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}
	if err := svc.VoteReplay(ctx, roomID, "guestB", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}
	advance(sched, models.CountdownSeconds*time.Second+time.Second)

	gameID := mustGet(t, svc, roomID).Game.ID
	for _, g := range []string{"hostA", "guestB"} {
		if err := svc.FinishPlayer(ctx, gameID, g); err != nil {
			t.Fatalf("FinishPlayer failed: %v", err)
		}
	}
	advance(sched, models.FinishGraceDelay+time.Second)

	if err := svc.VoteExit(ctx, roomID, "hostA"); err != nil {
		t.Fatalf("VoteExit failed: %v", err)
	}
	if err := svc.VoteExit(ctx, roomID, "guestB"); err != nil {
		t.Fatalf("VoteExit failed: %v", err)
	}

	snapshot, err := svc.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snapshot != nil {
		t.Error("Room should be fully deleted, replay chain included")
	}
}

func TestBeginRace_NoopAfterRoomDeleted(t *testing.T) {
	svc, sched := newTestService(t)
	roomID, _ := finishGame(t, svc, sched, "hostA", "guestB")
	ctx := context.Background()

	// Reach consensus: a beginRace task is now pending for the new game.
	if err := svc.VoteReplay(ctx, roomID, "hostA", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}
	if err := svc.VoteReplay(ctx, roomID, "guestB", testPassage); err != nil {
		t.Fatalf("VoteReplay failed: %v", err)
	}

	newGameID := mustGet(t, svc, roomID).Game.ID

	// The room disappears before the countdown fires; the pending beginRace
	// task must find nothing to do.
	err := svc.Store().Transaction(ctx, func(tx persistence.Tx) error {
		for _, g := range []string{"hostA", "guestB"} {
			p, err := tx.PlayerByGameAndGuest(newGameID, g)
			if err != nil {
				return err
			}
			if err := tx.DeletePlayer(p.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteGame(newGameID); err != nil {
			return err
		}
		return tx.DeleteRoom(roomID)
	})
	if err != nil {
		t.Fatalf("Manual teardown failed: %v", err)
	}

	advance(sched, models.CountdownSeconds*time.Second+time.Second)

	snapshot, err := svc.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snapshot != nil {
		t.Error("Room should stay gone after the stray countdown task fires")
	}
}
