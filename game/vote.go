// game/vote.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shahank42/hyper-typer/logger"
	"github.com/shahank42/hyper-typer/models"
	"github.com/shahank42/hyper-typer/persistence"
)

// VoteReplay casts a final replay vote on a finished game. The voter's
// passage becomes the next race's text if this vote tips consensus.
func (s *Service) VoteReplay(ctx context.Context, roomID, guestID, passage string) error {
	now := s.now()

	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		game, player, err := resolveVoter(tx, roomID, guestID)
		if err != nil {
			return err
		}

		player.Vote = models.VoteReplay
		if err := tx.UpdatePlayer(player); err != nil {
			return err
		}

		return s.checkReplayConsensus(tx, roomID, game.ID, passage, now)
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("replay vote cast", "roomId", roomID, "guestId", guestID)
	return nil
}

// VoteExit casts a final exit vote. When the last non-exited player leaves,
// the room and everything under it is deleted; otherwise the exit may tip
// replay consensus for whoever remains, reusing the current passage since
// an exit carries no passage of its own.
func (s *Service) VoteExit(ctx context.Context, roomID, guestID string) error {
	now := s.now()

	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		game, player, err := resolveVoter(tx, roomID, guestID)
		if err != nil {
			return err
		}

		player.Vote = models.VoteExit
		if err := tx.UpdatePlayer(player); err != nil {
			return err
		}

		players, err := tx.PlayersByGame(game.ID)
		if err != nil {
			return err
		}

		remaining := 0
		for _, p := range players {
			if p.Vote != models.VoteExit {
				remaining++
			}
		}
		if remaining == 0 {
			return deleteRoom(tx, roomID)
		}

		return s.checkReplayConsensus(tx, roomID, game.ID, game.Passage, now)
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("exit vote cast", "roomId", roomID, "guestId", guestID)
	return nil
}

// resolveVoter validates the shared vote preconditions: the room's current
// game must be finished and the guest must hold an unvoted player row.
func resolveVoter(tx persistence.Tx, roomID, guestID string) (*models.Game, *models.Player, error) {
	_, game, err := resolveCurrentGame(tx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if game.Status != models.StatusFinished {
		return nil, nil, newError(CodeInvalidState, "game is not finished")
	}

	player, err := tx.PlayerByGameAndGuest(game.ID, guestID)
	if err == persistence.ErrNotFound {
		return nil, nil, newError(CodeNotFound, "player not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if player.Vote != models.VoteNone {
		return nil, nil, newError(CodeDuplicate, "already voted")
	}
	return game, player, nil
}

// checkReplayConsensus starts a new race when replay is unanimous among the
// players who have not exited. The new game is born in countdown, players
// are copied over with reset counters, the room pointer swings to the new
// game (transparently redirecting every subscribed client), and BeginRace
// is scheduled. Not unanimous yet: do nothing, more votes may arrive. There
// is no quorum timeout; a holdout blocks replay indefinitely.
func (s *Service) checkReplayConsensus(tx persistence.Tx, roomID, gameID, passage string, now time.Time) error {
	players, err := tx.PlayersByGame(gameID)
	if err != nil {
		return err
	}

	var nonExited []models.Player
	for _, p := range players {
		if p.Vote != models.VoteExit {
			nonExited = append(nonExited, p)
		}
	}
	if len(nonExited) == 0 {
		// Caller already handled teardown.
		return nil
	}
	for _, p := range nonExited {
		if p.Vote != models.VoteReplay {
			return nil
		}
	}

	room, err := tx.GetRoom(roomID)
	if err == persistence.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	newGame := &models.Game{
		ID:                 uuid.New().String(),
		RoomID:             roomID,
		Passage:            passage,
		Status:             models.StatusCountdown,
		HostID:             room.HostID,
		Duration:           models.DefaultDuration,
		CountdownStartedAt: &now,
		CreatedAt:          now,
	}
	if err := tx.InsertGame(newGame); err != nil {
		return err
	}

	for _, p := range nonExited {
		err := tx.InsertPlayer(&models.Player{
			ID:        uuid.New().String(),
			GameID:    newGame.ID,
			GuestID:   p.GuestID,
			Name:      p.Name,
			Color:     p.Color,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
	}

	room.CurrentGameID = newGame.ID
	if err := tx.UpdateRoom(room); err != nil {
		return err
	}

	logger.Log.Infow("replay consensus reached", "roomId", roomID, "newGameId", newGame.ID,
		"players", len(nonExited))

	return scheduleTask(tx, TaskBeginRace, newGame.ID,
		now.Add(models.CountdownSeconds*time.Second))
}

// deleteRoom cascades over every game under the room and every player under
// each game. Idempotent against partial prior deletion: it may be re-entered
// by a retried transaction and must tolerate already-missing rows.
func deleteRoom(tx persistence.Tx, roomID string) error {
	games, err := tx.GamesByRoom(roomID)
	if err != nil {
		return err
	}

	for _, g := range games {
		players, err := tx.PlayersByGame(g.ID)
		if err != nil {
			return err
		}
		for _, p := range players {
			if err := tx.DeletePlayer(p.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteGame(g.ID); err != nil {
			return err
		}
	}

	if err := tx.DeleteRoom(roomID); err != nil {
		return err
	}

	logger.Log.Infow("room deleted", "roomId", roomID, "games", len(games))
	return nil
}
