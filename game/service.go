// game/service.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shahank42/hyper-typer/logger"
	"github.com/shahank42/hyper-typer/models"
	"github.com/shahank42/hyper-typer/persistence"
)

// Scheduled task names. The scheduler dispatches back into the service by
// these keys; payloads are game ids.
const (
	TaskBeginRace = "beginRace"
	TaskEndGame   = "endGame"
)

// Service implements the room/game state machine. Every public method runs
// as a single serializable transaction against the store: validate, write,
// optionally enqueue a delayed transition. Nothing here blocks mid-
// transaction; time-based transitions arrive later as scheduled tasks.
type Service struct {
	store persistence.Store
	now   func() time.Time
}

// NewService creates a Service over the given store.
func NewService(store persistence.Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// Store exposes the underlying store for collaborators that need their own
// transactions (scheduler, admin RPC).
func (s *Service) Store() persistence.Store {
	return s.store
}

// Create inserts a room with its first game and returns the room id, the
// durable shareable handle. The room is inserted first without a game
// pointer, then patched once the game exists; inside one transaction no
// reader ever sees the gap.
func (s *Service) Create(ctx context.Context, hostID, passage string) (string, error) {
	roomID := uuid.New().String()
	now := s.now()

	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		room := &models.Room{
			ID:        roomID,
			HostID:    hostID,
			CreatedAt: now,
		}
		if err := tx.InsertRoom(room); err != nil {
			return err
		}

		game := &models.Game{
			ID:        uuid.New().String(),
			RoomID:    roomID,
			Passage:   passage,
			Status:    models.StatusWaiting,
			HostID:    hostID,
			Duration:  models.DefaultDuration,
			CreatedAt: now,
		}
		if err := tx.InsertGame(game); err != nil {
			return err
		}

		room.CurrentGameID = game.ID
		return tx.UpdateRoom(room)
	})
	if err != nil {
		return "", err
	}

	logger.Log.Infow("room created", "roomId", roomID, "hostId", hostID)
	return roomID, nil
}

// Get resolves room -> current game -> players in one consistent snapshot.
// Returns (nil, nil) when the room or game no longer exists, e.g. after the
// last player exited.
func (s *Service) Get(ctx context.Context, roomID string) (*models.Snapshot, error) {
	var snapshot *models.Snapshot

	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		room, err := tx.GetRoom(roomID)
		if err == persistence.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if room.CurrentGameID == "" {
			return nil
		}

		game, err := tx.GetGame(room.CurrentGameID)
		if err == persistence.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		players, err := tx.PlayersByGame(game.ID)
		if err != nil {
			return err
		}

		snapshot = &models.Snapshot{Room: *room, Game: *game, Players: players}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Join adds a guest to the room's current game while it is still waiting.
// Colors are assigned by cycling the palette over the current player count.
func (s *Service) Join(ctx context.Context, roomID, guestID, name string) (string, error) {
	playerID := uuid.New().String()
	now := s.now()

	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		_, game, err := resolveCurrentGame(tx, roomID)
		if err != nil {
			return err
		}
		if game.Status != models.StatusWaiting {
			return newError(CodeInvalidState, "game is not accepting players")
		}

		players, err := tx.PlayersByGame(game.ID)
		if err != nil {
			return err
		}
		if len(players) >= models.MaxPlayers {
			return newError(CodeFull, "room is full")
		}
		for _, p := range players {
			if p.GuestID == guestID {
				return newError(CodeDuplicate, "already joined this game")
			}
		}

		return tx.InsertPlayer(&models.Player{
			ID:        playerID,
			GameID:    game.ID,
			GuestID:   guestID,
			Name:      name,
			Color:     models.Palette[len(players)%len(models.Palette)],
			CreatedAt: now,
		})
	})
	if err != nil {
		return "", err
	}

	logger.Log.Infow("player joined", "roomId", roomID, "guestId", guestID, "name", name)
	return playerID, nil
}

// Start is host-only. Transitions waiting -> countdown and schedules
// BeginRace after the countdown. Fire-and-forget for the caller; the
// countdown completes without any further client call.
func (s *Service) Start(ctx context.Context, roomID, guestID string) error {
	now := s.now()

	err := s.store.Transaction(ctx, func(tx persistence.Tx) error {
		_, game, err := resolveCurrentGame(tx, roomID)
		if err != nil {
			return err
		}
		if game.HostID != guestID {
			return newError(CodeUnauthorized, "only the host can start the game")
		}
		if game.Status != models.StatusWaiting {
			return newError(CodeInvalidState, "game is not in waiting state")
		}

		players, err := tx.PlayersByGame(game.ID)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			return newError(CodeInvalidState, "need at least one player to start")
		}

		game.Status = models.StatusCountdown
		game.CountdownStartedAt = &now
		if err := tx.UpdateGame(game); err != nil {
			return err
		}

		return scheduleTask(tx, TaskBeginRace, game.ID,
			now.Add(models.CountdownSeconds*time.Second))
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("countdown started", "roomId", roomID)
	return nil
}

// BeginRace is scheduler-invoked only. Transitions countdown -> running.
// The status guard makes redelivery and racing room deletion harmless.
func (s *Service) BeginRace(ctx context.Context, gameID string) error {
	now := s.now()

	return s.store.Transaction(ctx, func(tx persistence.Tx) error {
		game, err := tx.GetGame(gameID)
		if err == persistence.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if game.Status != models.StatusCountdown {
			return nil
		}

		game.Status = models.StatusRunning
		game.StartedAt = &now
		return tx.UpdateGame(game)
	})
}

// UpdateProgress overwrites a player's self-reported counters. Called about
// every 300ms by the owning client, so it is deliberately a silent no-op
// when the game is not running or the player is unknown; a late tick after
// the race ends is normal, not an error. Counters are last-write-wins with
// no monotonicity check.
func (s *Service) UpdateProgress(ctx context.Context, gameID, guestID string, typedLength, totalKeystrokes, errs int) error {
	return s.store.Transaction(ctx, func(tx persistence.Tx) error {
		game, err := tx.GetGame(gameID)
		if err == persistence.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if game.Status != models.StatusRunning {
			return nil
		}

		player, err := tx.PlayerByGameAndGuest(gameID, guestID)
		if err == persistence.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		player.TypedLength = typedLength
		player.TotalKeystrokes = totalKeystrokes
		player.Errors = errs
		return tx.UpdatePlayer(player)
	})
}

// FinishPlayer marks a player finished (write-once) and, when every player
// in the game is done, schedules EndGame after a short grace delay so the
// UI can show a "waiting for others" beat instead of snapping to results.
func (s *Service) FinishPlayer(ctx context.Context, gameID, guestID string) error {
	now := s.now()

	return s.store.Transaction(ctx, func(tx persistence.Tx) error {
		player, err := tx.PlayerByGameAndGuest(gameID, guestID)
		if err == persistence.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if player.Finished {
			// Write-once guard; also prevents double-scheduling EndGame.
			return nil
		}

		player.Finished = true
		player.FinishedAt = &now
		if err := tx.UpdatePlayer(player); err != nil {
			return err
		}

		players, err := tx.PlayersByGame(gameID)
		if err != nil {
			return err
		}
		for _, p := range players {
			if !p.Finished {
				return nil
			}
		}

		return scheduleTask(tx, TaskEndGame, gameID, now.Add(models.FinishGraceDelay))
	})
}

// EndGame is scheduler-invoked only. Transitions running -> finished. No
// winner is computed server-side; rankings are derived from the player
// counters by callers.
func (s *Service) EndGame(ctx context.Context, gameID string) error {
	return s.store.Transaction(ctx, func(tx persistence.Tx) error {
		game, err := tx.GetGame(gameID)
		if err == persistence.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if game.Status != models.StatusRunning {
			return nil
		}

		game.Status = models.StatusFinished
		return tx.UpdateGame(game)
	})
}

// resolveCurrentGame walks room -> currentGameId -> game, translating each
// missing link into the coded error the caller surfaces.
func resolveCurrentGame(tx persistence.Tx, roomID string) (*models.Room, *models.Game, error) {
	room, err := tx.GetRoom(roomID)
	if err == persistence.ErrNotFound {
		return nil, nil, newError(CodeNotFound, "room not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if room.CurrentGameID == "" {
		return nil, nil, newError(CodeNotFound, "room has no active game")
	}

	game, err := tx.GetGame(room.CurrentGameID)
	if err == persistence.ErrNotFound {
		return nil, nil, newError(CodeNotFound, "game not found")
	}
	if err != nil {
		return nil, nil, err
	}
	return room, game, nil
}

// scheduleTask enqueues a delayed internal mutation in the same transaction
// as the state change that warrants it.
func scheduleTask(tx persistence.Tx, task, gameID string, runAt time.Time) error {
	return tx.InsertTask(&models.ScheduledTask{
		ID:        uuid.New().String(),
		Task:      task,
		Payload:   gameID,
		RunAt:     runAt,
		CreatedAt: time.Now(),
	})
}
