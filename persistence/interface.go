// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/shahank42/hyper-typer/models"
)

// ErrNotFound is returned by Get/lookup methods when no row matches.
var ErrNotFound = errors.New("record not found")

// Tx exposes the document operations available inside a transaction. Every
// mutation of the game core runs as one bounded read-then-write unit against
// this interface; the store guarantees the whole unit commits or rolls back
// atomically. Delete operations are idempotent: deleting a row that is
// already gone is not an error.
type Tx interface {
	GetRoom(id string) (*models.Room, error)
	InsertRoom(room *models.Room) error
	UpdateRoom(room *models.Room) error
	DeleteRoom(id string) error

	GetGame(id string) (*models.Game, error)
	InsertGame(game *models.Game) error
	UpdateGame(game *models.Game) error
	DeleteGame(id string) error
	GamesByRoom(roomID string) ([]models.Game, error)

	// PlayersByGame returns players in join order.
	PlayersByGame(gameID string) ([]models.Player, error)
	PlayerByGameAndGuest(gameID, guestID string) (*models.Player, error)
	InsertPlayer(player *models.Player) error
	UpdatePlayer(player *models.Player) error
	DeletePlayer(id string) error

	InsertTask(task *models.ScheduledTask) error
	DueTasks(now time.Time) ([]models.ScheduledTask, error)
	DeleteTask(id string) error

	// Live-entity counts, used by the metrics refresher and the admin RPC.
	CountRooms() (int64, error)
	CountGames() (int64, error)
	CountPlayers() (int64, error)
}

// Store is the transactional document store backing rooms, games, players
// and scheduled tasks.
type Store interface {
	// Transaction runs fn in a serializable transaction. If fn returns an
	// error the transaction is rolled back and the error is returned
	// unchanged, so callers can surface typed domain errors.
	Transaction(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
