// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shahank42/hyper-typer/models"
)

// MemoryStore is an in-memory Store used by tests and as a zero-dependency
// development mode. A single mutex serializes transactions, which trivially
// gives the isolation the core relies on; rollback is implemented by
// snapshotting the maps before running the transaction body.
type MemoryStore struct {
	mu      sync.Mutex
	rooms   map[string]models.Room
	games   map[string]models.Game
	players map[string]models.Player
	tasks   map[string]models.ScheduledTask
	seq     map[string]int64 // player id -> insertion order
	nextSeq int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]models.Room),
		games:   make(map[string]models.Game),
		players: make(map[string]models.Player),
		tasks:   make(map[string]models.ScheduledTask),
		seq:     make(map[string]int64),
	}
}

// Transaction runs fn while holding the store lock. On error every map is
// restored from the pre-transaction snapshot.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(&memoryTx{store: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

type memorySnapshot struct {
	rooms   map[string]models.Room
	games   map[string]models.Game
	players map[string]models.Player
	tasks   map[string]models.ScheduledTask
	seq     map[string]int64
	nextSeq int64
}

func (s *MemoryStore) snapshot() memorySnapshot {
	return memorySnapshot{
		rooms:   copyMap(s.rooms),
		games:   copyMap(s.games),
		players: copyMap(s.players),
		tasks:   copyMap(s.tasks),
		seq:     copyMap(s.seq),
		nextSeq: s.nextSeq,
	}
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.rooms = snap.rooms
	s.games = snap.games
	s.players = snap.players
	s.tasks = snap.tasks
	s.seq = snap.seq
	s.nextSeq = snap.nextSeq
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// memoryTx implements Tx directly against the locked store.
type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) GetRoom(id string) (*models.Room, error) {
	room, ok := t.store.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (t *memoryTx) InsertRoom(room *models.Room) error {
	t.store.rooms[room.ID] = *room
	return nil
}

func (t *memoryTx) UpdateRoom(room *models.Room) error {
	t.store.rooms[room.ID] = *room
	return nil
}

func (t *memoryTx) DeleteRoom(id string) error {
	delete(t.store.rooms, id)
	return nil
}

func (t *memoryTx) GetGame(id string) (*models.Game, error) {
	game, ok := t.store.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &game, nil
}

func (t *memoryTx) InsertGame(game *models.Game) error {
	t.store.games[game.ID] = *game
	return nil
}

func (t *memoryTx) UpdateGame(game *models.Game) error {
	t.store.games[game.ID] = *game
	return nil
}

func (t *memoryTx) DeleteGame(id string) error {
	delete(t.store.games, id)
	return nil
}

func (t *memoryTx) GamesByRoom(roomID string) ([]models.Game, error) {
	var games []models.Game
	for _, g := range t.store.games {
		if g.RoomID == roomID {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (t *memoryTx) PlayersByGame(gameID string) ([]models.Player, error) {
	var players []models.Player
	for _, p := range t.store.players {
		if p.GameID == gameID {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		return t.store.seq[players[i].ID] < t.store.seq[players[j].ID]
	})
	return players, nil
}

func (t *memoryTx) PlayerByGameAndGuest(gameID, guestID string) (*models.Player, error) {
	for _, p := range t.store.players {
		if p.GameID == gameID && p.GuestID == guestID {
			player := p
			return &player, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) InsertPlayer(player *models.Player) error {
	t.store.players[player.ID] = *player
	t.store.nextSeq++
	t.store.seq[player.ID] = t.store.nextSeq
	return nil
}

func (t *memoryTx) UpdatePlayer(player *models.Player) error {
	t.store.players[player.ID] = *player
	return nil
}

func (t *memoryTx) DeletePlayer(id string) error {
	delete(t.store.players, id)
	delete(t.store.seq, id)
	return nil
}

func (t *memoryTx) InsertTask(task *models.ScheduledTask) error {
	t.store.tasks[task.ID] = *task
	return nil
}

func (t *memoryTx) DueTasks(now time.Time) ([]models.ScheduledTask, error) {
	var due []models.ScheduledTask
	for _, task := range t.store.tasks {
		if !task.RunAt.After(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	return due, nil
}

func (t *memoryTx) DeleteTask(id string) error {
	delete(t.store.tasks, id)
	return nil
}

func (t *memoryTx) CountRooms() (int64, error)   { return int64(len(t.store.rooms)), nil }
func (t *memoryTx) CountGames() (int64, error)   { return int64(len(t.store.games)), nil }
func (t *memoryTx) CountPlayers() (int64, error) { return int64(len(t.store.players)), nil }
