// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL driver
	_ "github.com/lib/pq"

	"github.com/shahank42/hyper-typer/models"
)

// PostgreSQL is a plain database/sql Store implementation. Functionally
// equivalent to GormPostgreSQL; kept for deployments that prefer
// hand-written SQL over the ORM. Selected via `database.driver: sql`.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL opens a PostgreSQL connection and initializes the schema.
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
            id TEXT PRIMARY KEY,
            host_id TEXT NOT NULL,
            current_game_id TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS games (
            id TEXT PRIMARY KEY,
            room_id TEXT NOT NULL,
            passage TEXT NOT NULL,
            status TEXT NOT NULL,
            host_id TEXT NOT NULL,
            duration INT NOT NULL,
            countdown_started_at TIMESTAMPTZ,
            started_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_games_room_id ON games (room_id)`,
		`CREATE TABLE IF NOT EXISTS players (
            id TEXT PRIMARY KEY,
            game_id TEXT NOT NULL,
            guest_id TEXT NOT NULL,
            name TEXT NOT NULL,
            color TEXT NOT NULL,
            typed_length INT NOT NULL DEFAULT 0,
            total_keystrokes INT NOT NULL DEFAULT 0,
            errors INT NOT NULL DEFAULT 0,
            finished BOOLEAN NOT NULL DEFAULT FALSE,
            finished_at TIMESTAMPTZ,
            vote TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (game_id, guest_id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_players_game_id ON players (game_id)`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
            id TEXT PRIMARY KEY,
            task TEXT NOT NULL,
            payload TEXT NOT NULL,
            run_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_run_at ON scheduled_tasks (run_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Transaction runs fn in a serializable transaction.
func (p *PostgreSQL) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	if err := fn(&sqlTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the connection pool.
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) GetRoom(id string) (*models.Room, error) {
	var room models.Room
	err := t.tx.QueryRow(
		`SELECT id, host_id, current_game_id, created_at FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.HostID, &room.CurrentGameID, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (t *sqlTx) InsertRoom(room *models.Room) error {
	_, err := t.tx.Exec(
		`INSERT INTO rooms (id, host_id, current_game_id, created_at) VALUES ($1, $2, $3, $4)`,
		room.ID, room.HostID, room.CurrentGameID, room.CreatedAt,
	)
	return err
}

func (t *sqlTx) UpdateRoom(room *models.Room) error {
	_, err := t.tx.Exec(
		`UPDATE rooms SET host_id = $2, current_game_id = $3 WHERE id = $1`,
		room.ID, room.HostID, room.CurrentGameID,
	)
	return err
}

func (t *sqlTx) DeleteRoom(id string) error {
	_, err := t.tx.Exec(`DELETE FROM rooms WHERE id = $1`, id)
	return err
}

func scanGame(row *sql.Row) (*models.Game, error) {
	var game models.Game
	var countdownAt, startedAt sql.NullTime
	err := row.Scan(&game.ID, &game.RoomID, &game.Passage, &game.Status, &game.HostID,
		&game.Duration, &countdownAt, &startedAt, &game.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if countdownAt.Valid {
		game.CountdownStartedAt = &countdownAt.Time
	}
	if startedAt.Valid {
		game.StartedAt = &startedAt.Time
	}
	return &game, nil
}

func (t *sqlTx) GetGame(id string) (*models.Game, error) {
	row := t.tx.QueryRow(
		`SELECT id, room_id, passage, status, host_id, duration,
                countdown_started_at, started_at, created_at
         FROM games WHERE id = $1`, id)
	return scanGame(row)
}

func (t *sqlTx) InsertGame(game *models.Game) error {
	_, err := t.tx.Exec(
		`INSERT INTO games (id, room_id, passage, status, host_id, duration,
                            countdown_started_at, started_at, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		game.ID, game.RoomID, game.Passage, game.Status, game.HostID, game.Duration,
		nullTime(game.CountdownStartedAt), nullTime(game.StartedAt), game.CreatedAt,
	)
	return err
}

func (t *sqlTx) UpdateGame(game *models.Game) error {
	_, err := t.tx.Exec(
		`UPDATE games SET status = $2, countdown_started_at = $3, started_at = $4 WHERE id = $1`,
		game.ID, game.Status, nullTime(game.CountdownStartedAt), nullTime(game.StartedAt),
	)
	return err
}

func (t *sqlTx) DeleteGame(id string) error {
	_, err := t.tx.Exec(`DELETE FROM games WHERE id = $1`, id)
	return err
}

func (t *sqlTx) GamesByRoom(roomID string) ([]models.Game, error) {
	rows, err := t.tx.Query(
		`SELECT id, room_id, passage, status, host_id, duration,
                countdown_started_at, started_at, created_at
         FROM games WHERE room_id = $1 ORDER BY created_at, id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var game models.Game
		var countdownAt, startedAt sql.NullTime
		if err := rows.Scan(&game.ID, &game.RoomID, &game.Passage, &game.Status, &game.HostID,
			&game.Duration, &countdownAt, &startedAt, &game.CreatedAt); err != nil {
			return nil, err
		}
		if countdownAt.Valid {
			game.CountdownStartedAt = &countdownAt.Time
		}
		if startedAt.Valid {
			game.StartedAt = &startedAt.Time
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

const playerColumns = `id, game_id, guest_id, name, color, typed_length,
    total_keystrokes, errors, finished, finished_at, vote, created_at`

func scanPlayer(scan func(dest ...any) error) (*models.Player, error) {
	var player models.Player
	var finishedAt sql.NullTime
	err := scan(&player.ID, &player.GameID, &player.GuestID, &player.Name, &player.Color,
		&player.TypedLength, &player.TotalKeystrokes, &player.Errors, &player.Finished,
		&finishedAt, &player.Vote, &player.CreatedAt)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		player.FinishedAt = &finishedAt.Time
	}
	return &player, nil
}

func (t *sqlTx) PlayersByGame(gameID string) ([]models.Player, error) {
	rows, err := t.tx.Query(
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 ORDER BY created_at, id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		player, err := scanPlayer(rows.Scan)
		if err != nil {
			return nil, err
		}
		players = append(players, *player)
	}
	return players, rows.Err()
}

func (t *sqlTx) PlayerByGameAndGuest(gameID, guestID string) (*models.Player, error) {
	row := t.tx.QueryRow(
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 AND guest_id = $2`,
		gameID, guestID)
	player, err := scanPlayer(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return player, nil
}

func (t *sqlTx) InsertPlayer(player *models.Player) error {
	_, err := t.tx.Exec(
		`INSERT INTO players (`+playerColumns+`)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		player.ID, player.GameID, player.GuestID, player.Name, player.Color,
		player.TypedLength, player.TotalKeystrokes, player.Errors, player.Finished,
		nullTime(player.FinishedAt), player.Vote, player.CreatedAt,
	)
	return err
}

func (t *sqlTx) UpdatePlayer(player *models.Player) error {
	_, err := t.tx.Exec(
		`UPDATE players SET typed_length = $2, total_keystrokes = $3, errors = $4,
                finished = $5, finished_at = $6, vote = $7
         WHERE id = $1`,
		player.ID, player.TypedLength, player.TotalKeystrokes, player.Errors,
		player.Finished, nullTime(player.FinishedAt), player.Vote,
	)
	return err
}

func (t *sqlTx) DeletePlayer(id string) error {
	_, err := t.tx.Exec(`DELETE FROM players WHERE id = $1`, id)
	return err
}

func (t *sqlTx) InsertTask(task *models.ScheduledTask) error {
	_, err := t.tx.Exec(
		`INSERT INTO scheduled_tasks (id, task, payload, run_at, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		task.ID, task.Task, task.Payload, task.RunAt, task.CreatedAt,
	)
	return err
}

func (t *sqlTx) DueTasks(now time.Time) ([]models.ScheduledTask, error) {
	rows, err := t.tx.Query(
		`SELECT id, task, payload, run_at, created_at
         FROM scheduled_tasks WHERE run_at <= $1 ORDER BY run_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.ScheduledTask
	for rows.Next() {
		var task models.ScheduledTask
		if err := rows.Scan(&task.ID, &task.Task, &task.Payload, &task.RunAt, &task.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (t *sqlTx) DeleteTask(id string) error {
	_, err := t.tx.Exec(`DELETE FROM scheduled_tasks WHERE id = $1`, id)
	return err
}

func (t *sqlTx) CountRooms() (int64, error)   { return t.count("rooms") }
func (t *sqlTx) CountGames() (int64, error)   { return t.count("games") }
func (t *sqlTx) CountPlayers() (int64, error) { return t.count("players") }

func (t *sqlTx) count(table string) (int64, error) {
	var count int64
	err := t.tx.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count)
	return count, err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
