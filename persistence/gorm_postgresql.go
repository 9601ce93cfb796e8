// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shahank42/hyper-typer/models"
)

// GormPostgreSQL is the GORM-backed Store implementation.
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL opens a PostgreSQL connection, tunes the pool and
// migrates the schema.
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Room{},
		&models.Game{},
		&models.Player{},
		&models.ScheduledTask{},
	)
}

// Transaction runs fn in a serializable transaction. Serializability is what
// keeps concurrent joins from double-allocating a player slot or color.
func (p *GormPostgreSQL) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}, opts)
}

// Close closes the underlying connection pool.
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
}

func mapGormErr(err error) error {
	if err == gorm.ErrRecordNotFound {
		return ErrNotFound
	}
	return err
}

func (t *gormTx) GetRoom(id string) (*models.Room, error) {
	var room models.Room
	if err := t.db.First(&room, "id = ?", id).Error; err != nil {
		return nil, mapGormErr(err)
	}
	return &room, nil
}

func (t *gormTx) InsertRoom(room *models.Room) error {
	return t.db.Create(room).Error
}

func (t *gormTx) UpdateRoom(room *models.Room) error {
	return t.db.Save(room).Error
}

func (t *gormTx) DeleteRoom(id string) error {
	return t.db.Delete(&models.Room{}, "id = ?", id).Error
}

func (t *gormTx) GetGame(id string) (*models.Game, error) {
	var game models.Game
	if err := t.db.First(&game, "id = ?", id).Error; err != nil {
		return nil, mapGormErr(err)
	}
	return &game, nil
}

func (t *gormTx) InsertGame(game *models.Game) error {
	return t.db.Create(game).Error
}

func (t *gormTx) UpdateGame(game *models.Game) error {
	return t.db.Save(game).Error
}

func (t *gormTx) DeleteGame(id string) error {
	return t.db.Delete(&models.Game{}, "id = ?", id).Error
}

func (t *gormTx) GamesByRoom(roomID string) ([]models.Game, error) {
	var games []models.Game
	err := t.db.Where("room_id = ?", roomID).Order("created_at, id").Find(&games).Error
	return games, err
}

func (t *gormTx) PlayersByGame(gameID string) ([]models.Player, error) {
	var players []models.Player
	err := t.db.Where("game_id = ?", gameID).Order("created_at, id").Find(&players).Error
	return players, err
}

func (t *gormTx) PlayerByGameAndGuest(gameID, guestID string) (*models.Player, error) {
	var player models.Player
	err := t.db.Where("game_id = ? AND guest_id = ?", gameID, guestID).First(&player).Error
	if err != nil {
		return nil, mapGormErr(err)
	}
	return &player, nil
}

func (t *gormTx) InsertPlayer(player *models.Player) error {
	return t.db.Create(player).Error
}

func (t *gormTx) UpdatePlayer(player *models.Player) error {
	return t.db.Save(player).Error
}

func (t *gormTx) DeletePlayer(id string) error {
	return t.db.Delete(&models.Player{}, "id = ?", id).Error
}

func (t *gormTx) InsertTask(task *models.ScheduledTask) error {
	return t.db.Create(task).Error
}

func (t *gormTx) DueTasks(now time.Time) ([]models.ScheduledTask, error) {
	var tasks []models.ScheduledTask
	err := t.db.Where("run_at <= ?", now).Order("run_at").Find(&tasks).Error
	return tasks, err
}

func (t *gormTx) DeleteTask(id string) error {
	return t.db.Delete(&models.ScheduledTask{}, "id = ?", id).Error
}

func (t *gormTx) CountRooms() (int64, error) {
	var count int64
	err := t.db.Model(&models.Room{}).Count(&count).Error
	return count, err
}

func (t *gormTx) CountGames() (int64, error) {
	var count int64
	err := t.db.Model(&models.Game{}).Count(&count).Error
	return count, err
}

func (t *gormTx) CountPlayers() (int64, error) {
	var count int64
	err := t.db.Model(&models.Player{}).Count(&count).Error
	return count, err
}
