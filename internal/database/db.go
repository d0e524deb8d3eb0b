package database

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type Database struct {
	DB *sql.DB
}

func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Проверяем соединение
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// Init создает таблицы, если их нет
func (d *Database) Init() error {
	createTables := `
	CREATE TABLE IF NOT EXISTS watch_locations (
		location_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		radius_miles DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	`

	_, err := d.DB.Exec(createTables)
	return err
}

func (d *Database) Close() error {
	return d.DB.Close()
}
