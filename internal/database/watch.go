package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Capitan-Parrot/wildfire-live/internal/models"
)

var ErrNotFound = errors.New("watch location not found")

func (d *Database) CreateWatchLocation(ctx context.Context, loc *models.WatchLocation) error {
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now().UTC()
	}
	if loc.Status == "" {
		loc.Status = models.WatchStatusActive
	}

	_, err := d.DB.ExecContext(ctx,
		`INSERT INTO watch_locations (location_id, name, email, lat, lon, radius_miles, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (location_id) DO UPDATE
			SET name = $2, email = $3, lat = $4, lon = $5, radius_miles = $6, status = $7`,
		loc.ID,
		loc.Name,
		loc.Email,
		loc.Lat,
		loc.Lon,
		loc.RadiusMiles,
		loc.Status,
		loc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create watch location: %w", err)
	}
	return nil
}

func (d *Database) GetWatchLocation(ctx context.Context, locationID string) (*models.WatchLocation, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT location_id, name, email, lat, lon, radius_miles, status, created_at
		FROM watch_locations
		WHERE location_id = $1
	`, locationID)

	loc, err := scanWatchLocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Точка не найдена - это не ошибка
		}
		return nil, fmt.Errorf("failed to get watch location: %w", err)
	}
	return loc, nil
}

// ListWatchLocations возвращает активные точки наблюдения
func (d *Database) ListWatchLocations(ctx context.Context) ([]models.WatchLocation, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT location_id, name, email, lat, lon, radius_miles, status, created_at
		FROM watch_locations
		WHERE status = $1
		ORDER BY created_at
	`, models.WatchStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.WatchLocation
	for rows.Next() {
		loc, err := scanWatchLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, *loc)
	}

	return locations, rows.Err()
}

func (d *Database) DeleteWatchLocation(ctx context.Context, locationID string) error {
	res, err := d.DB.ExecContext(ctx, "DELETE FROM watch_locations WHERE location_id = $1", locationID)
	if err != nil {
		return fmt.Errorf("failed to delete watch location: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWatchLocation(s scanner) (*models.WatchLocation, error) {
	var loc models.WatchLocation
	err := s.Scan(
		&loc.ID,
		&loc.Name,
		&loc.Email,
		&loc.Lat,
		&loc.Lon,
		&loc.RadiusMiles,
		&loc.Status,
		&loc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
