package database

import (
	"context"
	"fmt"

	"github.com/icodeforyou/energiprice-go/convert"
	"github.com/icodeforyou/energiprice-go/hours"
	"github.com/icodeforyou/energiprice-go/types"
)

// PublishedPriceRow is a price that has been handed to consumers.
type PublishedPriceRow struct {
	When   hours.DateHour
	Series types.Series
	Value  float64
}

func (d *Database) SavePublishedPrices(ctx context.Context, rows []PublishedPriceRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("saving published prices, begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO published_price (date, hour, series, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(date, hour, series) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("saving published prices, prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.When.Date,
			row.When.Hour,
			row.Series.String(),
			convert.RoundFloat64(row.Value, 6))
		if err != nil {
			return fmt.Errorf("saving published price %s %s: %w", row.Series, row.When, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving published prices, commit: %w", err)
	}
	return nil
}

// GetPublishedPrices returns the prices of a series from the given hour, oldest first.
func (d *Database) GetPublishedPrices(ctx context.Context, series types.Series, from hours.DateHour) ([]PublishedPriceRow, error) {
	rows, err := d.read.QueryContext(ctx, `SELECT
		date, hour, value
		FROM published_price
		WHERE series = ? AND ((date = ? AND hour >= ?) OR date > ?)
		ORDER BY date, hour ASC`,
		series.String(), from.Date, from.Hour, from.Date)
	if err != nil {
		return nil, fmt.Errorf("fetching published prices: %w", err)
	}
	defer rows.Close()

	var prices []PublishedPriceRow
	for rows.Next() {
		p := PublishedPriceRow{Series: series}
		if err := rows.Scan(&p.When.Date, &p.When.Hour, &p.Value); err != nil {
			return nil, fmt.Errorf("scanning published price row: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading published price rows: %w", err)
	}

	return prices, nil
}

func (d *Database) PurgePublishedPrices(ctx context.Context, retentionDays int) (int64, error) {
	return d.purgeTable(ctx, "published_price", retentionDays)
}
