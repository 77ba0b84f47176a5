package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/abbakary/okpos/internal/models"
)

const (
	orderNumberPad    = 4
	documentNumberPad = 3
)

var documentPrefixes = map[string]string{
	models.DocumentJobCard: "JC",
	models.DocumentInvoice: "INV",
}

func formatNumber(prefix string, year int, pad int, seq int64) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, pad, seq)
}

func documentPrefix(kind string) (string, error) {
	prefix, ok := documentPrefixes[kind]
	if !ok {
		return "", fmt.Errorf("unknown document kind %q", kind)
	}
	return prefix, nil
}

func nextOrderNumber(ctx context.Context, tx pgx.Tx, year int) (string, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO order_sequences (year, next_number)
		VALUES ($1, 1)
		ON CONFLICT (year)
		DO UPDATE SET next_number = order_sequences.next_number + 1
		RETURNING next_number
	`, year)
	if err := row.Scan(&next); err != nil {
		return "", err
	}
	return formatNumber("ORD", year, orderNumberPad, next), nil
}

func nextDocumentNumber(ctx context.Context, tx pgx.Tx, kind string, year int) (string, error) {
	prefix, err := documentPrefix(kind)
	if err != nil {
		return "", err
	}
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (kind, year, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, year)
		DO UPDATE SET next_number = document_sequences.next_number + 1
		RETURNING next_number
	`, kind, year)
	if err := row.Scan(&next); err != nil {
		return "", err
	}
	return formatNumber(prefix, year, documentNumberPad, next), nil
}

// escapeLike quotes the LIKE wildcards in a user query.
func escapeLike(query string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
}
