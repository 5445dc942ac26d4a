package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Embedding records one embed run.
type Embedding struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Source           string    `json:"source"`
	Output           string    `json:"output"`
	Payload          string    `json:"payload"`
	Layout           string    `json:"layout"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	Regions          int       `json:"regions"`
	Blocks           int       `json:"blocks"`
	DegenerateBlocks int       `json:"degenerate_blocks"`
	MSE              float64   `json:"mse"`
	// PSNR is nil when the output equals the source.
	PSNR     *float64 `json:"psnr,omitempty"`
	Warnings []string `json:"warnings"`
}

// Extraction records one extract run.
type Extraction struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Source           string    `json:"source"`
	Reference        string    `json:"reference,omitempty"`
	Detected         bool      `json:"detected"`
	Corrected        bool      `json:"corrected"`
	Payload          string    `json:"payload"`
	CorrectedSymbols int       `json:"corrected_symbols"`
	MarkerErrors     int       `json:"marker_errors"`
	// EmbeddingID links to the latest embedding with the same payload.
	EmbeddingID string `json:"embedding_id,omitempty"`
}

// PSNRValue converts a PSNR in dB to its stored form.
func PSNRValue(psnr float64) *float64 {
	if math.IsInf(psnr, 0) || math.IsNaN(psnr) {
		return nil
	}
	return &psnr
}

// RecordEmbedding inserts e, filling in ID and CreatedAt when unset.
func (db *DB) RecordEmbedding(e *Embedding) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	warnings := e.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}
	var psnr sql.NullFloat64
	if e.PSNR != nil {
		psnr = sql.NullFloat64{Float64: *e.PSNR, Valid: true}
	}
	_, err = db.Exec(
		`INSERT INTO embeddings (
			embedding_id, created_unix_nanos, source, output, payload, layout,
			width, height, regions, blocks, degenerate_blocks, mse, psnr, warnings_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UnixNano(), e.Source, e.Output, e.Payload, e.Layout,
		e.Width, e.Height, e.Regions, e.Blocks, e.DegenerateBlocks, e.MSE, psnr, string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to record embedding: %w", err)
	}
	return nil
}

// RecordExtraction inserts x, filling in ID and CreatedAt when unset. A
// detected payload with no EmbeddingID is linked to the latest embedding
// of the same payload, if any.
func (db *DB) RecordExtraction(x *Extraction) error {
	if x.ID == "" {
		x.ID = uuid.NewString()
	}
	if x.CreatedAt.IsZero() {
		x.CreatedAt = time.Now().UTC()
	}
	if x.Detected && x.EmbeddingID == "" && x.Payload != "" {
		e, err := db.LatestEmbedding(x.Payload)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if e != nil {
			x.EmbeddingID = e.ID
		}
	}
	var embeddingID sql.NullString
	if x.EmbeddingID != "" {
		embeddingID = sql.NullString{String: x.EmbeddingID, Valid: true}
	}
	_, err := db.Exec(
		`INSERT INTO extractions (
			extraction_id, created_unix_nanos, source, reference, detected, corrected,
			payload, corrected_symbols, marker_errors, embedding_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		x.ID, x.CreatedAt.UnixNano(), x.Source, x.Reference, x.Detected, x.Corrected,
		x.Payload, x.CorrectedSymbols, x.MarkerErrors, embeddingID,
	)
	if err != nil {
		return fmt.Errorf("failed to record extraction: %w", err)
	}
	return nil
}

const embeddingColumns = `embedding_id, created_unix_nanos, source, output, payload, layout,
	width, height, regions, blocks, degenerate_blocks, mse, psnr, warnings_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEmbedding(s scanner) (*Embedding, error) {
	var (
		e            Embedding
		created      int64
		psnr         sql.NullFloat64
		warningsJSON string
	)
	if err := s.Scan(&e.ID, &created, &e.Source, &e.Output, &e.Payload, &e.Layout,
		&e.Width, &e.Height, &e.Regions, &e.Blocks, &e.DegenerateBlocks, &e.MSE, &psnr, &warningsJSON); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	if psnr.Valid {
		e.PSNR = &psnr.Float64
	}
	if err := json.Unmarshal([]byte(warningsJSON), &e.Warnings); err != nil {
		return nil, fmt.Errorf("embedding %s: bad warnings: %w", e.ID, err)
	}
	return &e, nil
}

// LatestEmbedding returns the most recent embedding of payload, or
// sql.ErrNoRows.
func (db *DB) LatestEmbedding(payload string) (*Embedding, error) {
	row := db.QueryRow(`SELECT `+embeddingColumns+` FROM embeddings
		WHERE payload = ? ORDER BY created_unix_nanos DESC, rowid DESC LIMIT 1`, payload)
	return scanEmbedding(row)
}

// ListEmbeddings returns up to limit embeddings, newest first. A limit
// below 1 means 100.
func (db *DB) ListEmbeddings(limit int) ([]Embedding, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+embeddingColumns+` FROM embeddings
		ORDER BY created_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Embedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListExtractions returns up to limit extractions, newest first. A limit
// below 1 means 100.
func (db *DB) ListExtractions(limit int) ([]Extraction, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := db.Query(`SELECT extraction_id, created_unix_nanos, source, reference, detected,
			corrected, payload, corrected_symbols, marker_errors, embedding_id
		FROM extractions ORDER BY created_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extraction
	for rows.Next() {
		var (
			x           Extraction
			created     int64
			embeddingID sql.NullString
		)
		if err := rows.Scan(&x.ID, &created, &x.Source, &x.Reference, &x.Detected,
			&x.Corrected, &x.Payload, &x.CorrectedSymbols, &x.MarkerErrors, &embeddingID); err != nil {
			return nil, err
		}
		x.CreatedAt = time.Unix(0, created).UTC()
		x.EmbeddingID = embeddingID.String
		out = append(out, x)
	}
	return out, rows.Err()
}
