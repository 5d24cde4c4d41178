package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meditation/internal/model"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("program not found")
	// ErrConflict is returned when an update carries an expected version that
	// no longer matches the stored program.
	ErrConflict = errors.New("program was modified concurrently")
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the programs table if it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// ProgramPatch carries a partial update; nil fields are left untouched.
type ProgramPatch struct {
	Name         *string
	Description  *string
	Instructions *string
	Pages        *[]model.Page
	Resources    *[]model.Resource
	// ExpectedUpdatedAt enables optimistic locking when set.
	ExpectedUpdatedAt *time.Time
}

// ProgramRepository defines the interface for interacting with program documents
type ProgramRepository interface {
	// ListPrograms returns every program, newest-created first
	ListPrograms(ctx context.Context) ([]model.Program, error)
	// GetProgram returns nil without error when the program does not exist
	GetProgram(ctx context.Context, id string) (*model.Program, error)
	CreateProgram(ctx context.Context, p *model.Program) (*model.Program, error)
	UpdateProgram(ctx context.Context, id string, patch ProgramPatch) (*model.Program, error)
	// DeleteProgram is idempotent
	DeleteProgram(ctx context.Context, id string) error
}

type programRepo struct {
	db            *sql.DB
	notifyChannel string
	logger        zerolog.Logger
}

// NewProgramRepo creates a new ProgramRepository. Every write notifies
// notifyChannel so change-feed listeners can reload.
func NewProgramRepo(db *sql.DB, notifyChannel string, logger zerolog.Logger) ProgramRepository {
	return &programRepo{
		db:            db,
		notifyChannel: notifyChannel,
		logger:        logger.With().Str("repository", "ProgramRepository").Logger(),
	}
}

const programColumns = `id, name, description, instructions, pages, resources, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (*model.Program, error) {
	var (
		p         model.Program
		pages     []byte
		resources []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Instructions,
		&pages,
		&resources,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		if err := json.Unmarshal(pages, &p.Pages); err != nil {
			return nil, fmt.Errorf("failed to decode pages of program %s: %w", p.ID, err)
		}
	}
	if len(resources) > 0 {
		if err := json.Unmarshal(resources, &p.Resources); err != nil {
			return nil, fmt.Errorf("failed to decode resources of program %s: %w", p.ID, err)
		}
	}
	p.Normalize()
	return &p, nil
}

// ListPrograms retrieves all programs ordered by creation time, newest first
func (r *programRepo) ListPrograms(ctx context.Context) ([]model.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	defer rows.Close()

	programs := []model.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program row: %w", err)
		}
		programs = append(programs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate program rows: %w", err)
	}
	return programs, nil
}

// GetProgram retrieves a program by its ID
func (r *programRepo) GetProgram(ctx context.Context, id string) (*model.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE id = $1`
	p, err := scanProgram(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get program %s: %w", id, err)
	}
	return p, nil
}

// CreateProgram inserts a new program with a fresh ID and server timestamps
func (r *programRepo) CreateProgram(ctx context.Context, p *model.Program) (*model.Program, error) {
	doc := p.Clone()
	doc.Normalize()
	pages, err := json.Marshal(doc.Pages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pages: %w", err)
	}
	resources, err := json.Marshal(doc.Resources)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resources: %w", err)
	}

	id := model.NewProgramID()
	query := `
		INSERT INTO programs (id, name, description, instructions, pages, resources, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, NOW(), NOW())
		RETURNING ` + programColumns

	var created *model.Program
	err = r.withNotify(ctx, id, func(tx *sql.Tx) error {
		var err error
		created, err = scanProgram(tx.QueryRowContext(ctx, query,
			id, doc.Name, doc.Description, doc.Instructions, string(pages), string(resources)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	r.logger.Info().Str("program_id", id).Msg("Program created")
	return created, nil
}

// UpdateProgram merges patch into the stored program and refreshes updated_at
func (r *programRepo) UpdateProgram(ctx context.Context, id string, patch ProgramPatch) (*model.Program, error) {
	pages, err := jsonParam(patch.Pages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pages: %w", err)
	}
	resources, err := jsonParam(patch.Resources)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resources: %w", err)
	}
	var expected any
	if patch.ExpectedUpdatedAt != nil {
		expected = *patch.ExpectedUpdatedAt
	}

	query := `
		UPDATE programs
		SET name = COALESCE($2::text, name),
		    description = COALESCE($3::text, description),
		    instructions = COALESCE($4::text, instructions),
		    pages = COALESCE($5::jsonb, pages),
		    resources = COALESCE($6::jsonb, resources),
		    updated_at = NOW()
		WHERE id = $1 AND ($7::timestamptz IS NULL OR updated_at = $7::timestamptz)
		RETURNING ` + programColumns

	var updated *model.Program
	err = r.withNotify(ctx, id, func(tx *sql.Tx) error {
		var err error
		updated, err = scanProgram(tx.QueryRowContext(ctx, query,
			id,
			stringParam(patch.Name),
			stringParam(patch.Description),
			stringParam(patch.Instructions),
			pages,
			resources,
			expected,
		))
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if qerr := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM programs WHERE id = $1)`, id).Scan(&exists); qerr != nil {
				return qerr
			}
			if exists {
				return ErrConflict
			}
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update program %s: %w", id, err)
	}
	r.logger.Info().Str("program_id", id).Msg("Program updated")
	return updated, nil
}

// DeleteProgram removes a program; deleting a missing program is not an error
func (r *programRepo) DeleteProgram(ctx context.Context, id string) error {
	err := r.withNotify(ctx, id, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete program %s: %w", id, err)
	}
	r.logger.Info().Str("program_id", id).Msg("Program deleted")
	return nil
}

// withNotify runs fn in a transaction and queues a notification that is
// delivered to listeners when the transaction commits.
func (r *programRepo) withNotify(ctx context.Context, programID string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if r.notifyChannel != "" {
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, r.notifyChannel, programID); err != nil {
			return fmt.Errorf("failed to notify %s: %w", r.notifyChannel, err)
		}
	}
	return tx.Commit()
}

func stringParam(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func jsonParam[T any](v *[]T) (any, error) {
	if v == nil {
		return nil, nil
	}
	items := *v
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
