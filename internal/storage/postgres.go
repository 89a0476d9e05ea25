package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db         *sql.DB
	similarity SimilarityOptions
	logger     *zap.Logger
}

func NewPostgresStorage(ctx context.Context, connStr string, similarity SimilarityOptions, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, similarity: similarity, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	s.logger.Debug("Schema initialized")
	return nil
}

const conceptColumns = `id, title, category, category_path, summary, key_points, details,
	related_concepts, confidence_score, conversation_id, version, last_updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConcept(row rowScanner) (*models.Concept, error) {
	c := &models.Concept{}
	var path, points pq.StringArray
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Category,
		&path,
		&c.Summary,
		&points,
		&c.Details,
		&c.RelatedConcepts,
		&c.ConfidenceScore,
		&c.ConversationID,
		&c.Version,
		&c.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	c.CategoryPath = []string(path)
	c.KeyPoints = []string(points)
	return c, nil
}

// textArray binds a nil slice as an empty array; the columns are NOT NULL.
func textArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

func (s *PostgresStorage) GetConcept(ctx context.Context, id string) (*models.Concept, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("concept %s: %w", id, ErrNotFound)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+conceptColumns+` FROM concepts WHERE id = $1`, id)
	c, err := scanConcept(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("concept %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting concept: %w", err)
	}
	return c, nil
}

func (s *PostgresStorage) CreateConcept(ctx context.Context, c *models.Concept) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.RelatedConcepts == nil {
		c.RelatedConcepts = models.RelatedList{}
	}

	query := `
		INSERT INTO concepts (id, title, category, category_path, summary, key_points, details,
			related_concepts, confidence_score, conversation_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		RETURNING version, last_updated`

	err := s.db.QueryRowContext(ctx, query,
		c.ID,
		c.Title,
		c.Category,
		textArray(c.CategoryPath),
		c.Summary,
		textArray(c.KeyPoints),
		c.Details,
		c.RelatedConcepts,
		c.ConfidenceScore,
		c.ConversationID,
	).Scan(&c.Version, &c.LastUpdated)
	if err != nil {
		return fmt.Errorf("error creating concept: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateConcept(ctx context.Context, c *models.Concept) error {
	query := `
		UPDATE concepts
		SET title = $1, category = $2, category_path = $3, summary = $4, key_points = $5,
			details = $6, related_concepts = $7, confidence_score = $8,
			version = version + 1, last_updated = NOW()
		WHERE id = $9 AND version = $10
		RETURNING version, last_updated`

	err := s.db.QueryRowContext(ctx, query,
		c.Title,
		c.Category,
		textArray(c.CategoryPath),
		c.Summary,
		textArray(c.KeyPoints),
		c.Details,
		c.RelatedConcepts,
		c.ConfidenceScore,
		c.ID,
		c.Version,
	).Scan(&c.Version, &c.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetConcept(ctx, c.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("concept %s: %w", c.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error updating concept: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateRelatedPair(ctx context.Context, a, b RelatedUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range []RelatedUpdate{a, b} {
		related := u.Related
		if related == nil {
			related = models.RelatedList{}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE concepts SET related_concepts = $1, version = version + 1
			WHERE id = $2 AND version = $3`,
			related, u.ID, u.Version)
		if err != nil {
			return &ConceptError{ID: u.ID, Err: fmt.Errorf("error updating related concepts: %w", err)}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return &ConceptError{ID: u.ID, Err: fmt.Errorf("error updating related concepts: %w", err)}
		}
		if n == 0 {
			if err := tx.QueryRowContext(ctx, `SELECT 1 FROM concepts WHERE id = $1`, u.ID).Scan(new(int)); errors.Is(err, sql.ErrNoRows) {
				return &ConceptError{ID: u.ID, Err: ErrNotFound}
			}
			return &ConceptError{ID: u.ID, Err: ErrConflict}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing related concepts: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListConceptTexts(ctx context.Context, limit int) ([]models.ConceptText, error) {
	query := `
		SELECT title, category, category_path, summary, key_points
		FROM concepts
		ORDER BY last_updated DESC, id
		LIMIT $1`

	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying concepts: %w", err)
	}
	defer rows.Close()

	var texts []models.ConceptText
	for rows.Next() {
		var t models.ConceptText
		var path, points pq.StringArray
		if err := rows.Scan(&t.Title, &t.Category, &path, &t.Summary, &points); err != nil {
			return nil, fmt.Errorf("error scanning concept: %w", err)
		}
		t.CategoryPath = []string(path)
		t.KeyPoints = []string(points)
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating concepts: %w", err)
	}
	return texts, nil
}

func (s *PostgresStorage) CorpusUpdatedAt(ctx context.Context) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT MAX(last_updated) FROM concepts`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("error reading corpus stamp: %w", err)
	}
	return latest.Time, nil
}

func (s *PostgresStorage) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE concepts SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("error setting embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("concept %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) Rank(ctx context.Context, id string) ([]models.SimilarConcept, error) {
	if _, err := s.GetConcept(ctx, id); err != nil {
		return nil, err
	}

	query := `
		SELECT c.id, c.title, 1 - (c.embedding <=> src.embedding) AS score
		FROM concepts c, concepts src
		WHERE src.id = $1
			AND c.id <> src.id
			AND c.embedding IS NOT NULL
			AND src.embedding IS NOT NULL
			AND vector_dims(c.embedding) = vector_dims(src.embedding)
			AND 1 - (c.embedding <=> src.embedding) >= $2
		ORDER BY c.embedding <=> src.embedding, c.id
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, id, s.similarity.Threshold, s.similarity.limit())
	if err != nil {
		return nil, fmt.Errorf("error ranking similar concepts: %w", err)
	}
	defer rows.Close()

	out := make([]models.SimilarConcept, 0)
	for rows.Next() {
		var sc models.SimilarConcept
		if err := rows.Scan(&sc.ID, &sc.Title, &sc.Score); err != nil {
			return nil, fmt.Errorf("error scanning similar concept: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating similar concepts: %w", err)
	}
	return out, nil
}

func (s *PostgresStorage) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent_id, created_at, updated_at
		FROM categories
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		var parentID sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &parentID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		if parentID.Valid {
			p := parentID.String
			c.ParentID = &p
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func (s *PostgresStorage) CreateCategory(ctx context.Context, name string, parentPath []string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("create category: empty name")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var parentID *string
	for _, segment := range parentPath {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		parent, err := findOrCreateCategory(ctx, tx, segment, parentID)
		if err != nil {
			return nil, err
		}
		parentID = &parent.ID
	}

	c, err := findOrCreateCategory(ctx, tx, name, parentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing category: %w", err)
	}
	return c, nil
}

func findOrCreateCategory(ctx context.Context, tx *sql.Tx, name string, parentID *string) (*models.Category, error) {
	var parent sql.NullString
	if parentID != nil {
		parent = sql.NullString{String: *parentID, Valid: true}
	}

	// The conflict target matches idx_categories_parent_name; DO UPDATE makes
	// RETURNING yield the existing row.
	query := `
		INSERT INTO categories (id, name, parent_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (COALESCE(parent_id::text, ''), LOWER(name))
		DO UPDATE SET updated_at = categories.updated_at
		RETURNING id, name, created_at, updated_at`

	c := &models.Category{}
	err := tx.QueryRowContext(ctx, query, uuid.New().String(), name, parent).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating category %q: %w", name, err)
	}
	if parentID != nil {
		p := *parentID
		c.ParentID = &p
	}
	return c, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
