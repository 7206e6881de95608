package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		website TEXT,
		scrape_config TEXT,
		embedding_model TEXT NOT NULL,
		page_count INTEGER DEFAULT 0,
		last_scraped INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS qa_documents (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_type TEXT NOT NULL,
		status TEXT NOT NULL,
		pair_count INTEGER DEFAULT 0,
		full_text TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_tenant ON qa_documents(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON qa_documents(status);

	CREATE TABLE IF NOT EXISTS qa_pairs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		category TEXT,
		confidence REAL,
		embedding TEXT,
		FOREIGN KEY (document_id) REFERENCES qa_documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_pairs_tenant ON qa_pairs(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_pairs_document ON qa_pairs(document_id);
	CREATE INDEX IF NOT EXISTS idx_pairs_confidence ON qa_pairs(confidence);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		query_text TEXT NOT NULL,
		refined_query TEXT,
		response_type TEXT NOT NULL,
		confidence TEXT,
		score REAL,
		language TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_tenant ON query_history(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_history_created ON query_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertTenant(tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, website, scrape_config, embedding_model, page_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		tenant.ID,
		tenant.Name,
		tenant.Website,
		tenant.ScrapeConfig,
		tenant.EmbeddingModel,
		tenant.PageCount,
		tenant.CreatedAt.Unix(),
		tenant.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}

	logger.Info("Tenant created", zap.String("tenant_id", tenant.ID), zap.String("name", tenant.Name))
	return nil
}

func (c *Client) GetTenant(id string) (*models.Tenant, error) {
	query := `SELECT id, name, website, scrape_config, embedding_model, page_count, last_scraped, created_at, updated_at FROM tenants WHERE id = ?`

	var tenant models.Tenant
	var lastScraped sql.NullInt64
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Website,
		&tenant.ScrapeConfig,
		&tenant.EmbeddingModel,
		&tenant.PageCount,
		&lastScraped,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if lastScraped.Valid {
		t := time.Unix(lastScraped.Int64, 0)
		tenant.LastScraped = &t
	}
	tenant.CreatedAt = time.Unix(createdAt, 0)
	tenant.UpdatedAt = time.Unix(updatedAt, 0)

	return &tenant, nil
}

func (c *Client) ListTenants() ([]models.Tenant, error) {
	query := `SELECT id, name, website, embedding_model, page_count, created_at FROM tenants ORDER BY created_at DESC`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		var createdAt int64

		if err := rows.Scan(&t.ID, &t.Name, &t.Website, &t.EmbeddingModel, &t.PageCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		t.CreatedAt = time.Unix(createdAt, 0)
		tenants = append(tenants, t)
	}

	return tenants, nil
}

// DeleteTenant removes the tenant row only. Owned documents are cascaded by
// the qa_pairs foreign key when their document rows go, but document cleanup
// itself is not transactional with this delete.
func (c *Client) DeleteTenant(id string) error {
	if _, err := c.db.Exec(`DELETE FROM qa_documents WHERE tenant_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tenant documents: %w", err)
	}

	if _, err := c.db.Exec(`DELETE FROM tenants WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}

	logger.Info("Tenant deleted", zap.String("tenant_id", id))
	return nil
}

func (c *Client) InsertDocument(doc *models.QADocument) error {
	query := `
		INSERT INTO qa_documents (id, tenant_id, file_name, file_type, status, pair_count, full_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.TenantID,
		doc.FileName,
		doc.FileType,
		doc.Status,
		doc.PairCount,
		doc.FullText,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted",
		zap.String("doc_id", doc.ID),
		zap.String("tenant_id", doc.TenantID),
		zap.String("status", doc.Status),
	)
	return nil
}

func (c *Client) UpdateDocumentStatus(id, status string, pairCount int) error {
	query := `UPDATE qa_documents SET status = ?, pair_count = ?, updated_at = ? WHERE id = ?`

	_, err := c.db.Exec(query, status, pairCount, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	logger.Info("Document status updated",
		zap.String("doc_id", id),
		zap.String("status", status),
		zap.Int("pairs", pairCount),
	)
	return nil
}

func (c *Client) InsertPair(pair *models.QAPair, position int) error {
	embeddingJSON, err := json.Marshal(pair.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `
		INSERT INTO qa_pairs (id, document_id, tenant_id, position, question, answer, category, confidence, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		pair.ID,
		pair.DocumentID,
		pair.TenantID,
		position,
		pair.Question,
		pair.Answer,
		pair.Category,
		pair.Confidence,
		string(embeddingJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert pair: %w", err)
	}

	return nil
}

// CompletedPairs returns every pair of the tenant whose document finished
// processing, in stable upload order. This order is the ranking tie-breaker.
func (c *Client) CompletedPairs(ctx context.Context, tenantID string) ([]models.QAPair, error) {
	query := `
		SELECT p.id, p.document_id, p.tenant_id, p.question, p.answer, p.category, p.confidence, p.embedding
		FROM qa_pairs p
		JOIN qa_documents d ON d.id = p.document_id
		WHERE p.tenant_id = ? AND d.status = ?
		ORDER BY d.created_at, p.position
	`

	rows, err := c.db.QueryContext(ctx, query, tenantID, models.DocStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	defer rows.Close()

	var pairs []models.QAPair
	for rows.Next() {
		var p models.QAPair
		var embeddingJSON string

		if err := rows.Scan(&p.ID, &p.DocumentID, &p.TenantID, &p.Question, &p.Answer, &p.Category, &p.Confidence, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if embeddingJSON != "" && embeddingJSON != "null" {
			if err := json.Unmarshal([]byte(embeddingJSON), &p.Embedding); err != nil {
				logger.Warn("Malformed embedding, skipping pair",
					zap.String("pair_id", p.ID),
					zap.Error(err),
				)
				continue
			}
		}

		pairs = append(pairs, p)
	}

	return pairs, nil
}

// PriorityQuestions returns the tenant's top pairs by stored extraction
// confidence, descending.
func (c *Client) PriorityQuestions(ctx context.Context, tenantID string, limit int) ([]models.QAPair, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT p.id, p.question, p.answer, p.category, p.confidence
		FROM qa_pairs p
		JOIN qa_documents d ON d.id = p.document_id
		WHERE p.tenant_id = ? AND d.status = ?
		ORDER BY p.confidence DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, tenantID, models.DocStatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load priority questions: %w", err)
	}
	defer rows.Close()

	var pairs []models.QAPair
	for rows.Next() {
		var p models.QAPair
		if err := rows.Scan(&p.ID, &p.Question, &p.Answer, &p.Category, &p.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		pairs = append(pairs, p)
	}

	return pairs, nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, tenant_id, session_id, query_text, refined_query, response_type,
			confidence, score, language, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.TenantID,
		record.SessionID,
		record.QueryText,
		record.RefinedQuery,
		record.ResponseType,
		record.Confidence,
		record.Score,
		record.Language,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	return nil
}

func (c *Client) GetQueryHistory(tenantID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, query_text, response_type, confidence, score, created_at
		FROM query_history
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.SessionID, &r.QueryText, &r.ResponseType, &r.Confidence, &r.Score, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}
