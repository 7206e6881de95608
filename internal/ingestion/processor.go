package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kbchat/backend/internal/metrics"
	"github.com/kbchat/backend/internal/storage/models"
	"github.com/kbchat/backend/pkg/logger"
)

// RawPair is one extracted Q&A unit as handed over by a parser, before it
// carries an embedding.
type RawPair struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Upload is the parser-to-core boundary structure for one uploaded file.
type Upload struct {
	Pairs    []RawPair `json:"pairs"`
	FullText string    `json:"fullText"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	InsertDocument(doc *models.QADocument) error
	InsertPair(pair *models.QAPair, position int) error
	UpdateDocumentStatus(id, status string, pairCount int) error
}

// Processor turns uploaded Q&A pairs into an embedded, retrievable corpus
// document. Documents are created as processing and only transition to
// completed once every pair has been embedded and stored, so retrieval never
// sees a half-embedded document.
type Processor struct {
	db          Store
	embedder    Embedder
	maxParallel int
}

func NewProcessor(db Store, embedder Embedder, maxParallel int) *Processor {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Processor{
		db:          db,
		embedder:    embedder,
		maxParallel: maxParallel,
	}
}

// CreateDocument registers the upload in the processing state. Embedding
// happens separately so the upload endpoint can return immediately.
func (p *Processor) CreateDocument(tenantID, fileName, fileType, fullText string) (*models.QADocument, error) {
	now := time.Now()
	doc := &models.QADocument{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		FileName:  fileName,
		FileType:  fileType,
		Status:    models.DocStatusProcessing,
		FullText:  fullText,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := p.db.InsertDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return doc, nil
}

// EmbedAndStore embeds every pair's question with bounded fan-out, joins,
// and transitions the document to completed or failed. Pairs have no
// ordering dependency between each other; position only fixes the stable
// retrieval order later.
func (p *Processor) EmbedAndStore(ctx context.Context, doc *models.QADocument, pairs []RawPair) error {
	logger.Info("Embedding document pairs",
		zap.String("doc_id", doc.ID),
		zap.String("tenant_id", doc.TenantID),
		zap.Int("pairs", len(pairs)),
	)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		stored   int
	)
	sem := make(chan struct{}, p.maxParallel)

	for i, raw := range pairs {
		wg.Add(1)
		sem <- struct{}{}

		go func(position int, raw RawPair) {
			defer wg.Done()
			defer func() { <-sem }()

			embedding, err := p.embedder.Embed(ctx, raw.Question)
			if err == nil {
				pair := &models.QAPair{
					ID:         uuid.New().String(),
					DocumentID: doc.ID,
					TenantID:   doc.TenantID,
					Question:   raw.Question,
					Answer:     raw.Answer,
					Category:   raw.Category,
					Confidence: raw.Confidence,
					Embedding:  embedding,
				}
				err = p.db.InsertPair(pair, position)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			stored++
			metrics.PairsEmbedded.Inc()
		}(i, raw)
	}

	wg.Wait()

	if firstErr != nil {
		if err := p.db.UpdateDocumentStatus(doc.ID, models.DocStatusFailed, stored); err != nil {
			logger.Error("Failed to mark document failed", zap.String("doc_id", doc.ID), zap.Error(err))
		}
		metrics.DocumentsProcessed.WithLabelValues(models.DocStatusFailed).Inc()
		return fmt.Errorf("failed to embed document %s: %w", doc.ID, firstErr)
	}

	if err := p.db.UpdateDocumentStatus(doc.ID, models.DocStatusCompleted, stored); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}
	metrics.DocumentsProcessed.WithLabelValues(models.DocStatusCompleted).Inc()

	logger.Info("Document processed",
		zap.String("doc_id", doc.ID),
		zap.Int("pairs", stored),
	)
	return nil
}
