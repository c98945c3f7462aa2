package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/pkg/config"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
)

// Warning codes surfaced to callers alongside a successful result
const (
	WarningMissingShelfLife = "MISSING_SHELF_LIFE"
)

// Warning is a non-fatal condition attached to a successful operation
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const generatedLotNotes = "Lot généré automatiquement via production"

// LotGenerator creates traceability lots for completed production
// operations. Lot codes are unique per article per day; the caller's
// transaction must hold the article lock before GenerateLot runs.
type LotGenerator struct {
	lotRepo *repository.LotRepository
	opRepo  *repository.OperationRepository
	cfg     config.LotConfig
	logger  *logger.Logger
}

// NewLotGenerator creates a new lot generator
func NewLotGenerator(lotRepo *repository.LotRepository, opRepo *repository.OperationRepository, cfg config.LotConfig, log *logger.Logger) *LotGenerator {
	return &LotGenerator{lotRepo: lotRepo, opRepo: opRepo, cfg: cfg, logger: log}
}

// GenerateLot creates the output lot of a production operation and the
// link row recording the produced quantity. The produced quantity is
// conform plus waste; waste is real output even though it never enters
// sellable stock. A missing shelf life on a perishable article yields
// nil dates and a warning, never an error.
func (g *LotGenerator) GenerateLot(
	ctx context.Context,
	tx *sqlx.Tx,
	operationID string,
	article *repository.Article,
	conform, waste decimal.Decimal,
	manufactured time.Time,
) (*repository.Lot, *Warning, error) {
	if err := g.lotRepo.LockArticle(ctx, tx, article.ID); err != nil {
		return nil, nil, err
	}

	seq, err := g.lotRepo.CountForDay(ctx, tx, article.ID, manufactured)
	if err != nil {
		return nil, nil, err
	}

	notes := generatedLotNotes
	lot := &repository.Lot{
		ArticleID:         article.ID,
		Code:              g.formatCode(article.Code, manufactured, seq+1),
		ManufacturingDate: manufactured,
		Notes:             &notes,
	}

	var warning *Warning
	if article.ShelfLifeDays != nil {
		expiration := manufactured.AddDate(0, 0, *article.ShelfLifeDays)
		alert := expiration.Add(-g.cfg.AlertLeadTime)
		lot.UseDate = &expiration
		lot.ExpirationDate = &expiration
		lot.AlertDate = &alert
	} else {
		warning = &Warning{
			Code:    WarningMissingShelfLife,
			Message: fmt.Sprintf("article %s has no shelf life, lot %s created without expiration dates", article.Code, lot.Code),
		}
	}

	if err := g.lotRepo.Create(ctx, tx, lot); err != nil {
		return nil, nil, err
	}

	produced := conform.Add(waste)
	link := &repository.OperationLot{
		OperationID:      operationID,
		LotID:            lot.ID,
		ProducedQuantity: produced,
	}
	if err := g.opRepo.CreateOperationLot(ctx, tx, link); err != nil {
		return nil, nil, err
	}

	g.logger.Info().
		Str("operation_id", operationID).
		Str("article_id", article.ID).
		Str("lot_code", lot.Code).
		Str("produced_quantity", produced.String()).
		Msg("production lot generated")

	return lot, warning, nil
}

func (g *LotGenerator) formatCode(articleCode string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%0*d", articleCode, day.Format("20060102"), g.cfg.SequencePadding, seq)
}
