package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/orchestrator"
	"github.com/Meltveit/qrydex/internal/state"
)

const defaultItemDelay = 2 * time.Second

// Verifier verifies and stores one business.
type Verifier interface {
	VerifyAndStore(ctx context.Context, orgNumber, countryCode string, hints *orchestrator.Hints) (*orchestrator.Outcome, error)
}

// Cursor is a bot's persisted position. Page is the next page to list;
// LastOrgNumber is the last candidate handled on the page before it.
type Cursor struct {
	Page          int    `json:"page"`
	LastOrgNumber string `json:"lastOrgNumber"`
	// Cycles counts completed passes over the whole catalog.
	Cycles int `json:"cycles"`
}

// BatchResult summarizes one RunBatch call.
type BatchResult struct {
	Page       int
	Candidates int
	Verified   int
	NotFound   int
	Failed     int
	// Wrapped is set when the batch finished the catalog and the cursor
	// went back to the first page.
	Wrapped bool
}

// Bot pages through a catalog, one page per batch.
type Bot struct {
	catalog   Catalog
	verifier  Verifier
	cursors   *state.Cursors
	log       logger.Logger
	itemDelay time.Duration
}

// NewBot creates a bot. The cursor is stored under the catalog's name.
func NewBot(catalog Catalog, verifier Verifier, cursors *state.Cursors, log logger.Logger) *Bot {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bot{
		catalog:   catalog,
		verifier:  verifier,
		cursors:   cursors,
		log:       log.With(logger.String("bot", catalog.Name())),
		itemDelay: defaultItemDelay,
	}
}

// WithItemDelay sets the pause between candidates.
func (b *Bot) WithItemDelay(d time.Duration) *Bot {
	b.itemDelay = d
	return b
}

// Name returns the bot's state key.
func (b *Bot) Name() string {
	return b.catalog.Name()
}

// Cursor returns the saved cursor, or the zero cursor.
func (b *Bot) Cursor(ctx context.Context) (Cursor, error) {
	var cur Cursor
	if _, err := b.cursors.Get(ctx, b.Name(), &cur); err != nil {
		return Cursor{}, err
	}
	return cur, nil
}

// RunBatch verifies the candidates of the cursor's page and saves the
// advanced cursor. Per-candidate failures are counted, not returned; a
// cancelled context stops the batch without saving.
func (b *Bot) RunBatch(ctx context.Context) (*BatchResult, error) {
	cur, err := b.Cursor(ctx)
	if err != nil {
		return nil, err
	}

	page, err := b.catalog.ListPage(ctx, cur.Page)
	if err != nil {
		return nil, fmt.Errorf("list page %d: %w", cur.Page, err)
	}

	res := &BatchResult{Page: cur.Page}
	last := cur.LastOrgNumber
	for i, cand := range page.Candidates {
		res.Candidates++
		if i > 0 {
			if sleepErr := sleep(ctx, b.itemDelay); sleepErr != nil {
				return res, sleepErr
			}
		}

		out, verifyErr := b.verifier.VerifyAndStore(ctx, cand.OrgNumber, cand.CountryCode, &orchestrator.Hints{
			Name:   cand.Name,
			Domain: normalizeDomain(cand.Domain),
		})
		switch {
		case ctx.Err() != nil:
			return res, ctx.Err()
		case verifyErr != nil:
			res.Failed++
			b.log.Warn("Candidate verification failed",
				logger.String("org_number", cand.OrgNumber),
				logger.Error(verifyErr),
			)
		case out.Verified():
			res.Verified++
		default:
			res.NotFound++
		}
		last = cand.OrgNumber
	}

	next := Cursor{Page: cur.Page + 1, LastOrgNumber: last, Cycles: cur.Cycles}
	if page.Last() {
		next = Cursor{Cycles: cur.Cycles + 1}
		res.Wrapped = true
	}
	if saveErr := b.cursors.Set(ctx, b.Name(), next); saveErr != nil {
		return res, fmt.Errorf("save cursor: %w", saveErr)
	}

	b.log.Info("Import batch complete",
		logger.Int("page", res.Page),
		logger.Int("candidates", res.Candidates),
		logger.Int("verified", res.Verified),
		logger.Int("not_found", res.NotFound),
		logger.Int("failed", res.Failed),
		logger.Bool("wrapped", res.Wrapped),
	)
	return res, nil
}

// Run executes batches until the catalog wraps, maxBatches is reached
// (zero means no limit) or ctx is cancelled.
func (b *Bot) Run(ctx context.Context, maxBatches int) (int, error) {
	batches := 0
	for maxBatches <= 0 || batches < maxBatches {
		res, err := b.RunBatch(ctx)
		if err != nil {
			return batches, err
		}
		batches++
		if res.Wrapped {
			break
		}
	}
	return batches, nil
}

// normalizeDomain reduces a homepage such as "https://www.Example.no/" to
// its site host. Unparseable input is dropped.
func normalizeDomain(raw string) string {
	if raw == "" {
		return ""
	}
	start, err := crawler.NormalizeStart(raw)
	if err != nil {
		return ""
	}
	return crawler.SiteHost(start)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
