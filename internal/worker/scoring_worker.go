package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naijaprep/cbt-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ScoreBatchSize    = 50
	ScoreBatchTimeout = 2 * time.Second
	ScorePollTimeout  = 1 * time.Second
)

// ScoringWorker consumes persist_scores_queue and writes terminal session
// results to PostgreSQL. Grading already happened in RAM at submission time;
// this worker only makes the result durable.
type ScoringWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewScoringWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "scoring_worker").Logger(),
	}
}

type scorePayload struct {
	SessionID   string            `json:"session_id"`
	Score       int               `json:"score"`
	Percentage  float64           `json:"percentage"`
	Answers     map[string]string `json:"answers"`
	TabSwitches int               `json:"tab_switches"`
	FocusLosses int               `json:"focus_losses"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoringWorker started")

	batch := make([]*scorePayload, 0, ScoreBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ScoreBatchSize || time.Since(lastFlush) >= ScoreBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ScorePollTimeout, config.WorkerKey.PersistScoresQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p scorePayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batched update with per-item fallback
// ----------------------------------------------------------------

func (w *ScoringWorker) flushSafe(ctx context.Context, batch []*scorePayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.batchUpdateScores(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Batch score update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).
					Str("session_id", p.SessionID).
					Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw)
			}
		}
	}
}

// completeSessionQuery carries the same status predicate as the synchronous
// completion path: a session completed by the WebSocket stream matches zero
// rows when its queued duplicate arrives.
const completeSessionQuery = `
	UPDATE exam_sessions
	SET status = 'COMPLETED',
	    score = $1,
	    percentage = $2,
	    answers = $3,
	    tab_switches = GREATEST(tab_switches, $4),
	    focus_losses = GREATEST(focus_losses, $5),
	    finished_at = NOW()
	WHERE id = $6 AND status = 'IN_PROGRESS'`

// batchUpdateScores pipelines the per-session updates in one round trip.
// The answers column is jsonb keyed by question UUID, which rules out a flat
// UNNEST bulk statement; pgx batching gets the same round-trip economy.
func (w *ScoringWorker) batchUpdateScores(ctx context.Context, batch []*scorePayload) error {
	b := &pgx.Batch{}
	for _, p := range batch {
		sessionID, err := uuid.Parse(p.SessionID)
		if err != nil {
			return err
		}
		b.Queue(completeSessionQuery,
			p.Score, p.Percentage, p.Answers, p.TabSwitches, p.FocusLosses, sessionID)
	}

	results := w.pool.SendBatch(ctx, b)
	defer results.Close()

	for range batch {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------------------------------------------
// FALLBACK single update
// ----------------------------------------------------------------

func (w *ScoringWorker) persistSingle(ctx context.Context, p *scorePayload) error {
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx, completeSessionQuery,
		p.Score, p.Percentage, p.Answers, p.TabSwitches, p.FocusLosses, sessionID)
	return err
}
