package workers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// ArchiverWorker periodically uploads every account's message log snapshot
type ArchiverWorker struct {
	store    deps.AccountStore
	sink     deps.MessageSink
	uploader deps.SnapshotUploader
	interval time.Duration
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	done   chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewArchiverWorker creates the archiver; a nil uploader makes Start a no-op
func NewArchiverWorker(
	store deps.AccountStore,
	sink deps.MessageSink,
	uploader deps.SnapshotUploader,
	interval time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ArchiverWorker {
	ctx, cancel := context.WithCancel(context.Background())

	return &ArchiverWorker{
		store:    store,
		sink:     sink,
		uploader: uploader,
		interval: interval,
		metrics:  m,
		logger:   logger.With().Str("component", "archiver").Logger(),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Enabled reports whether an uploader is configured
func (w *ArchiverWorker) Enabled() bool {
	return w.uploader != nil
}

// Start starts the archive loop
func (w *ArchiverWorker) Start() {
	if !w.Enabled() {
		return
	}

	w.logger.Info().Dur("interval", w.interval).Msg("Starting log archiver")

	w.wg.Add(1)
	go w.run()
}

// Stop stops the archive loop and waits for a running cycle
func (w *ArchiverWorker) Stop() {
	if !w.Enabled() {
		return
	}

	w.cancel()
	close(w.done)
	w.wg.Wait()

	w.logger.Info().Msg("Log archiver stopped")
}

func (w *ArchiverWorker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.ArchiveAll(w.ctx)
		}
	}
}

// ArchiveAll uploads one snapshot per account and returns the number uploaded.
// Failures are logged per account and do not stop the cycle.
func (w *ArchiverWorker) ArchiveAll(ctx context.Context) int {
	accounts, err := w.store.List(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to list accounts for archiving")
		return 0
	}

	uploaded := 0
	for _, acc := range accounts {
		if ctx.Err() != nil {
			break
		}

		log := w.logger.With().Str("phone", phone.Mask(acc.AccountID)).Logger()

		messages, err := w.sink.ReadAll(ctx, acc.AccountID)
		if err != nil {
			log.Error().Err(err).Msg("failed to read message log")
			continue
		}
		if len(messages) == 0 {
			continue
		}

		data, err := json.MarshalIndent(messages, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("failed to encode message log")
			continue
		}

		err = w.uploader.UploadSnapshot(ctx, acc.AccountID, data)
		if w.metrics != nil {
			w.metrics.RecordArchive(err)
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to archive message log")
			continue
		}
		uploaded++
	}

	w.logger.Debug().Int("accounts", len(accounts)).Int("uploaded", uploaded).Msg("archive cycle completed")
	return uploaded
}
