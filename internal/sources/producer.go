package sources

import (
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// ProducerStats are reported by Produce when it returns.
type ProducerStats struct {
	Reads     uint64
	IdleReads uint64
	Bytes     uint64
	Dropped   uint64
}

// Produce reads from a connected source and pushes copies of the bytes into
// q until the source closes or fails or ctx is cancelled. Cancellation
// closes the source so a blocked Read returns.
//
// It returns nil on orderly close or cancellation and a TransportLost error
// on abnormal loss.
func Produce(ctx context.Context, src Source, q *Queue) (ProducerStats, error) {
	var stats ProducerStats
	log := GetLogger().With(logger.String("source", src.Name()))

	stop := context.AfterFunc(ctx, func() {
		if err := src.Close(); err != nil {
			log.Debug("close on cancel", logger.Error(err))
		}
	})
	defer stop()

	dropLog := rate.NewLimiter(rate.Every(5*time.Second), 1)
	buf := make([]byte, max(1, src.ReadSize()))

	for {
		n, err := src.Read(buf)
		stats.Reads++
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			stats.Bytes += uint64(n)
			if q.Push(chunk) {
				stats.Dropped++
				if dropLog.Allow() {
					log.Warn("consumer is behind, dropping oldest queued chunk",
						logger.Uint64("dropped_total", q.Stats().Dropped),
						logger.Int("queue_capacity", q.Cap()))
				}
			}
		} else if err == nil {
			stats.IdleReads++
			log.Trace("read timeout without data")
		}

		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return stats, nil
		}
		if errors.Is(err, io.EOF) {
			log.Info("source closed by peer", logger.Uint64("bytes", stats.Bytes))
			return stats, nil
		}
		if IsLostError(err) {
			return stats, err
		}
		return stats, lostError(src.Name(), err)
	}
}
