package miner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"zchain/blockchain"
	"zchain/exception"
	"zchain/logx"
	"zchain/monitoring"

	"github.com/pkg/errors"
)

const (
	DefaultBatchSize         = 1000
	DefaultNonceSpace uint64 = math.MaxUint32
)

// ErrNoNonceFound is returned when every worker stopped without a result.
var ErrNoNonceFound = errors.New("no nonce found")

var errWorkerPanicked = errors.New("worker panicked")

type Config struct {
	Threads  int
	Strategy Strategy
	// BatchSize is the number of hashes a worker computes between cancellation checks.
	BatchSize  int
	NonceSpace uint64
}

func DefaultConfig() Config {
	return Config{
		Threads:    1,
		Strategy:   RandomNonce,
		BatchSize:  DefaultBatchSize,
		NonceSpace: DefaultNonceSpace,
	}
}

func (cfg Config) Validate() error {
	if cfg.Threads <= 0 {
		return errors.Wrapf(blockchain.ErrInvalidArgument, "threads must exceed 0, got %d", cfg.Threads)
	}
	if cfg.BatchSize <= 0 {
		return errors.Wrapf(blockchain.ErrInvalidArgument, "batch size must exceed 0, got %d", cfg.BatchSize)
	}
	if cfg.Strategy == RangedNonce && cfg.NonceSpace < uint64(cfg.Threads) {
		return errors.Wrapf(blockchain.ErrInvalidArgument, "nonce space %d smaller than thread count %d", cfg.NonceSpace, cfg.Threads)
	}
	return nil
}

type Miner[T any] interface {
	Mine(ctx context.Context, b *blockchain.Block[T]) (*blockchain.Block[T], error)
}

// CpuMiner races Threads workers for a nonce; the first result wins and is
// committed, the rest are cancelled. Workers are created per call.
type CpuMiner[T any] struct {
	cfg Config
}

func NewCpuMiner[T any](cfg Config) (*CpuMiner[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CpuMiner[T]{cfg: cfg}, nil
}

// Mine runs a CpuMiner with default settings and the given thread count.
func Mine[T any](ctx context.Context, threads int, b *blockchain.Block[T]) (*blockchain.Block[T], error) {
	cfg := DefaultConfig()
	cfg.Threads = threads
	m, err := NewCpuMiner[T](cfg)
	if err != nil {
		return nil, err
	}
	return m.Mine(ctx, b)
}

func (m *CpuMiner[T]) Config() Config {
	return m.cfg
}

type result struct {
	worker int
	nonce  string
	hash   string
	err    error
}

func (m *CpuMiner[T]) nonceSource(worker int) nonceSource {
	if m.cfg.Strategy == RangedNonce {
		start, end := partition(m.cfg.NonceSpace, m.cfg.Threads, worker)
		return &rangedNonces{cur: start, end: end}
	}
	return randomNonces{}
}

func (m *CpuMiner[T]) Mine(ctx context.Context, b *blockchain.Block[T]) (*blockchain.Block[T], error) {
	if b == nil {
		return nil, errors.Wrap(blockchain.ErrInvalidArgument, "block cannot be nil")
	}
	if err := b.BeginMining(); err != nil {
		return nil, err
	}

	threads := m.cfg.Threads
	target := b.TargetPrefix()
	logx.Info("MINER", fmt.Sprintf("Mining block | height=%d | difficulty=%d | threads=%d | strategy=%s",
		b.Height(), b.Difficulty(), threads, m.cfg.Strategy))

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// every worker sends exactly once, so the buffer never blocks a sender
	results := make(chan result, threads)
	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		worker := i
		src := m.nonceSource(worker)
		wg.Add(1)
		exception.SafeGoWithRecover(fmt.Sprintf("miner-worker-%d", worker), func() {
			defer wg.Done()
			results <- m.search(searchCtx, worker, b, target, src)
		}, func(r interface{}) {
			results <- result{worker: worker, err: errors.Wrapf(errWorkerPanicked, "%v", r)}
		})
	}

	var failures int
	var lastErr error
	for failures < threads {
		select {
		case r := <-results:
			if r.err != nil {
				failures++
				lastErr = r.err
				m.recordFailure(r)
				continue
			}
			cancel()
			err := b.CommitMinedResult(r.nonce, r.hash)
			wg.Wait()
			if err != nil {
				monitoring.IncreaseCommitRejected()
				logx.Error("MINER", fmt.Sprintf("Commit rejected | height=%d | worker=%d | err=%v", b.Height(), r.worker, err))
				return nil, err
			}
			monitoring.IncreaseBlocksMined()
			monitoring.RecordMiningDuration(b.Elapsed())
			logx.Info("MINER", fmt.Sprintf("Mined block | height=%d | worker=%d | nonce=%s | hash=%s | elapsed=%s",
				b.Height(), r.worker, r.nonce, r.hash, b.Elapsed().Round(time.Microsecond)))
			return b, nil
		case <-ctx.Done():
			cancel()
			wg.Wait()
			return nil, errors.Wrapf(ctx.Err(), "mining block at height %d cancelled", b.Height())
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "mining block at height %d cancelled", b.Height())
	}
	return nil, errors.Wrapf(ErrNoNonceFound, "all %d workers stopped at height %d, last error: %v", threads, b.Height(), lastErr)
}

func (m *CpuMiner[T]) recordFailure(r result) {
	switch {
	case errors.Is(r.err, context.Canceled), errors.Is(r.err, context.DeadlineExceeded):
		return
	case errors.Is(r.err, errRangeExhausted):
		monitoring.RecordWorkerFailure(monitoring.WorkerRangeExhausted)
	case errors.Is(r.err, errWorkerPanicked):
		monitoring.RecordWorkerFailure(monitoring.WorkerPanicked)
	default:
		monitoring.RecordWorkerFailure(monitoring.WorkerNonceError)
	}
	logx.Warn("MINER", fmt.Sprintf("Worker stopped without result | worker=%d | err=%v", r.worker, r.err))
}

// search hashes candidates until one meets target, the source runs dry or
// ctx is cancelled. Cancellation is polled once per batch.
func (m *CpuMiner[T]) search(ctx context.Context, worker int, b *blockchain.Block[T], target string, src nonceSource) result {
	var hashes int64
	defer func() {
		monitoring.AddHashesComputed(m.cfg.Strategy.String(), hashes)
	}()

	for {
		if err := ctx.Err(); err != nil {
			return result{worker: worker, err: err}
		}
		for i := 0; i < m.cfg.BatchSize; i++ {
			nonce, err := src.next()
			if err != nil {
				return result{worker: worker, err: err}
			}
			hash := b.CalculateHash(nonce)
			hashes++
			if strings.HasPrefix(hash, target) {
				return result{worker: worker, nonce: nonce, hash: hash}
			}
		}
	}
}

// Extend mines the next block of chain and appends it.
func (m *CpuMiner[T]) Extend(ctx context.Context, chain *blockchain.Chain[T], payload T, difficulty int) (*blockchain.Block[T], error) {
	b, err := chain.NextBlock(payload, difficulty)
	if err != nil {
		return nil, err
	}
	if _, err := m.Mine(ctx, b); err != nil {
		return nil, err
	}
	if err := chain.Append(b); err != nil {
		return nil, err
	}
	monitoring.SetChainHeight(b.Height())
	return b, nil
}
