package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/SimonWaldherr/tinyLStore/internal/structures"
)

// Intent tells the buffer pool whether a page access will mutate the block,
// so dirty tracking is explicit per call instead of a boolean flag.
type Intent int

const (
	// IntentRead marks an access that leaves the block clean.
	IntentRead Intent = iota
	// IntentWrite marks an access after which the block must be flushed
	// before eviction.
	IntentWrite
)

// blockKey identifies one block within a table's buffer pool: the column,
// whether it belongs to the tail stream, and the block number.
type blockKey struct {
	column int
	tail   bool
	block  int
}

// BufferPool keeps a bounded set of blocks in memory. Blocks are loaded on
// demand, pinned while borrowed, tracked in a dirty set when mutated, and
// evicted by a priority queue under the configured cache policy. A single
// mutex protects the pin counts, the evict flags, and the dirty-set
// transitions; the queue is only touched inside those critical sections.
type BufferPool struct {
	basePath  string
	blockSize int // pages per block
	maxBlocks int
	cfg       *Config

	mu           sync.Mutex
	queue        *structures.PriorityQueue[blockKey, *Block]
	dirty        map[blockKey]struct{}
	pinnedBlocks map[blockKey]int
	toEvict      map[blockKey]*Block
}

// NewBufferPool creates the pool and the on-disk column directories under
// basePath (<database>/<table>/{base,tail}/<column>).
func NewBufferPool(basePath string, numColumns int, cfg *Config) (*BufferPool, error) {
	for i := 0; i < numColumns; i++ {
		for _, kind := range []string{"base", "tail"} {
			dir := filepath.Join(basePath, kind, strconv.Itoa(i))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create column directory %s: %w", dir, err)
			}
		}
	}

	queue := structures.NewPriorityQueue[blockKey, *Block](cfg.PoolMaxBlocks)
	queue.SetPolicy(cfg.cachePolicy())

	return &BufferPool{
		basePath:     basePath,
		blockSize:    cfg.PagesPerBlock,
		maxBlocks:    cfg.PoolMaxBlocks,
		cfg:          cfg,
		queue:        queue,
		dirty:        make(map[blockKey]struct{}),
		pinnedBlocks: make(map[blockKey]int),
		toEvict:      make(map[blockKey]*Block),
	}, nil
}

// columnDir returns the directory holding a key's block files.
func (bp *BufferPool) columnDir(key blockKey) string {
	kind := "base"
	if key.tail {
		kind = "tail"
	}
	return filepath.Join(bp.basePath, kind, strconv.Itoa(key.column))
}

// AddPage appends a page to the block owning pageNum: pin, load, append,
// unpin, mark dirty, refresh cache priority.
func (bp *BufferPool) AddPage(page *Page, pageNum int64, column int, tail bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := bp.keyFor(pageNum, column, tail)
	bp.pin(key)
	defer bp.unpin(key)

	block, err := bp.load(key)
	if err != nil {
		return err
	}
	block.Append(page)
	bp.dirty[key] = struct{}{}
	return nil
}

// GetPage returns the page at pageNum. A write intent marks the owning block
// dirty; either intent refreshes its cache priority.
func (bp *BufferPool) GetPage(pageNum int64, column int, tail bool, intent Intent) (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := bp.keyFor(pageNum, column, tail)
	bp.pin(key)
	defer bp.unpin(key)

	block, err := bp.load(key)
	if err != nil {
		return nil, err
	}
	page := block.Page(int(pageNum % int64(bp.blockSize)))
	if page == nil {
		return nil, fmt.Errorf("buffer pool: page %d column %d tail=%v: %w", pageNum, column, tail, ErrPageOutOfRange)
	}
	if intent == IntentWrite {
		bp.dirty[key] = struct{}{}
	}
	return page, nil
}

// UpdatePage replaces the in-block slot for pageNum with the given page and
// marks the block dirty.
func (bp *BufferPool) UpdatePage(page *Page, pageNum int64, column int, tail bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := bp.keyFor(pageNum, column, tail)
	bp.pin(key)
	defer bp.unpin(key)

	block, err := bp.load(key)
	if err != nil {
		return err
	}
	if err := block.Replace(int(pageNum%int64(bp.blockSize)), page); err != nil {
		return err
	}
	bp.dirty[key] = struct{}{}
	return nil
}

// Flush writes every dirty block to disk and clears the queue, the dirty
// set, and the bookkeeping maps.
func (bp *BufferPool) Flush() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for key := range bp.dirty {
		var block *Block
		if entry := bp.queue.Get(key); entry != nil {
			block = entry.Value
		} else if pending, ok := bp.toEvict[key]; ok {
			block = pending
		}
		if block == nil {
			continue
		}
		if _, err := block.Write(); err != nil {
			return err
		}
	}

	bp.queue.Clear()
	bp.dirty = make(map[blockKey]struct{})
	bp.pinnedBlocks = make(map[blockKey]int)
	bp.toEvict = make(map[blockKey]*Block)
	return nil
}

func (bp *BufferPool) keyFor(pageNum int64, column int, tail bool) blockKey {
	return blockKey{column: column, tail: tail, block: int(pageNum / int64(bp.blockSize))}
}

// load returns the cached block for key, reading it from disk and inserting
// it into the queue when absent. The caller must hold bp.mu.
func (bp *BufferPool) load(key blockKey) (*Block, error) {
	if entry := bp.queue.Get(key); entry != nil {
		// Re-push refreshes the priority under the configured policy.
		bp.handleEviction(bp.queue.Push(key, entry.Value, 0))
		return entry.Value, nil
	}
	if pending, ok := bp.toEvict[key]; ok {
		// Evicted while pinned and not yet flushed; still authoritative.
		return pending, nil
	}

	block := NewBlock(bp.columnDir(key), key.column, key.block, bp.blockSize, bp.cfg)
	if _, err := block.Read(); err != nil {
		return nil, err
	}
	if evicted := bp.queue.Push(key, block, 0); evicted != nil {
		if evicted.Key == key {
			// The fresh block bounced straight back out of a full queue of
			// higher-priority entries. Keep it reachable so the current
			// operation's dirty marks survive until the final unpin flushes.
			bp.toEvict[key] = block
		} else {
			bp.handleEviction(evicted)
		}
	}
	return block, nil
}

// handleEviction applies the eviction protocol to an entry pushed out of the
// queue: clean blocks are dropped, dirty unpinned blocks are written now,
// and dirty pinned blocks are flagged so the final unpin flushes them.
func (bp *BufferPool) handleEviction(evicted *structures.Entry[blockKey, *Block]) {
	if evicted == nil {
		return
	}
	key := evicted.Key
	if _, isDirty := bp.dirty[key]; !isDirty {
		return
	}
	if bp.pinnedBlocks[key] == 0 {
		if _, err := evicted.Value.Write(); err != nil {
			log.Printf("buffer pool: flush of evicted block %v failed: %v", key, err)
			return
		}
		delete(bp.dirty, key)
		return
	}
	bp.toEvict[key] = evicted.Value
}

// pin takes one reference on the block. Pinning is reentrant.
func (bp *BufferPool) pin(key blockKey) {
	bp.pinnedBlocks[key]++
}

// unpin drops one reference and performs a deferred eviction flush when the
// count reaches zero.
func (bp *BufferPool) unpin(key blockKey) {
	count, ok := bp.pinnedBlocks[key]
	if !ok || count <= 0 {
		panic(fmt.Sprintf("buffer pool: unpin of unpinned block %v", key))
	}
	bp.pinnedBlocks[key] = count - 1
	if count-1 > 0 {
		return
	}
	delete(bp.pinnedBlocks, key)

	if block, ok := bp.toEvict[key]; ok {
		if _, err := block.Write(); err != nil {
			log.Printf("buffer pool: deferred flush of block %v failed: %v", key, err)
			return
		}
		delete(bp.toEvict, key)
		delete(bp.dirty, key)
	}
}
