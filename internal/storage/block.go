package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Block groups the pages of one column that persist together in a single
// file. On disk the layout is:
//
//	n_pages   (4 bytes, little-endian)
//	[
//	    num_cells (4 bytes, little-endian)
//	    data      (PageSize bytes)
//	] x n_pages
//
// Reading and writing whole blocks keeps page exchange between disk and the
// buffer pool down to one file operation per block. Cell payloads pass
// through unchanged; the format leaves room for a compression codec but none
// is applied.
type Block struct {
	path    string
	column  int
	blockID int
	size    int // pages per block
	pages   []*Page
	cfg     *Config
}

// NewBlock creates an empty block bound to its file under basePath.
func NewBlock(basePath string, column, blockID, size int, cfg *Config) *Block {
	return &Block{
		path:    filepath.Join(basePath, fmt.Sprintf("0.%d.data", blockID)),
		column:  column,
		blockID: blockID,
		size:    size,
		cfg:     cfg,
	}
}

// Read fills the page list from disk. It returns true iff the file existed
// and was loaded; false means the block is new and ready to accept appends.
func (b *Block) Read() (bool, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read block %s: %w", b.path, err)
	}
	if len(data) < 4 {
		return false, fmt.Errorf("read block %s: truncated header", b.path)
	}
	nPages := int(int32(binary.LittleEndian.Uint32(data[:4])))
	offset := 4
	pageBytes := b.cfg.PageSize
	for i := 0; i < nPages; i++ {
		if len(data) < offset+4+pageBytes {
			return false, fmt.Errorf("read block %s: truncated page %d", b.path, i)
		}
		numCells := int(int32(binary.LittleEndian.Uint32(data[offset : offset+4])))
		offset += 4
		buf := make([]byte, pageBytes)
		copy(buf, data[offset:offset+pageBytes])
		offset += pageBytes
		b.pages = append(b.pages, newPageFromBytes(buf, b.cfg.CellSize, numCells))
	}
	return true, nil
}

// Write serializes every owned page to disk and clears the in-memory page
// list. The flush is destructive: after a successful write the block holds
// no pages. Empty blocks are not written.
func (b *Block) Write() (bool, error) {
	if len(b.pages) == 0 {
		return false, nil
	}

	buf := make([]byte, 0, 4+len(b.pages)*(4+b.cfg.PageSize))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.pages)))
	for _, p := range b.pages {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(p.numCells))
		buf = append(buf, p.data...)
	}
	if err := os.WriteFile(b.path, buf, 0o644); err != nil {
		return false, fmt.Errorf("write block %s: %w", b.path, err)
	}

	b.pages = nil
	return true, nil
}

// Append adds a page to the block.
func (b *Block) Append(p *Page) {
	b.pages = append(b.pages, p)
}

// Page returns the i-th owned page, or nil when absent.
func (b *Block) Page(i int) *Page {
	if i < 0 || i >= len(b.pages) {
		return nil
	}
	return b.pages[i]
}

// Replace swaps the page at slot i. The slot must exist.
func (b *Block) Replace(i int, p *Page) error {
	if i < 0 || i >= len(b.pages) {
		return fmt.Errorf("block %s: %w: page %d of %d", b.path, ErrPageOutOfRange, i, len(b.pages))
	}
	b.pages[i] = p
	return nil
}

// NumPages returns how many pages the block currently holds in memory.
func (b *Block) NumPages() int {
	return len(b.pages)
}
