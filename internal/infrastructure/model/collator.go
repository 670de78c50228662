package model

import domain "github.com/seqtune/seqtune/internal/domain/ppo"

// RightPadCollator pads every sequence on the right with PadID up to the
// longest sequence in the set.
type RightPadCollator struct {
	PadID int64
}

// Collate implements the collation contract.
func (c *RightPadCollator) Collate(seqs [][]int64) *domain.TokenBatch {
	maxLen := 0
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	batch := &domain.TokenBatch{
		IDs:     make([][]int64, len(seqs)),
		Lengths: make([]int, len(seqs)),
	}
	for i, s := range seqs {
		row := make([]int64, maxLen)
		copy(row, s)
		for j := len(s); j < maxLen; j++ {
			row[j] = c.PadID
		}
		batch.IDs[i] = row
		batch.Lengths[i] = len(s)
	}
	return batch
}
