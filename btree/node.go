package btree

import (
	"bytes"
)

// GetChildPageID returns the child page ID for the given key in an internal node
// Cell semantics: Cell(K, P) means P contains keys >= K
// RightPtr contains keys < first cell's key
func GetChildPageID(page *Page, key []byte) (uint32, error) {
	if page.IsLeaf() {
		return 0, ErrCellNotFound
	}

	numCells := page.NumCells()

	// Find the last cell where key >= cell.Key
	// That cell's child contains the key
	for i := uint16(0); i < numCells; i++ {
		cell, err := page.CellAt(i)
		if err != nil {
			return 0, err
		}

		// If key >= cell.Key, check if this is the right cell
		// We want the LAST cell where key >= cell.Key
		if bytes.Compare(key, cell.Key) >= 0 {
			// Check if there's a next cell
			if i+1 < numCells {
				nextCell, err := page.CellAt(i + 1)
				if err == nil && bytes.Compare(key, nextCell.Key) >= 0 {
					// key also >= next cell, continue searching
					continue
				}
			}
			// This is the right cell
			return cell.Child, nil
		}
	}

	// Key < all cell keys, use right pointer (for keys less than minimum)
	rightPtr := page.RightPtr()
	if rightPtr == 0 {
		return 0, ErrCellNotFound
	}

	return rightPtr, nil
}

// CopyCell creates a copy of a cell
func CopyCell(cell *Cell) *Cell {
	newCell := &Cell{
		Key:   make([]byte, len(cell.Key)),
		Child: cell.Child,
	}
	copy(newCell.Key, cell.Key)

	if cell.Value != nil {
		newCell.Value = make([]byte, len(cell.Value))
		copy(newCell.Value, cell.Value)
	}

	return newCell
}
