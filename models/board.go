// models/board.go
package models

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sort"
)

const (
	// GridSize is the side length of the square board.
	GridSize = 10

	// FleetSize is the number of ships on a complete board.
	FleetSize = 5

	// TotalShipCells is the number of occupied cells across a full fleet
	// (5+4+3+3+2) — also the win threshold.
	TotalShipCells = 17
)

// Ship orientations. Horizontal ships extend along the X axis.
const (
	OrientationHorizontal = 0
	OrientationVertical   = 1
)

var (
	ErrBoardIncomplete = errors.New("board must contain exactly 5 ships")
	ErrWrongFleet      = errors.New("fleet must be ships of length 5, 4, 3, 3 and 2")
	ErrShipOutOfBounds = errors.New("ship extends outside the 10x10 grid")
	ErrShipsOverlap    = errors.New("ships overlap")
	ErrBadOrientation  = errors.New("orientation must be 0 (horizontal) or 1 (vertical)")
)

// Cell is a single grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Ship is one placed vessel: origin cell plus extent along one axis.
type Ship struct {
	Length      int `json:"length"`
	X           int `json:"x"`
	Y           int `json:"y"`
	Orientation int `json:"orientation"`
}

// Cells returns the occupied cells of the ship, origin first.
func (s Ship) Cells() []Cell {
	cells := make([]Cell, 0, s.Length)
	for i := 0; i < s.Length; i++ {
		if s.Orientation == OrientationHorizontal {
			cells = append(cells, Cell{X: s.X + i, Y: s.Y})
		} else {
			cells = append(cells, Cell{X: s.X, Y: s.Y + i})
		}
	}
	return cells
}

// Board is a player's private placement of the full fleet.
type Board struct {
	Ships []Ship `json:"ships"`
}

// Validate checks the full-board invariant: exactly five ships of lengths
// 5, 4, 3, 3, 2, all cells inside the grid, no two ships sharing a cell.
func (b Board) Validate() error {
	if len(b.Ships) != FleetSize {
		return ErrBoardIncomplete
	}

	lengths := make([]int, 0, FleetSize)
	for _, ship := range b.Ships {
		if ship.Orientation != OrientationHorizontal && ship.Orientation != OrientationVertical {
			return ErrBadOrientation
		}
		lengths = append(lengths, ship.Length)
	}
	sort.Ints(lengths)
	want := []int{2, 3, 3, 4, 5}
	for i, l := range lengths {
		if l != want[i] {
			return ErrWrongFleet
		}
	}

	seen := make(map[Cell]bool, TotalShipCells)
	for _, ship := range b.Ships {
		for _, cell := range ship.Cells() {
			if cell.X < 0 || cell.X >= GridSize || cell.Y < 0 || cell.Y >= GridSize {
				return ErrShipOutOfBounds
			}
			if seen[cell] {
				return ErrShipsOverlap
			}
			seen[cell] = true
		}
	}
	return nil
}

// Occupies reports whether (x, y) is covered by any ship. Callers must have
// bounds-checked the coordinate already.
func (b Board) Occupies(x, y int) bool {
	for _, ship := range b.Ships {
		for _, cell := range ship.Cells() {
			if cell.X == x && cell.Y == y {
				return true
			}
		}
	}
	return false
}

// CommitmentHash derives the 32-byte board commitment stored on the ledger:
// SHA-256 over the salt followed by every ship's (length, x, y, orientation)
// in placement order. The same board and salt always hash identically, so the
// board can be re-opened for verification after the match.
func (b Board) CommitmentHash(salt []byte) [32]byte {
	h := sha256.New()
	h.Write(salt)
	buf := make([]byte, 4)
	for _, ship := range b.Ships {
		for _, v := range []int{ship.Length, ship.X, ship.Y, ship.Orientation} {
			binary.BigEndian.PutUint32(buf, uint32(v))
			h.Write(buf)
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
