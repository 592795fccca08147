// services/arbiter.go
package services

import "github.com/harshverma27/ZK-Battleship-on-Stellar/models"

// Evaluate arbitrates a single attack against a board: hit iff (x, y) is an
// occupied cell of any ship. Coordinates outside the grid are rejected, not
// coerced. The function never mutates the board and tracks nothing — duplicate
// coordinate policing belongs to the caller.
func Evaluate(board models.Board, x, y int) (bool, error) {
	if x < 0 || x >= models.GridSize || y < 0 || y >= models.GridSize {
		return false, ErrInvalidCoordinate
	}
	return board.Occupies(x, y), nil
}
