// client/controller_test.go
package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/ledger"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/protocol"
)

// fakeRelay records every call and lets tests script replies.
type fakeRelay struct {
	mu sync.Mutex

	createdRooms    []string
	lookupCodes     []string
	lookupMatchID   string
	lookupFound     bool
	joins           []int
	shipSubmissions []int
	attackChecks    []models.Cell
	committed       []models.Cell
	attackCheckHit  bool
	attackCheckErr  error
	submitShipsErr  error
	committedErr    error

	// When set, AttackCheck blocks until the gate closes.
	attackCheckGate chan struct{}

	events chan protocol.Envelope
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		lookupFound: true,
		events:      make(chan protocol.Envelope, 16),
	}
}

func (f *fakeRelay) CreateRoom(code, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdRooms = append(f.createdRooms, code)
	return nil
}

func (f *fakeRelay) LookupRoom(code string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCodes = append(f.lookupCodes, code)
	return f.lookupMatchID, f.lookupFound, nil
}

func (f *fakeRelay) JoinGame(matchID string, seat int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, seat)
	return nil
}

func (f *fakeRelay) SubmitShips(matchID string, seat int, board models.Board) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitShipsErr != nil {
		return f.submitShipsErr
	}
	f.shipSubmissions = append(f.shipSubmissions, seat)
	return nil
}

func (f *fakeRelay) AttackCheck(matchID string, seat, x, y int) (bool, error) {
	f.mu.Lock()
	gate := f.attackCheckGate
	f.attackChecks = append(f.attackChecks, models.Cell{X: x, Y: y})
	hit, err := f.attackCheckHit, f.attackCheckErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return hit, err
}

func (f *fakeRelay) AttackCommitted(matchID string, x, y int, hit bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.committedErr != nil {
		return f.committedErr
	}
	f.committed = append(f.committed, models.Cell{X: x, Y: y})
	return nil
}

func (f *fakeRelay) Events() <-chan protocol.Envelope { return f.events }
func (f *fakeRelay) Close() error                    { return nil }

func (f *fakeRelay) shipSubmissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shipSubmissions)
}

func (f *fakeRelay) committedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

// fakeLedger confirms everything unless an error is scripted.
type fakeLedger struct {
	mu sync.Mutex

	created       int
	joined        []string
	commitments   []int
	attacks       []models.Cell
	commitErr     error
	submitErr     error
	submitReceipt *ledger.Receipt
}

func (f *fakeLedger) CreateMatch(ctx context.Context, creator string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return "match-1", nil
}

func (f *fakeLedger) JoinMatch(ctx context.Context, matchID, joiner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, matchID)
	return nil
}

func (f *fakeLedger) CommitBoard(ctx context.Context, matchID string, seat int, commitment []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commitments = append(f.commitments, seat)
	return nil
}

func (f *fakeLedger) SubmitAttack(ctx context.Context, matchID string, seat, x, y int, hit bool, attestation []byte) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return ledger.Receipt{}, f.submitErr
	}
	f.attacks = append(f.attacks, models.Cell{X: x, Y: y})
	if f.submitReceipt != nil {
		return *f.submitReceipt, nil
	}
	return ledger.Receipt{Confirmed: true, Reference: "tx-1"}, nil
}

func (f *fakeLedger) GetGame(ctx context.Context, matchID string) (ledger.GameState, error) {
	return ledger.GameState{MatchID: matchID, Status: "Active"}, nil
}

func (f *fakeLedger) commitmentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commitments)
}

func validBoard() models.Board {
	return models.Board{Ships: []models.Ship{
		{Length: 5, X: 0, Y: 0, Orientation: models.OrientationHorizontal},
		{Length: 4, X: 0, Y: 1, Orientation: models.OrientationHorizontal},
		{Length: 3, X: 0, Y: 2, Orientation: models.OrientationHorizontal},
		{Length: 3, X: 0, Y: 3, Orientation: models.OrientationHorizontal},
		{Length: 2, X: 0, Y: 4, Orientation: models.OrientationHorizontal},
	}}
}

func mustEnvelope(t *testing.T, eventType string, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	return env
}

func newTestController(t *testing.T) (*Controller, *fakeRelay, *fakeLedger) {
	t.Helper()
	relay := newFakeRelay()
	l := &fakeLedger{}
	c := NewController(relay, l, "GWALLET1", WithSplashDelay(5*time.Millisecond))
	return c, relay, l
}

// activateSeat1 drives a controller through create, opponent join, lock-in and
// both_ready into the Active phase as seat 1.
func activateSeat1(t *testing.T, c *Controller, relay *fakeRelay) {
	t.Helper()
	ctx := context.Background()

	_, err := c.CreateMatch(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Phase() == PhasePlacement },
		time.Second, time.Millisecond)

	c.HandleEvent(mustEnvelope(t, protocol.EventPlayerJoined, protocol.PlayerJoined{SeatNumber: 2}))
	require.NoError(t, c.LockIn(ctx, validBoard()))
	c.HandleEvent(mustEnvelope(t, protocol.EventBothReady, protocol.BothReady{MatchID: c.MatchID()}))
	require.Equal(t, PhaseActive, c.Phase())
}

func TestCreateMatchFlow(t *testing.T) {
	c, relay, l := newTestController(t)

	code, err := c.CreateMatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, PhaseRoomCodeSplash, c.Phase())
	assert.Equal(t, 1, c.Seat())
	assert.Equal(t, "match-1", c.MatchID())
	assert.Equal(t, code, c.RoomCode())
	assert.Equal(t, []string{code}, relay.createdRooms)
	assert.Equal(t, []int{1}, relay.joins)
	assert.Equal(t, 1, l.created)

	// The splash times out into Placement on its own.
	assert.Eventually(t, func() bool { return c.Phase() == PhasePlacement },
		time.Second, time.Millisecond)
}

func TestCreateMatch_WrongPhase(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.CreateMatch(context.Background())
	require.NoError(t, err)

	_, err = c.CreateMatch(context.Background())
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestJoinMatchFlow(t *testing.T) {
	c, relay, l := newTestController(t)
	relay.lookupMatchID = "match-1"

	require.NoError(t, c.JoinMatch(context.Background(), "ab12cd"))
	assert.Equal(t, PhasePlacement, c.Phase())
	assert.Equal(t, 2, c.Seat())
	assert.Equal(t, "AB12CD", c.RoomCode(), "code is normalized before lookup")
	assert.Equal(t, []string{"AB12CD"}, relay.lookupCodes)
	assert.Equal(t, []int{2}, relay.joins)
	assert.Equal(t, []string{"match-1"}, l.joined)
}

func TestJoinMatch_RoomNotFound(t *testing.T) {
	c, relay, l := newTestController(t)
	relay.lookupFound = false

	err := c.JoinMatch(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, PhaseLobby, c.Phase())
	assert.Empty(t, l.joined, "a failed lookup must not reach the ledger")
}

func TestLockIn_InvalidBoard(t *testing.T) {
	c, _, _ := newTestController(t)
	bad := validBoard()
	bad.Ships = bad.Ships[:2]

	assert.ErrorIs(t, c.LockIn(context.Background(), bad), models.ErrBoardIncomplete)
}

func TestLockIn_Seat2CommitsImmediately(t *testing.T) {
	c, relay, l := newTestController(t)
	relay.lookupMatchID = "match-1"
	require.NoError(t, c.JoinMatch(context.Background(), "AB12CD"))

	require.NoError(t, c.LockIn(context.Background(), validBoard()))
	assert.Equal(t, PhaseAwaitingOpponent, c.Phase())
	assert.Equal(t, 1, l.commitmentCount())
	assert.Equal(t, 1, relay.shipSubmissionCount())
	assert.False(t, c.BufferedCommit())
}

func TestLockIn_Seat1BuffersUntilOpponentJoins(t *testing.T) {
	c, relay, l := newTestController(t)
	ctx := context.Background()

	_, err := c.CreateMatch(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Phase() == PhasePlacement },
		time.Second, time.Millisecond)

	require.NoError(t, c.LockIn(ctx, validBoard()))
	assert.Equal(t, PhaseAwaitingOpponent, c.Phase())
	assert.True(t, c.BufferedCommit())
	assert.Equal(t, 0, l.commitmentCount(), "commit must wait for the opponent")
	assert.Equal(t, 0, relay.shipSubmissionCount())

	// A second lock-in while one is buffered is rejected.
	assert.ErrorIs(t, c.LockIn(ctx, validBoard()), ErrCommitPending)

	c.HandleEvent(mustEnvelope(t, protocol.EventPlayerJoined, protocol.PlayerJoined{SeatNumber: 2}))
	assert.Equal(t, 1, l.commitmentCount())
	assert.Equal(t, 1, relay.shipSubmissionCount())
	assert.False(t, c.BufferedCommit())

	// A duplicate join notification must not flush twice.
	c.HandleEvent(mustEnvelope(t, protocol.EventPlayerJoined, protocol.PlayerJoined{SeatNumber: 2}))
	assert.Equal(t, 1, l.commitmentCount())
	assert.Equal(t, 1, relay.shipSubmissionCount())
}

func TestLockIn_RollbackOnLedgerRejection(t *testing.T) {
	c, relay, l := newTestController(t)
	relay.lookupMatchID = "match-1"
	require.NoError(t, c.JoinMatch(context.Background(), "AB12CD"))
	l.commitErr = &ledger.Error{Kind: ledger.KindRejected, Reason: "bad commitment"}

	err := c.LockIn(context.Background(), validBoard())
	require.Error(t, err)
	assert.Equal(t, PhasePlacement, c.Phase(), "failed commit returns to placement")
	assert.Equal(t, 0, relay.shipSubmissionCount())

	// Clearing the fault lets the retry through.
	l.commitErr = nil
	require.NoError(t, c.LockIn(context.Background(), validBoard()))
	assert.Equal(t, PhaseAwaitingOpponent, c.Phase())
}

func TestBothReadyActivates(t *testing.T) {
	c, relay, _ := newTestController(t)
	relay.lookupMatchID = "match-1"
	require.NoError(t, c.JoinMatch(context.Background(), "AB12CD"))
	require.NoError(t, c.LockIn(context.Background(), validBoard()))

	c.HandleEvent(mustEnvelope(t, protocol.EventBothReady, protocol.BothReady{MatchID: "match-1"}))
	assert.Equal(t, PhaseActive, c.Phase())
}

func TestBothReadyBeforeOwnCommitDoesNotActivate(t *testing.T) {
	c, _, _ := newTestController(t)
	_, err := c.CreateMatch(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Phase() == PhasePlacement },
		time.Second, time.Millisecond)
	require.NoError(t, c.LockIn(context.Background(), validBoard())) // buffered

	c.HandleEvent(mustEnvelope(t, protocol.EventBothReady, protocol.BothReady{MatchID: "match-1"}))
	assert.NotEqual(t, PhaseActive, c.Phase(), "a buffered commit is not readiness")
}

func TestAttack_ThreeStepHit(t *testing.T) {
	c, relay, l := newTestController(t)
	relay.attackCheckHit = true
	activateSeat1(t, c, relay)
	require.Equal(t, 1, c.Turn())
	require.True(t, c.MyTurn())

	require.NoError(t, c.Attack(context.Background(), 3, 4))

	assert.Equal(t, []models.Cell{{X: 3, Y: 4}}, relay.attackChecks)
	assert.Equal(t, []models.Cell{{X: 3, Y: 4}}, l.attacks)
	assert.Equal(t, []models.Cell{{X: 3, Y: 4}}, relay.committed)
	assert.Equal(t, 2, c.Turn(), "turn advances only after confirmation")
	assert.False(t, c.MyTurn())

	mine, _ := c.Hits()
	assert.Equal(t, 1, mine)
	require.Len(t, c.MyAttacks(), 1)
	assert.True(t, c.MyAttacks()[0].Hit)
	assert.Equal(t, 1, c.MyAttacks()[0].Seq)
}

func TestAttack_Guards(t *testing.T) {
	c, relay, _ := newTestController(t)
	activateSeat1(t, c, relay)

	assert.ErrorIs(t, c.Attack(context.Background(), -1, 0), ErrInvalidCoordinate)
	assert.ErrorIs(t, c.Attack(context.Background(), 0, 10), ErrInvalidCoordinate)

	require.NoError(t, c.Attack(context.Background(), 0, 0))

	// Turn 2 belongs to seat 2.
	assert.ErrorIs(t, c.Attack(context.Background(), 1, 0), ErrNotYourTurn)

	// Opponent moves; duplicate coordinate is rejected before any network call.
	c.HandleEvent(mustEnvelope(t, protocol.EventAttackCommitted,
		protocol.AttackCommitted{MatchID: "match-1", X: 5, Y: 5, Hit: false}))
	assert.ErrorIs(t, c.Attack(context.Background(), 0, 0), ErrAlreadyAttacked)
}

func TestAttack_WrongPhase(t *testing.T) {
	c, _, _ := newTestController(t)
	assert.ErrorIs(t, c.Attack(context.Background(), 0, 0), ErrWrongPhase)
}

func TestAttack_InFlightGuard(t *testing.T) {
	c, relay, _ := newTestController(t)
	gate := make(chan struct{})
	relay.attackCheckGate = gate
	activateSeat1(t, c, relay)

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Attack(context.Background(), 0, 0) }()

	require.Eventually(t, func() bool { return c.AttackInFlight() },
		time.Second, time.Millisecond)

	// The second input while the first is mid-flight bounces immediately.
	assert.ErrorIs(t, c.Attack(context.Background(), 1, 1), ErrAttackInFlight)

	close(gate)
	require.NoError(t, <-firstDone)
	assert.False(t, c.AttackInFlight())
	assert.Equal(t, 2, c.Turn())
}

func TestAttack_RollbackOnLedgerRejection(t *testing.T) {
	c, relay, l := newTestController(t)
	relay.attackCheckHit = true
	activateSeat1(t, c, relay)
	l.submitErr = &ledger.Error{Kind: ledger.KindNotYourTurn, Reason: "turn belongs to seat 2"}

	err := c.Attack(context.Background(), 3, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not your turn")

	assert.Equal(t, 1, c.Turn(), "a rejected attack must not advance the turn")
	assert.Empty(t, c.MyAttacks())
	mine, _ := c.Hits()
	assert.Equal(t, 0, mine)
	assert.Equal(t, 0, relay.committedCount(), "nothing is broadcast without confirmation")
	assert.False(t, c.AttackInFlight())

	// The same coordinate can be retried once the fault clears.
	l.submitErr = nil
	require.NoError(t, c.Attack(context.Background(), 3, 4))
	assert.Equal(t, 2, c.Turn())
}

func TestAttack_UnconfirmedReceiptRollsBack(t *testing.T) {
	c, relay, l := newTestController(t)
	activateSeat1(t, c, relay)
	l.submitReceipt = &ledger.Receipt{Confirmed: false}

	require.Error(t, c.Attack(context.Background(), 3, 4))
	assert.Equal(t, 1, c.Turn())
	assert.Empty(t, c.MyAttacks())
	assert.Equal(t, 0, relay.committedCount())
}

func TestAttack_BroadcastFailureDoesNotRollBack(t *testing.T) {
	c, relay, _ := newTestController(t)
	relay.committedErr = assert.AnError
	activateSeat1(t, c, relay)

	require.NoError(t, c.Attack(context.Background(), 3, 4),
		"the attack is durable once the ledger confirmed it")
	assert.Equal(t, 2, c.Turn())
	assert.Len(t, c.MyAttacks(), 1)
}

func TestIncomingAttackAdvancesTurn(t *testing.T) {
	c, relay, _ := newTestController(t)
	activateSeat1(t, c, relay)
	require.NoError(t, c.Attack(context.Background(), 0, 0))
	require.Equal(t, 2, c.Turn())

	c.HandleEvent(mustEnvelope(t, protocol.EventAttackCommitted,
		protocol.AttackCommitted{MatchID: "match-1", X: 7, Y: 7, Hit: true}))

	assert.Equal(t, 3, c.Turn())
	assert.True(t, c.MyTurn())
	_, theirs := c.Hits()
	assert.Equal(t, 1, theirs)
	require.Len(t, c.IncomingAttacks(), 1)
	assert.Equal(t, 2, c.IncomingAttacks()[0].AttackerSeat)
	assert.Equal(t, 2, c.IncomingAttacks()[0].Seq)
}

func TestIncomingAttackIgnoredOutsideActive(t *testing.T) {
	c, _, _ := newTestController(t)

	c.HandleEvent(mustEnvelope(t, protocol.EventAttackCommitted,
		protocol.AttackCommitted{MatchID: "match-1", X: 7, Y: 7, Hit: true}))
	_, theirs := c.Hits()
	assert.Equal(t, 0, theirs)
	assert.Equal(t, 1, c.Turn())
}

func TestWinAtSeventeenHits(t *testing.T) {
	c, relay, _ := newTestController(t)
	relay.attackCheckHit = true
	activateSeat1(t, c, relay)

	for i := 0; i < models.TotalShipCells; i++ {
		require.NoError(t, c.Attack(context.Background(), i%models.GridSize, i/models.GridSize))
		if i < models.TotalShipCells-1 {
			require.Equal(t, PhaseActive, c.Phase())
			// Opponent misses to hand the turn back.
			c.HandleEvent(mustEnvelope(t, protocol.EventAttackCommitted,
				protocol.AttackCommitted{MatchID: "match-1", X: 9, Y: 9 - i%5, Hit: false}))
		}
	}

	assert.Equal(t, PhaseComplete, c.Phase())
	assert.Equal(t, 1, c.Winner())
	mine, _ := c.Hits()
	assert.Equal(t, models.TotalShipCells, mine)

	assert.ErrorIs(t, c.Attack(context.Background(), 9, 9), ErrWrongPhase)
}

func TestLossAtSeventeenIncomingHits(t *testing.T) {
	c, relay, _ := newTestController(t)
	activateSeat1(t, c, relay)

	for i := 0; i < models.TotalShipCells; i++ {
		c.HandleEvent(mustEnvelope(t, protocol.EventAttackCommitted,
			protocol.AttackCommitted{MatchID: "match-1", X: i % models.GridSize, Y: i / models.GridSize, Hit: true}))
	}

	assert.Equal(t, PhaseComplete, c.Phase())
	assert.Equal(t, 2, c.Winner())
}

func TestPlayAgainResets(t *testing.T) {
	c, relay, _ := newTestController(t)
	activateSeat1(t, c, relay)
	for i := 0; i < models.TotalShipCells; i++ {
		c.HandleEvent(mustEnvelope(t, protocol.EventAttackCommitted,
			protocol.AttackCommitted{MatchID: "match-1", X: i % models.GridSize, Y: i / models.GridSize, Hit: true}))
	}
	require.Equal(t, PhaseComplete, c.Phase())

	require.NoError(t, c.PlayAgain())
	assert.Equal(t, PhaseLobby, c.Phase())
	assert.Equal(t, 0, c.Seat())
	assert.Empty(t, c.MatchID())
	assert.Equal(t, 1, c.Turn())
	assert.Empty(t, c.IncomingAttacks())
	assert.Equal(t, 0, c.Winner())

	// A fresh match can be created afterwards.
	_, err := c.CreateMatch(context.Background())
	assert.NoError(t, err)
}

func TestPlayAgain_WrongPhase(t *testing.T) {
	c, _, _ := newTestController(t)
	assert.ErrorIs(t, c.PlayAgain(), ErrWrongPhase)
}

func TestRunDispatchesEvents(t *testing.T) {
	c, relay, _ := newTestController(t)
	activateSeat1(t, c, relay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	relay.events <- mustEnvelope(t, protocol.EventAttackCommitted,
		protocol.AttackCommitted{MatchID: "match-1", X: 4, Y: 4, Hit: true})

	require.Eventually(t, func() bool {
		_, theirs := c.Hits()
		return theirs == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
