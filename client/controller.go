// client/controller.go
package client

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harshverma27/ZK-Battleship-on-Stellar/ledger"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/models"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/protocol"
	"github.com/harshverma27/ZK-Battleship-on-Stellar/utils"
)

// Ledger is the authoritative commitment boundary the controller talks to.
// ledger.Client satisfies it; tests inject a fake.
type Ledger interface {
	CreateMatch(ctx context.Context, creator string) (string, error)
	JoinMatch(ctx context.Context, matchID, joiner string) error
	CommitBoard(ctx context.Context, matchID string, seat int, commitment []byte) error
	SubmitAttack(ctx context.Context, matchID string, seat, x, y int, hit bool, attestation []byte) (ledger.Receipt, error)
	GetGame(ctx context.Context, matchID string) (ledger.GameState, error)
}

// Phase is the controller's match phase.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseRoomCodeSplash
	PhasePlacement
	PhaseAwaitingOpponent
	PhaseActive
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "Lobby"
	case PhaseRoomCodeSplash:
		return "RoomCodeSplash"
	case PhasePlacement:
		return "Placement"
	case PhaseAwaitingOpponent:
		return "AwaitingOpponent"
	case PhaseActive:
		return "Active"
	case PhaseComplete:
		return "Complete"
	}
	return "Unknown"
}

// DefaultSplashDelay is how long the room-code splash stays up before the
// controller moves on to placement.
const DefaultSplashDelay = 3 * time.Second

// Controller owns one player's match state and sequences the relay against
// the ledger: nothing is announced to the opponent before the ledger has
// confirmed it. Fast coordination goes through the relay; durable commitment
// goes through the ledger; the controller is the only place that orders the
// two.
type Controller struct {
	relay       RelaySession
	ledger      Ledger
	player      string
	splashDelay time.Duration

	mu             sync.Mutex
	phase          Phase
	matchID        string
	roomCode       string
	seat           int
	board          *models.Board
	boardSalt      []byte
	opponentJoined bool
	bufferedCommit bool
	bothReady      bool

	// turn is a 1-based counter; seat 1 acts on odd values. It only advances
	// after a ledger-confirmed attack (ours or the opponent's).
	turn           int
	myHits         int
	opponentHits   int
	myAttacks      []models.Attack
	incoming       []models.Attack
	pending        *models.Attack
	attackInFlight bool
	winner         int
}

// Option configures a Controller.
type Option func(*Controller)

// WithSplashDelay overrides the room-code splash duration.
func WithSplashDelay(d time.Duration) Option {
	return func(c *Controller) { c.splashDelay = d }
}

// NewController builds a controller in the Lobby phase. player is the wallet
// identity the ledger sidecar signs for.
func NewController(relay RelaySession, l Ledger, player string, opts ...Option) *Controller {
	c := &Controller{
		relay:       relay,
		ledger:      l,
		player:      player,
		splashDelay: DefaultSplashDelay,
		phase:       PhaseLobby,
		turn:        1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes relay events until ctx is cancelled or the session closes.
func (c *Controller) Run(ctx context.Context) {
	events := c.relay.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(env)
		}
	}
}

// CreateMatch creates a ledger match as seat 1, registers a fresh room code
// on the relay and joins the match room. Returns the shareable code.
func (c *Controller) CreateMatch(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.phase != PhaseLobby {
		c.mu.Unlock()
		return "", ErrWrongPhase
	}
	c.mu.Unlock()

	matchID, err := c.ledger.CreateMatch(ctx, c.player)
	if err != nil {
		return "", fmt.Errorf("failed to create match on ledger: %w", err)
	}

	code, err := utils.GenerateRoomCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}
	if err := c.relay.CreateRoom(code, matchID); err != nil {
		return "", fmt.Errorf("failed to register room: %w", err)
	}
	if err := c.relay.JoinGame(matchID, 1); err != nil {
		return "", fmt.Errorf("failed to join relay match: %w", err)
	}

	c.mu.Lock()
	c.matchID = matchID
	c.roomCode = code
	c.seat = 1
	c.phase = PhaseRoomCodeSplash
	c.mu.Unlock()

	time.AfterFunc(c.splashDelay, func() {
		c.mu.Lock()
		if c.phase == PhaseRoomCodeSplash {
			c.phase = PhasePlacement
		}
		c.mu.Unlock()
	})

	log.Printf("[controller] created match %s with room code %s", matchID, code)
	return code, nil
}

// JoinMatch resolves a room code (case-insensitively), joins the match on the
// ledger as seat 2 and attaches to the relay room.
func (c *Controller) JoinMatch(ctx context.Context, code string) error {
	c.mu.Lock()
	if c.phase != PhaseLobby {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	c.mu.Unlock()

	code = utils.NormalizeRoomCode(code)
	matchID, found, err := c.relay.LookupRoom(code)
	if err != nil {
		return fmt.Errorf("room lookup failed: %w", err)
	}
	if !found {
		return ErrRoomNotFound
	}

	if err := c.ledger.JoinMatch(ctx, matchID, c.player); err != nil {
		return fmt.Errorf("failed to join match on ledger: %w", err)
	}
	if err := c.relay.JoinGame(matchID, 2); err != nil {
		return fmt.Errorf("failed to join relay match: %w", err)
	}

	c.mu.Lock()
	c.matchID = matchID
	c.roomCode = code
	c.seat = 2
	c.opponentJoined = true // seat 1 created the match, it is already there
	c.phase = PhasePlacement
	c.mu.Unlock()

	log.Printf("[controller] joined match %s as seat 2", matchID)
	return nil
}

// LockIn validates and commits the player's board. For seat 1 before the
// opponent has joined, the commit is buffered locally and flushed when the
// join notification arrives — a commitment the opponent cannot acknowledge
// yet must not reach the ledger. A second lock-in while one is buffered is
// rejected.
func (c *Controller) LockIn(ctx context.Context, board models.Board) error {
	if err := board.Validate(); err != nil {
		return err
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate board salt: %w", err)
	}

	c.mu.Lock()
	switch c.phase {
	case PhasePlacement:
		// proceed
	case PhaseAwaitingOpponent:
		c.mu.Unlock()
		if c.BufferedCommit() {
			return ErrCommitPending
		}
		return ErrWrongPhase
	default:
		c.mu.Unlock()
		return ErrWrongPhase
	}

	boardCopy := board
	c.board = &boardCopy
	c.boardSalt = salt

	if c.seat == 1 && !c.opponentJoined {
		c.bufferedCommit = true
		c.phase = PhaseAwaitingOpponent
		c.mu.Unlock()
		log.Printf("[controller] board locked in, buffering commit until opponent joins")
		return nil
	}

	matchID, seat := c.matchID, c.seat
	c.phase = PhaseAwaitingOpponent
	c.mu.Unlock()

	if err := c.commitBoard(ctx, matchID, seat, boardCopy, salt); err != nil {
		c.mu.Lock()
		c.phase = PhasePlacement
		c.board = nil
		c.boardSalt = nil
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.bothReady && c.phase == PhaseAwaitingOpponent {
		c.phase = PhaseActive
	}
	c.mu.Unlock()
	return nil
}

func (c *Controller) commitBoard(ctx context.Context, matchID string, seat int, board models.Board, salt []byte) error {
	commitment := board.CommitmentHash(salt)
	if err := c.ledger.CommitBoard(ctx, matchID, seat, commitment[:]); err != nil {
		return fmt.Errorf("board commit rejected: %w", err)
	}
	if err := c.relay.SubmitShips(matchID, seat, board); err != nil {
		return fmt.Errorf("failed to submit ships to relay: %w", err)
	}
	log.Printf("[controller] seat %d board committed for match %s", seat, matchID)
	return nil
}

// Attack runs the three-step attack cycle: fast relay check, authoritative
// ledger commit, then the committed broadcast. The optimistic record is
// staged in a pending slot and merged only after step 2 succeeds; any failure
// discards it and leaves the turn counter unchanged. A single in-flight guard
// rejects overlapping attacks and is released on every exit path.
func (c *Controller) Attack(ctx context.Context, x, y int) error {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	if c.attackInFlight {
		c.mu.Unlock()
		return ErrAttackInFlight
	}
	if x < 0 || x >= models.GridSize || y < 0 || y >= models.GridSize {
		c.mu.Unlock()
		return ErrInvalidCoordinate
	}
	if !c.myTurnLocked() {
		c.mu.Unlock()
		return ErrNotYourTurn
	}
	for _, atk := range c.myAttacks {
		if atk.X == x && atk.Y == y {
			c.mu.Unlock()
			return ErrAlreadyAttacked
		}
	}

	c.attackInFlight = true
	c.pending = &models.Attack{X: x, Y: y, AttackerSeat: c.seat}
	matchID, seat := c.matchID, c.seat
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.attackInFlight = false
		c.pending = nil
		c.mu.Unlock()
	}()

	// Step 1: fast, non-authoritative preview. An error here aborts with no
	// state change at all.
	hit, err := c.relay.AttackCheck(matchID, seat, x, y)
	if err != nil {
		return fmt.Errorf("attack check failed: %w", err)
	}

	// Step 2: authoritative ledger commit. Failure or rejection discards the
	// staged record — the turn counter must not advance.
	receipt, err := c.ledger.SubmitAttack(ctx, matchID, seat, x, y, hit, c.attestation(matchID, x, y, hit))
	if err != nil {
		return fmt.Errorf("%s: %w", ledger.UserMessage(err), err)
	}
	if !receipt.Confirmed {
		return fmt.Errorf("ledger did not confirm attack at (%d,%d)", x, y)
	}

	// Step 3: merge, advance the turn, announce to the opponent.
	c.mu.Lock()
	atk := models.Attack{X: x, Y: y, Hit: hit, AttackerSeat: seat, Seq: c.turn}
	c.myAttacks = append(c.myAttacks, atk)
	if hit {
		c.myHits++
	}
	c.turn++
	won := c.myHits >= models.TotalShipCells
	if won {
		c.phase = PhaseComplete
		c.winner = seat
	}
	c.mu.Unlock()

	if err := c.relay.AttackCommitted(matchID, x, y, hit); err != nil {
		// The attack is durable on the ledger; the opponent will catch up
		// from ledger state on reconnect.
		log.Printf("[controller] failed to broadcast committed attack: %v", err)
	}
	if won {
		log.Printf("[controller] match %s won by seat %d", matchID, seat)
	}
	return nil
}

// attestation is the placeholder proof hash recorded alongside an attack.
// The proving system itself is out of scope; the ledger stores the bytes
// opaquely for auditability.
func (c *Controller) attestation(matchID string, x, y int, hit bool) []byte {
	h := sha256.New()
	h.Write([]byte(matchID))
	h.Write(c.boardSalt)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(x))
	h.Write(buf)
	binary.BigEndian.PutUint32(buf, uint32(y))
	h.Write(buf)
	if hit {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}

// HandleEvent applies one inbound relay event.
func (c *Controller) HandleEvent(env protocol.Envelope) {
	switch env.Type {
	case protocol.EventPlayerJoined:
		var payload protocol.PlayerJoined
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			log.Printf("[controller] malformed player_joined payload: %v", err)
			return
		}
		c.handlePlayerJoined(payload)
	case protocol.EventBothReady:
		c.handleBothReady()
	case protocol.EventAttackCommitted:
		var payload protocol.AttackCommitted
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			log.Printf("[controller] malformed attack_committed payload: %v", err)
			return
		}
		c.handleIncomingAttack(payload)
	case protocol.EventError:
		log.Printf("[controller] relay error: %s", env.Error)
	default:
		log.Printf("[controller] ignoring event %q", env.Type)
	}
}

func (c *Controller) handlePlayerJoined(payload protocol.PlayerJoined) {
	c.mu.Lock()
	if c.seat != 1 || payload.SeatNumber != 2 {
		c.mu.Unlock()
		return
	}
	c.opponentJoined = true
	flush := c.bufferedCommit
	if flush {
		// Clear before the network calls so the flush happens exactly once
		// even if a duplicate join notification races in.
		c.bufferedCommit = false
	}
	var (
		matchID = c.matchID
		seat    = c.seat
		board   models.Board
		salt    []byte
	)
	if flush && c.board != nil {
		board = *c.board
		salt = c.boardSalt
	}
	c.mu.Unlock()

	if !flush {
		return
	}

	log.Printf("[controller] opponent joined, flushing buffered board commit")
	if err := c.commitBoard(context.Background(), matchID, seat, board, salt); err != nil {
		log.Printf("[controller] buffered commit failed: %v", err)
		c.mu.Lock()
		c.phase = PhasePlacement
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if c.bothReady && c.phase == PhaseAwaitingOpponent {
		c.phase = PhaseActive
	}
	c.mu.Unlock()
}

func (c *Controller) handleBothReady() {
	c.mu.Lock()
	c.bothReady = true
	if c.phase == PhaseAwaitingOpponent && !c.bufferedCommit {
		c.phase = PhaseActive
	}
	c.mu.Unlock()
}

// handleIncomingAttack applies an opponent's committed attack
// unconditionally: the attacker only broadcast it after ledger confirmation.
func (c *Controller) handleIncomingAttack(payload protocol.AttackCommitted) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseActive {
		return
	}

	atk := models.Attack{
		X:            payload.X,
		Y:            payload.Y,
		Hit:          payload.Hit,
		AttackerSeat: models.OtherSeat(c.seat),
		Seq:          c.turn,
	}
	c.incoming = append(c.incoming, atk)
	if payload.Hit {
		c.opponentHits++
	}
	c.turn++

	if c.opponentHits >= models.TotalShipCells {
		c.phase = PhaseComplete
		c.winner = models.OtherSeat(c.seat)
	}
}

// PlayAgain resets the controller to its initial Lobby state. It notifies
// neither the relay nor the ledger — a new match must be created or joined.
func (c *Controller) PlayAgain() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseComplete {
		return ErrWrongPhase
	}

	c.phase = PhaseLobby
	c.matchID = ""
	c.roomCode = ""
	c.seat = 0
	c.board = nil
	c.boardSalt = nil
	c.opponentJoined = false
	c.bufferedCommit = false
	c.bothReady = false
	c.turn = 1
	c.myHits = 0
	c.opponentHits = 0
	c.myAttacks = nil
	c.incoming = nil
	c.pending = nil
	c.attackInFlight = false
	c.winner = 0
	return nil
}

// myTurnLocked reports whether this seat acts on the current turn counter.
// Seat 1 acts on odd values. Callers hold c.mu.
func (c *Controller) myTurnLocked() bool {
	seatToAct := 2
	if c.turn%2 == 1 {
		seatToAct = 1
	}
	return c.seat == seatToAct
}

// Accessors used by the UI layer and tests.

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Seat() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seat
}

func (c *Controller) MatchID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matchID
}

func (c *Controller) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *Controller) Turn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn
}

func (c *Controller) MyTurn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseActive && c.myTurnLocked()
}

func (c *Controller) Hits() (mine, opponent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.myHits, c.opponentHits
}

func (c *Controller) Winner() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.winner
}

func (c *Controller) MyAttacks() []models.Attack {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Attack, len(c.myAttacks))
	copy(out, c.myAttacks)
	return out
}

func (c *Controller) IncomingAttacks() []models.Attack {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Attack, len(c.incoming))
	copy(out, c.incoming)
	return out
}

func (c *Controller) AttackInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attackInFlight
}

// BufferedCommit reports whether a seat-1 board commit is waiting for the
// opponent to join.
func (c *Controller) BufferedCommit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferedCommit
}
