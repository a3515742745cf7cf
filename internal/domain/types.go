package domain

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SessionID string
type MessageID string

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Timestamp = time.Time

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// GreetingID is the id of the welcome message every session starts with.
const GreetingID MessageID = "init-1"

// IDGenerator hands out clock-derived message ids that are strictly
// increasing within a session, even when two ids are requested within the
// same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next() MessageID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return MessageID(strconv.FormatInt(ms, 10))
}
