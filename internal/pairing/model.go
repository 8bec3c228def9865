package pairing

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRole      = errors.New("invalid role")
	ErrAlreadyConnected = errors.New("participant already connected")
	ErrEmptyParticipant = errors.New("participant id is empty")
)

const DefaultLanguage = "en"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleEmployee:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) String() string {
	return string(r)
}

// Channel implementations must not block.
type Channel interface {
	SendJSON(v any) error
	Close() error
}

type Connection struct {
	ID          string
	Role        Role
	Lang        string
	Channel     Channel
	ConnectedAt time.Time
}

type waitingEntry struct {
	id   string
	ch   Channel
	lang string
}

type SystemMessage struct {
	System string `json:"system"`
}

const (
	msgQueued          = "All agents busy. You are in queue."
	msgPartnerLeft     = "Partner disconnected."
	msgConnectedAgent  = "Connected to Agent %s"
	msgConnectedCustom = "Connected to Customer %s"
)

type PairInfo struct {
	CustomerID   string
	EmployeeID   string
	CustomerLang string
	EmployeeLang string
}

type Occupancy struct {
	Connections int
	Waiting     int
	Idle        int
	Pairs       int
}

type Snapshot struct {
	Waiting []string          `json:"waiting"`
	Idle    []string          `json:"idle"`
	Pairs   map[string]string `json:"pairs"`
	Total   int               `json:"total"`
}
