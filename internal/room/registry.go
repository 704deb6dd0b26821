package room

import (
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// codeAlphabet omits 0/O/1/I so codes read unambiguously over voice chat.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// Registry enforces code uniqueness among active rooms and constructs new
// ones. Room mutation is the owning actor's job; the registry only tracks
// which codes are live.
type Registry struct {
	mu    sync.Mutex
	codes map[string]bool
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{codes: make(map[string]bool), now: time.Now}
}

// Create validates settings, allocates a unique code, and returns a room
// with the host as its sole, not-ready member.
func (reg *Registry) Create(hostID, hostName string, settings Settings) (*Room, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, err := reg.uniqueCodeLocked()
	if err != nil {
		return nil, err
	}
	reg.codes[code] = true

	return &Room{
		Code:      code,
		HostID:    hostID,
		Settings:  settings,
		Members:   []Member{{ID: hostID, Name: hostName}},
		Status:    StatusWaiting,
		CreatedAt: reg.now(),
	}, nil
}

// Release frees a destroyed room's code for reuse.
func (reg *Registry) Release(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.codes, code)
}

func (reg *Registry) Active(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.codes[code]
}

// uniqueCodeLocked retries until the generated code collides with no active
// room. No retry cap: at 32^6 codes and low room counts a collision streak
// is astronomically unlikely.
func (reg *Registry) uniqueCodeLocked() (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if !reg.codes[code] {
			return code, nil
		}
	}
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
