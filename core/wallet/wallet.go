package wallet

import (
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"

	"basemusic/logger"
)

// BaseChainID is the chain the miniapp expects wallets to be on.
const BaseChainID int64 = 8453

// ErrInvalidAddress is returned for strings that are not 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Checksum validates a 0x-prefixed hex address and returns it in EIP-55
// mixed-case form. Input case is not checked.
func Checksum(address string) (string, error) {
	address = strings.TrimSpace(address)
	if len(address) != 42 || !strings.HasPrefix(strings.ToLower(address), "0x") {
		return "", ErrInvalidAddress
	}
	lower := strings.ToLower(address[2:])
	if _, err := hex.DecodeString(lower); err != nil {
		return "", ErrInvalidAddress
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte("0x" + lower)
	for i := 0; i < 40; i++ {
		c := out[i+2]
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i+2] = c - 'a' + 'A'
		}
	}
	return string(out), nil
}

// State is what the rest of the app sees of the wallet.
type State struct {
	Address   string `json:"address,omitempty"`
	Connected bool   `json:"connected"`
	ChainID   int64  `json:"chainId,omitempty"`
}

// Session is the single connected wallet of this process.
type Session struct {
	mu    sync.RWMutex
	state State
}

func NewSession() *Session {
	return &Session{}
}

// Connect records address as connected on chainID (Base when 0).
func (s *Session) Connect(address string, chainID int64) (State, error) {
	checksummed, err := Checksum(address)
	if err != nil {
		return State{}, err
	}
	if chainID == 0 {
		chainID = BaseChainID
	}
	s.mu.Lock()
	s.state = State{Address: checksummed, Connected: true, ChainID: chainID}
	st := s.state
	s.mu.Unlock()

	logger.Info("wallet connected", logger.String("address", checksummed), logger.Int64("chainId", chainID))
	return st, nil
}

func (s *Session) Disconnect() {
	s.mu.Lock()
	prev := s.state.Address
	s.state = State{}
	s.mu.Unlock()
	if prev != "" {
		logger.Info("wallet disconnected", logger.String("address", prev))
	}
}

// SwitchChain changes the chain of a connected wallet. It reports false
// when no wallet is connected.
func (s *Session) SwitchChain(chainID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Connected || chainID <= 0 {
		return false
	}
	s.state.ChainID = chainID
	return true
}

func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Address is the connected address, or "" when disconnected.
func (s *Session) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.Connected {
		return ""
	}
	return s.state.Address
}
