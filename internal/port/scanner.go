package port

import (
	"fmt"
	"net"

	"github.com/hellej/hope-graph-updater/internal/model"
)

// Scanner checks whether listen addresses are available on the host.
//
// It asks the OS directly with net.Listen rather than parsing /proc/net or
// running lsof, which may need elevated permissions.
type Scanner struct{}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsAddrAvailable reports whether a TCP listener can be opened on addr
// ("host:port" or ":port"). The probe listener is closed immediately.
func (s *Scanner) IsAddrAvailable(addr string) bool {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	defer func() { _ = listener.Close() }()
	return true
}

// RequireAddr returns an ExitPortUnavailable error when addr is invalid or
// already in use.
func (s *Scanner) RequireAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return model.WrapCLIError(model.ExitPortUnavailable,
			fmt.Sprintf("invalid listen address %q", addr), err)
	}
	if !s.IsAddrAvailable(addr) {
		return model.NewCLIError(model.ExitPortUnavailable,
			fmt.Sprintf("listen address %s is already in use", addr))
	}
	return nil
}
