package wasi

import "github.com/pgavlin/xos/sys"

// Socket support lives in an out-of-process driver; the core personality
// stubs the whole surface. Every call fails the way the engine's platform
// contract expects: -1 for the socket layer, ENOTSUP for the guest-facing
// operations.

const sockFailure = -1

func (b *Bridge) SocketCreate(ipv4, tcp bool) (sys.Handle, int) {
	return sys.InvalidHandle, sockFailure
}

func (b *Bridge) SocketBind(socket sys.Handle, address string, port *int) int { return sockFailure }

func (b *Bridge) SocketSetTimeout(socket sys.Handle, timeoutMicroseconds uint64) int {
	return sockFailure
}

func (b *Bridge) SocketListen(socket sys.Handle, maxClients int) int { return sockFailure }

func (b *Bridge) SocketAccept(socket sys.Handle) (sys.Handle, int) {
	return sys.InvalidHandle, sockFailure
}

func (b *Bridge) SocketConnect(socket sys.Handle, address string, port int) int { return sockFailure }

func (b *Bridge) SocketRecv(socket sys.Handle, buf []byte) int { return sockFailure }

func (b *Bridge) SocketSend(socket sys.Handle, buf []byte) int { return sockFailure }

func (b *Bridge) SocketShutdown(socket sys.Handle) int { return sockFailure }

func (b *Bridge) SocketClose(socket sys.Handle) int { return sockFailure }
