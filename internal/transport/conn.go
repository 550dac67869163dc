package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"texshare/internal/cmsg"
	"texshare/internal/handle"
	"texshare/internal/logging"
	"texshare/internal/xfer"
)

// DefaultCapacity is the payload capacity Receive uses when asked for zero.
const DefaultCapacity = 512

// ErrEmptyPayload is returned by Send for a zero-length payload. The kernel
// would drop the control record of an empty stream write.
var ErrEmptyPayload = errors.New("payload must not be empty")

// Message is one unit exchanged over a Conn.
type Message struct {
	Payload []byte
	// Handle is nil when the message carried no control record.
	Handle *handle.Handle
}

// Credentials identifies the process on the other end of a Conn.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

func (c Credentials) String() string {
	return fmt.Sprintf("pid=%d uid=%d gid=%d", c.PID, c.UID, c.GID)
}

// Conn is a connected stream socket.
type Conn struct {
	c      *net.UnixConn
	peer   Credentials
	logger *slog.Logger
}

func newConn(c *net.UnixConn, logger *slog.Logger) *Conn {
	conn := &Conn{c: c, logger: logger}
	conn.peer = peerCredentials(c)
	return conn
}

func peerCredentials(c *net.UnixConn) Credentials {
	raw, err := c.SyscallConn()
	if err != nil {
		return Credentials{}
	}
	var creds Credentials
	_ = raw.Control(func(fd uintptr) {
		ucred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			return
		}
		creds = Credentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}
	})
	return creds
}

// Dial makes one connection attempt to path. It never retries.
func Dial(ctx context.Context, path string, opts ...Option) (*Conn, error) {
	o := applyOptions(opts)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrConnection, "transport", "dial", path, err)
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		_ = conn.Close()
		return nil, xfer.Wrap(xfer.ErrConnection, "transport", "dial", fmt.Sprintf("unexpected conn type %T", conn), nil)
	}
	return newConn(uc, logging.NewComponentLogger(o.logger, "transport")), nil
}

// DialWait retries Dial every interval until the exporter accepts or ctx
// ends. Only connection failures are retried.
func DialWait(ctx context.Context, path string, interval time.Duration, opts ...Option) (*Conn, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	for attempt := 1; ; attempt++ {
		conn, err := Dial(ctx, path, opts...)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, xfer.ErrConnection) {
			return nil, err
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, xfer.Wrap(xfer.ErrConnection, "transport", "dial",
				fmt.Sprintf("gave up after %d attempts", attempt), errors.Join(context.Cause(ctx), err))
		case <-timer.C:
		}
	}
}

// Pair returns two connected Conns backed by a socketpair.
func Pair(opts ...Option) (*Conn, *Conn, error) {
	o := applyOptions(opts)
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, xfer.Wrap(xfer.ErrTransport, "transport", "socketpair", "", err)
	}
	logger := logging.NewComponentLogger(o.logger, "transport")
	left, err := fileConn(fds[0], "left")
	if err != nil {
		_ = unix.Close(fds[1])
		return nil, nil, err
	}
	right, err := fileConn(fds[1], "right")
	if err != nil {
		_ = left.Close()
		return nil, nil, err
	}
	return newConn(left, logger), newConn(right, logger), nil
}

func fileConn(fd int, name string) (*net.UnixConn, error) {
	file := os.NewFile(uintptr(fd), name)
	conn, err := net.FileConn(file)
	_ = file.Close()
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "socketpair", "wrap "+name, err)
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		_ = conn.Close()
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "socketpair", fmt.Sprintf("unexpected conn type %T", conn), nil)
	}
	return uc, nil
}

// Peer returns the credentials of the remote process as reported by the
// kernel at connect time.
func (c *Conn) Peer() Credentials {
	return c.peer
}

// Send writes payload and, when h is non-nil, one descriptor record in a
// single sendmsg. On success the local copy of h is closed.
func (c *Conn) Send(ctx context.Context, payload []byte, h *handle.Handle) error {
	if len(payload) == 0 {
		return xfer.Wrap(xfer.ErrProtocol, "transport", "send", "", ErrEmptyPayload)
	}

	var oob []byte
	if h != nil {
		fd, err := h.Fd()
		if err != nil {
			return xfer.Wrap(xfer.ErrTransport, "transport", "send", "handle", err)
		}
		oob = make([]byte, cmsg.RightsSpace)
		if _, err := cmsg.Encode(oob, []int{fd}); err != nil {
			return xfer.Wrap(xfer.ErrTransport, "transport", "send", "encode control record", err)
		}
	}

	stop := bindDeadline(ctx, c.c.SetWriteDeadline)
	n, oobn, err := c.c.WriteMsgUnix(payload, oob, nil)
	stop()
	if err != nil {
		return ioError(ctx, "send", err)
	}
	if n != len(payload) || oobn != len(oob) {
		return xfer.Wrap(xfer.ErrTransport, "transport", "send",
			fmt.Sprintf("short write: payload %d/%d, control %d/%d", n, len(payload), oobn, len(oob)), io.ErrShortWrite)
	}

	if h != nil {
		if err := h.Close(); err != nil {
			logging.WarnWithContext(c.logger, "close sent handle failed", "handle_close_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the descriptor may leak until process exit"),
				logging.String(logging.FieldImpact, "none for the peer, which holds its own copy"),
			)
		}
	}
	c.logger.Debug("message sent",
		logging.String(logging.FieldEventType, "message_sent"),
		logging.Int("payload_bytes", n),
		logging.Bool("handle", h != nil),
	)
	return nil
}

// Receive reads one message of at most capacity payload bytes. A peer that
// closed the connection yields xfer.ErrHungUp. Descriptors from a rejected
// control record are closed before returning.
func (c *Conn) Receive(ctx context.Context, capacity int) (Message, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	buf := make([]byte, capacity)
	oob := make([]byte, cmsg.RightsSpace)

	stop := bindDeadline(ctx, c.c.SetReadDeadline)
	n, oobn, flags, _, err := c.c.ReadMsgUnix(buf, oob)
	stop()
	if err != nil {
		cmsg.Drain(oob[:oobn])
		if errors.Is(err, io.EOF) {
			return Message{}, xfer.Wrap(xfer.ErrHungUp, "transport", "receive", "", nil)
		}
		return Message{}, ioError(ctx, "receive", err)
	}
	if n == 0 && oobn == 0 {
		return Message{}, xfer.Wrap(xfer.ErrHungUp, "transport", "receive", "", nil)
	}
	if flags&unix.MSG_CTRUNC != 0 {
		closed := cmsg.Drain(oob[:oobn])
		return Message{}, xfer.Wrap(xfer.ErrMalformed, "transport", "receive",
			fmt.Sprintf("control data truncated, closed %d descriptors", closed), nil)
	}

	msg := Message{Payload: buf[:n]}
	if oobn == 0 {
		return msg, nil
	}
	fd, err := cmsg.Decode(oob[:oobn])
	if err != nil {
		if closed := cmsg.Drain(oob[:oobn]); closed > 0 {
			c.logger.Debug("drained rejected descriptors", logging.Int("count", closed))
		}
		return Message{}, err
	}
	msg.Handle = handle.New(fd)
	c.logger.Debug("message received",
		logging.String(logging.FieldEventType, "message_received"),
		logging.Int("payload_bytes", n),
		logging.String("handle", msg.Handle.String()),
	)
	return msg, nil
}

// CloseWrite shuts down the sending side so the peer observes a hang-up.
func (c *Conn) CloseWrite() error {
	if err := c.c.CloseWrite(); err != nil {
		return xfer.Wrap(xfer.ErrTransport, "transport", "close write", "", err)
	}
	return nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	if err := c.c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return xfer.Wrap(xfer.ErrTransport, "transport", "close", "", err)
	}
	return nil
}
