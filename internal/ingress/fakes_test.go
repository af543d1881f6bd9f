package ingress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taoyao-code/bee-spectrum/internal/rfcomm"
)

// sinkConn 记录下游收到的字节
type sinkConn struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (c *sinkConn) Read(b []byte) (int, error) { return 0, io.EOF }
func (c *sinkConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.buf.Write(b)
}
func (c *sinkConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
func (c *sinkConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (c *sinkConn) RemoteAddr() net.Addr               { return &net.TCPAddr{} }
func (c *sinkConn) SetDeadline(t time.Time) error      { return nil }
func (c *sinkConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *sinkConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *sinkConn) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

// sink 可切换可用性的下游
type sink struct {
	mu        sync.Mutex
	available bool
	dials     int
	conns     []*sinkConn
}

func (s *sink) dial(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if !s.available {
		return nil, errors.New("connection refused")
	}
	c := &sinkConn{}
	s.conns = append(s.conns, c)
	return c, nil
}

func (s *sink) setAvailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = v
}

func (s *sink) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Received 所有下游连接收到的字节，按连接顺序拼接
func (s *sink) Received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, c := range s.conns {
		out = append(out, c.Bytes()...)
	}
	return out
}

// pendingClient 等待被接受的远端
type pendingClient struct {
	conn net.Conn // 入口侧
	peer rfcomm.Addr
}

// fakeRadio 模拟 RFCOMM 监听：所有监听端点共享同一个待接入队列
type fakeRadio struct {
	pending   chan pendingClient
	listens   atomic.Int32
	open      atomic.Int32
	failFirst atomic.Int32 // 前 N 次 Listen 失败
	lastLocal atomic.Value
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{pending: make(chan pendingClient, 8)}
}

func (r *fakeRadio) Listen(local rfcomm.Addr, channel uint8) (rfcomm.Listener, error) {
	r.listens.Add(1)
	r.lastLocal.Store(local)
	if r.failFirst.Load() > 0 {
		r.failFirst.Add(-1)
		return nil, errors.New("no such device")
	}
	r.open.Add(1)
	return &fakeListener{radio: r, done: make(chan struct{})}, nil
}

// connect 远端发起连接，返回远端侧的连接
func (r *fakeRadio) connect(peer rfcomm.Addr) net.Conn {
	ingressSide, remoteSide := net.Pipe()
	r.pending <- pendingClient{conn: ingressSide, peer: peer}
	return remoteSide
}

type fakeListener struct {
	radio *fakeRadio
	once  sync.Once
	done  chan struct{}
}

func (l *fakeListener) Accept() (io.ReadWriteCloser, rfcomm.Addr, error) {
	select {
	case c := <-l.radio.pending:
		return c.conn, c.peer, nil
	case <-l.done:
		return nil, rfcomm.Addr{}, net.ErrClosed
	}
}

func (l *fakeListener) Close() error {
	l.once.Do(func() {
		l.radio.open.Add(-1)
		close(l.done)
	})
	return nil
}
