//go:build linux

// Package hal provides Ring backends that talk to real hardware. RawRing
// drives the two physical Sercos ports directly over raw Ethernet sockets,
// the production counterpart to hal/simhal's loopback.
package hal

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	sercos3 "github.com/sercos3/master"
)

// sercosEtherType is the EtherType Sercos III real-time telegrams carry on
// the wire, distinguishing them from ordinary IP traffic sharing the same
// physical link.
const sercosEtherType = 0x88CD

// frameHeaderLen is the Ethernet header bytes a raw AF_PACKET socket hands
// back in front of every telegram's own payload: 6 bytes destination MAC, 6
// bytes source MAC, 2 bytes EtherType.
const frameHeaderLen = 14

var broadcastMAC = [6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func init() {
	sercos3.RegisterRing("raw", NewRawRing)
}

type portSocket struct {
	fd     int
	f      *os.File
	ifIdx  int
	ifName string
}

// RawRing is a two-port sercos3.Ring backed by AF_PACKET raw sockets, one
// per physical port. Port names are passed as a "port1,port2" channel
// string, e.g. "eth0,eth1".
type RawRing struct {
	mu       sync.Mutex
	ports    [2]*portSocket
	listener sercos3.TelegramListener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewRawRing opens the two named network interfaces as raw Sercos ports.
// Both interfaces must already be up, the same precondition socketcanv2
// places on its CAN channel.
func NewRawRing(channel string) (sercos3.Ring, error) {
	names := splitChannel(channel)
	if len(names) != 2 {
		return nil, fmt.Errorf("hal: raw ring channel %q must name exactly two interfaces", channel)
	}

	ring := &RawRing{logger: slog.Default()}
	for i, name := range names {
		sock, err := openPortSocket(name)
		if err != nil {
			ring.closeOpened(i)
			return nil, fmt.Errorf("hal: open port %d (%s): %w", i, name, err)
		}
		ring.ports[i] = sock
	}
	return ring, nil
}

func (r *RawRing) closeOpened(upTo int) {
	for i := 0; i < upTo; i++ {
		if r.ports[i] != nil {
			unix.Close(r.ports[i].fd)
		}
	}
}

func openPortSocket(ifName string) (*portSocket, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(sercosEtherType))
	if err != nil {
		return nil, fmt.Errorf("failed to create raw socket: %w", err)
	}
	tv := unix.Timeval{Sec: 0, Usec: 100000}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(sercosEtherType),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &portSocket{fd: fd, ifIdx: iface.Index, ifName: ifName}, nil
}

func htons(v uint16) int {
	return int(v<<8&0xFF00 | v>>8)
}

// Connect starts the receive goroutines, one per port.
func (r *RawRing) Connect(...any) error {
	var ctx context.Context
	ctx, r.cancel = context.WithCancel(context.Background())
	for i, sock := range r.ports {
		sock.f = os.NewFile(uintptr(sock.fd), fmt.Sprintf("%s fd %d", sock.ifName, sock.fd))
		port := sercos3.Port(i)
		r.wg.Add(1)
		go func(sock *portSocket, port sercos3.Port) {
			defer r.wg.Done()
			r.processIncoming(ctx, sock, port)
		}(sock, port)
	}
	return nil
}

// Disconnect stops both receive goroutines and closes the sockets.
func (r *RawRing) Disconnect() error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	for _, sock := range r.ports {
		if sock.f != nil {
			sock.f.Close()
		}
	}
	return nil
}

// Send writes a telegram onto its designated port, prefixed with the
// Ethernet header the slave's own raw socket expects.
func (r *RawRing) Send(t sercos3.Telegram) error {
	sock := r.ports[t.Port]
	if sock == nil || sock.f == nil {
		return fmt.Errorf("hal: port %s not connected", t.Port)
	}
	frame := make([]byte, frameHeaderLen+len(t.Data))
	copy(frame[0:6], broadcastMAC[:])
	binaryPutUint16(frame[12:14], sercosEtherType)
	copy(frame[frameHeaderLen:], t.Data)
	n, err := sock.f.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return fmt.Errorf("hal: short write on port %s: %d of %d bytes", t.Port, n, len(frame))
	}
	return nil
}

func (r *RawRing) processIncoming(ctx context.Context, sock *portSocket, port sercos3.Port) {
	buf := make([]byte, 1536)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			n, err := sock.f.Read(buf)
			if err != nil {
				if err == syscall.EAGAIN {
					continue
				}
				r.logger.Info("hal: raw ring receive loop exiting", "port", port, "error", err)
				return
			}
			if n <= frameHeaderLen {
				continue
			}
			data := make([]byte, n-frameHeaderLen)
			copy(data, buf[frameHeaderLen:n])
			t := sercos3.Telegram{Port: port, Data: data}
			r.mu.Lock()
			listener := r.listener
			r.mu.Unlock()
			if listener != nil {
				listener.Handle(t)
			}
		}
	}
}

// Subscribe registers the single listener that receives every telegram
// observed on either port.
func (r *RawRing) Subscribe(listener sercos3.TelegramListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = listener
	return nil
}

func binaryPutUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func splitChannel(channel string) []string {
	var out []string
	start := 0
	for i := 0; i < len(channel); i++ {
		if channel[i] == ',' {
			out = append(out, channel[start:i])
			start = i + 1
		}
	}
	out = append(out, channel[start:])
	return out
}
