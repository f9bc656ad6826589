package helper

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

const receiveBufferBytes = 256 * 1024

// openSocket creates a raw ICMP socket connected to the target, so the kernel
// filters out packets from unrelated sources before they reach us. The
// receive buffer bump and the echo-reply ICMP filter are best effort.
func openSocket(target net.IP) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMP)
	if err != nil {
		return -1, fmt.Errorf("cannot create raw socket: %w", err)
	}

	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], target.To4())
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("connect failed: %w", err)
	}

	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, receiveBufferBytes)

	// Accept only echo replies at the socket level; full validation still
	// happens on every packet we read.
	filter := ^(uint32(1) << 0) // bit 0 = echo reply
	_ = unix.SetsockoptInt(fd, unix.SOL_RAW, unix.ICMP_FILTER, int(int32(filter)))

	return fd, nil
}

func send(fd int, packet []byte) error {
	n, err := unix.Write(fd, packet)
	if err != nil {
		return err
	}
	if n != len(packet) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(packet))
	}
	return nil
}

// waitReadable blocks until the socket is readable or the window elapses.
// The false return with nil error means the wait timed out.
func waitReadable(fd int, window time.Duration) (bool, error) {
	var readSet unix.FdSet
	readSet.Zero()
	readSet.Set(fd)

	tv := unix.NsecToTimeval(window.Nanoseconds())
	n, err := unix.Select(fd+1, &readSet, nil, nil, &tv)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func receive(fd int, buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(fd, buf, 0)
	return n, err
}
