/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package netflow

import (
	"context"
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// Exporters rarely exceed the usual 1500 byte MTU per datagram since
	// fragmented flow packets are lost whole when a single fragment drops.
	// v9/IPFIX exporters honor that by bounding their message length.
	UDPPacketBufferSize int = 1500

	// Number of packets buffered in the channel towards the decoder. This
	// moves packet buffering from the UDP socket into user space, which
	// alleviates most packet loss under bursts.
	UDPChannelBufferSize int = 50
)

// Packet is one datagram as read off the socket, together with the
// exporter host it came from. The host feeds the v9 template keys and
// the sampler table.
type Packet struct {
	Payload []byte
	Host    string
}

// UDPListener reads exporter datagrams from a UDP socket into a channel
// of Packets for the decoder to consume.
type UDPListener struct {
	bindAddr string
	packetCh chan Packet

	listener net.PacketConn
}

func NewUDPListener(bindAddr string) *UDPListener {
	return &UDPListener{
		bindAddr: bindAddr,
		packetCh: make(chan Packet, UDPChannelBufferSize),
	}
}

// Listen binds the socket and reads packets until ctx is cancelled. The
// packet channel closes when Listen returns.
func (l *UDPListener) Listen(ctx context.Context) (err error) {
	logger := FromContext(ctx)
	// do this last such that the goroutine reading packets exits before closing the channel
	defer close(l.packetCh)

	listenConfig := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var err error
			controlErr := c.Control(func(fd uintptr) {
				err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if err != nil {
					return
				}
				err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if controlErr != nil {
				err = controlErr
			}
			return err
		},
	}
	l.listener, err = listenConfig.ListenPacket(ctx, "udp", l.bindAddr)
	if err != nil {
		logger.Error(err, "failed to bind udp listener", "addr", l.bindAddr)
		return err
	}
	defer l.listener.Close()

	var rerr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		// allocate this buffer once and re-use it for each packet read from the socket
		buffer := make([]byte, UDPPacketBufferSize)
		for {
			n, addr, err := l.listener.ReadFrom(buffer)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				UDPErrorsTotal.Inc()
				rerr = err
				logger.Error(err, "failed to read from UDP socket")
				return
			}
			UDPPacketsTotal.Inc()
			UDPPacketBytes.Add(float64(n))

			host := ""
			if udpAddr, ok := addr.(*net.UDPAddr); ok {
				host = udpAddr.IP.String()
			}

			// trim to the actual packet size so the decoder never sees stale
			// bytes from a previous, larger packet
			payload := make([]byte, n)
			copy(payload, buffer[:n])

			select {
			case l.packetCh <- Packet{Payload: payload, Host: host}:
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Info("Started UDP listener", "addr", l.bindAddr)

	<-ctx.Done()
	logger.Info("Shutting down UDP listener", "addr", l.bindAddr)

	// unblock the reader goroutine and wait for it to exit
	l.listener.Close()
	<-done

	// use error from reader goroutine if set
	err = rerr
	return
}

// Packets returns the channel of received datagrams.
func (l *UDPListener) Packets() <-chan Packet {
	return l.packetCh
}
