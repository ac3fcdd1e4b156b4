package goraop

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/bluenviron/goraop/pkg/base"
)

func (ss *ServerSession) startTCP() (sessionPorts, error) {
	address := net.JoinHostPort(ss.conn.localIP().String(), "0")

	var err error
	ss.tcpListener, err = ss.s.Listen(restrictNetwork("tcp", address))
	if err != nil {
		return sessionPorts{}, err
	}

	ss.chData = make(chan []byte)

	ss.wg.Add(1)
	go ss.runTCPReader()

	port := 0
	if addr, ok := ss.tcpListener.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	return sessionPorts{data: port}, nil
}

// runTCPReader serves the first stream accepted by the listener.
// chData is closed when the stream ends.
func (ss *ServerSession) runTCPReader() {
	defer ss.wg.Done()
	defer close(ss.chData)

	nconn, err := ss.tcpListener.Accept()
	if err != nil {
		return
	}
	defer nconn.Close()

	stop := context.AfterFunc(ss.ctx, func() {
		nconn.Close()
	})
	defer stop()

	ss.logger.WithField("remote", nconn.RemoteAddr().String()).Debug("stream connected")

	br := bufio.NewReaderSize(nconn, udpReadBufferSize)

	for {
		var f base.InterleavedFrame
		err = f.Unmarshal(br)
		if err != nil {
			if !errors.Is(err, io.EOF) && ss.ctx.Err() == nil {
				ss.logger.WithError(err).Warn("stream error")
			}
			return
		}

		if f.Channel != base.InterleavedFrameAudioChannel {
			continue
		}

		select {
		case ss.chData <- f.Payload:
		case <-ss.ctx.Done():
			return
		}
	}
}
