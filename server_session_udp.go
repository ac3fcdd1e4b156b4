package goraop

import (
	"net"
	"time"

	"github.com/bluenviron/goraop/pkg/ntp"
	"github.com/bluenviron/goraop/pkg/rtpcontrol"
)

type udpBufferSetter interface {
	SetReadBuffer(bytes int) error
}

func (ss *ServerSession) listenUDP() (net.PacketConn, error) {
	address := net.JoinHostPort(ss.conn.localIP().String(), "0")

	pc, err := ss.s.ListenPacket(restrictNetwork("udp", address))
	if err != nil {
		return nil, err
	}

	if bs, ok := pc.(udpBufferSetter); ok {
		err = bs.SetReadBuffer(ss.s.UDPReadBufferSize)
		if err != nil {
			pc.Close()
			return nil, err
		}
	}

	return pc, nil
}

func udpPort(pc net.PacketConn) int {
	if addr, ok := pc.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

func (ss *ServerSession) startUDP() (sessionPorts, error) {
	var err error

	ss.udpControl, err = ss.listenUDP()
	if err != nil {
		return sessionPorts{}, err
	}

	ss.udpTiming, err = ss.listenUDP()
	if err != nil {
		ss.closeSockets()
		return sessionPorts{}, err
	}

	ss.udpData, err = ss.listenUDP()
	if err != nil {
		ss.closeSockets()
		return sessionPorts{}, err
	}

	ss.chControl = make(chan []byte)
	ss.chTiming = make(chan []byte)
	ss.chData = make(chan []byte)

	ss.wg.Add(3)
	go ss.runUDPReader(ss.udpControl, ss.chControl)
	go ss.runUDPReader(ss.udpTiming, ss.chTiming)
	go ss.runUDPReader(ss.udpData, ss.chData)

	return sessionPorts{
		data:    udpPort(ss.udpData),
		control: udpPort(ss.udpControl),
		timing:  udpPort(ss.udpTiming),
	}, nil
}

func (ss *ServerSession) runUDPReader(pc net.PacketConn, ch chan<- []byte) {
	defer ss.wg.Done()

	buf := make([]byte, udpReadBufferSize)

	for {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}

		pkt := make([]byte, n)
		copy(pkt, buf[:n])

		select {
		case ch <- pkt:
		case <-ss.ctx.Done():
			return
		}
	}
}

func (ss *ServerSession) writeUDP(pc net.PacketConn, port int, buf []byte) {
	pc.SetWriteDeadline(time.Now().Add(ss.s.WriteTimeout))
	_, err := pc.WriteTo(buf, &net.UDPAddr{IP: ss.remoteIP, Port: port})
	if err != nil {
		ss.logger.WithError(err).Debug("unable to write UDP packet")
	}
}

func (ss *ServerSession) sendTimingRequest() {
	ss.writeUDP(ss.udpTiming, ss.remoteTimingPort, rtpcontrol.Timing{
		Transmit: ntp.Now(),
	}.Marshal())
}

func (ss *ServerSession) sendResendRequest(seq uint16, count uint16) {
	ss.logger.WithField("seq", seq).WithField("count", count).Debug("requesting resend")

	ss.writeUDP(ss.udpControl, ss.remoteControlPort, rtpcontrol.ResendRequest{
		SequenceNumber:        ss.controlSeq,
		MissingSequenceNumber: seq,
		Count:                 count,
	}.Marshal())

	ss.controlSeq++
	ss.resendRequests.Add(1)
}
