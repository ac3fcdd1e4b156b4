package goraop

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bluenviron/goraop/pkg/decoder"
	"github.com/bluenviron/goraop/pkg/headers"
	"github.com/bluenviron/goraop/pkg/jitterbuffer"
	"github.com/bluenviron/goraop/pkg/ntp"
	"github.com/bluenviron/goraop/pkg/rtpcontrol"
)

// ServerSessionState is the state of a ServerSession.
type ServerSessionState int

// states.
const (
	ServerSessionStateIdle ServerSessionState = iota
	ServerSessionStateRunning
	ServerSessionStateStopped
)

// String implements fmt.Stringer.
func (s ServerSessionState) String() string {
	switch s {
	case ServerSessionStateIdle:
		return "idle"
	case ServerSessionStateRunning:
		return "running"
	case ServerSessionStateStopped:
		return "stopped"
	}
	return "unknown"
}

type sessionPorts struct {
	data    int
	control int
	timing  int
}

// ServerSession is a server-side RAOP session.
// It receives the audio stream announced by a connection.
type ServerSession struct {
	s        *Server
	conn     *ServerConn
	decoder  *decoder.Decoder
	remoteIP net.IP
	latency  uint32
	logger   logrus.FieldLogger

	id       uuid.UUID
	buffer   *jitterbuffer.Buffer
	events   sessionEventQueue
	userData interface{}
	closed   bool

	volumeMutex sync.Mutex
	volume      float64

	runMutex  sync.Mutex
	state     ServerSessionState
	ctx       context.Context
	ctxCancel func()
	wg        sync.WaitGroup

	protocol          headers.TransportProtocol
	remoteControlPort int
	remoteTimingPort  int
	udpControl        net.PacketConn
	udpTiming         net.PacketConn
	udpData           net.PacketConn
	tcpListener       net.Listener

	// owned by the worker
	ntpSync    ntp.Sync
	lastSync   *rtpcontrol.Sync
	controlSeq uint16

	packetsReceived      atomic.Uint64
	packetsRetransmitted atomic.Uint64
	packetsLost          atomic.Uint64
	resendRequests       atomic.Uint64

	// in
	chData    chan []byte
	chControl chan []byte
	chTiming  chan []byte
}

func (ss *ServerSession) initialize() error {
	ss.id = uuid.New()
	ss.logger = ss.logger.WithField("session", ss.id.String())

	ss.buffer = &jitterbuffer.Buffer{
		Decoder: ss.decoder,
		Logger:  ss.logger,
	}
	err := ss.buffer.Initialize()
	if err != nil {
		return err
	}

	ss.events.initialize()
	ss.state = ServerSessionStateIdle

	return nil
}

// ID returns the session ID.
func (ss *ServerSession) ID() uuid.UUID {
	return ss.id
}

// Conn returns the connection that created the session.
func (ss *ServerSession) Conn() *ServerConn {
	return ss.conn
}

// Decoder returns the audio decoder of the session.
func (ss *ServerSession) Decoder() *decoder.Decoder {
	return ss.decoder
}

// RemoteIP returns the IP of the sender.
func (ss *ServerSession) RemoteIP() net.IP {
	return ss.remoteIP
}

// Stats returns session statistics.
func (ss *ServerSession) Stats() *SessionStats {
	return &SessionStats{
		PacketsReceived:      ss.packetsReceived.Load(),
		PacketsRetransmitted: ss.packetsRetransmitted.Load(),
		PacketsLost:          ss.packetsLost.Load(),
		ResendRequests:       ss.resendRequests.Load(),
	}
}

// State returns the state of the session.
func (ss *ServerSession) State() ServerSessionState {
	ss.runMutex.Lock()
	defer ss.runMutex.Unlock()
	return ss.state
}

// SetUserData sets some user data associated with the session.
func (ss *ServerSession) SetUserData(v interface{}) {
	ss.userData = v
}

// UserData returns some user data associated with the session.
func (ss *ServerSession) UserData() interface{} {
	return ss.userData
}

// Volume returns the last volume set, in dB.
func (ss *ServerSession) Volume() float64 {
	ss.volumeMutex.Lock()
	defer ss.volumeMutex.Unlock()
	return ss.volume
}

// SetVolume sets the volume, in dB. It is clamped between -144 and 0.
func (ss *ServerSession) SetVolume(v float64) {
	v = clampVolume(v)

	ss.volumeMutex.Lock()
	ss.volume = v
	ss.volumeMutex.Unlock()

	ss.events.push(sessionEvent{typ: sessionEventVolume, volume: v})
}

// SetMetadata sets DMAP-encoded track metadata.
func (ss *ServerSession) SetMetadata(metadata []byte) {
	ss.events.push(sessionEvent{typ: sessionEventMetadata, data: metadata})
}

// SetCoverArt sets the track cover art.
func (ss *ServerSession) SetCoverArt(contentType string, image []byte) {
	ss.events.push(sessionEvent{typ: sessionEventCoverArt, contentType: contentType, data: image})
}

// SetRemoteControlID sets the DACP identifiers of the sender.
func (ss *ServerSession) SetRemoteControlID(dacpID string, activeRemote string) {
	ss.events.push(sessionEvent{typ: sessionEventRemoteControlID, dacpID: dacpID, activeRemote: activeRemote})
}

// SetProgress sets the playback progress.
func (ss *ServerSession) SetProgress(start uint32, current uint32, end uint32) {
	ss.events.push(sessionEvent{typ: sessionEventProgress, start: start, current: current, end: end})
}

// Flush discards queued audio.
// next is the sequence number of the next packet, or -1.
func (ss *ServerSession) Flush(next int) {
	ss.events.push(sessionEvent{typ: sessionEventFlush, next: next})
}

func (ss *ServerSession) start(
	protocol headers.TransportProtocol,
	remoteControlPort int,
	remoteTimingPort int,
) (sessionPorts, error) {
	ss.runMutex.Lock()
	defer ss.runMutex.Unlock()

	if ss.state != ServerSessionStateIdle {
		return sessionPorts{}, fmt.Errorf("session is %v", ss.state)
	}

	ss.protocol = protocol
	ss.remoteControlPort = remoteControlPort
	ss.remoteTimingPort = remoteTimingPort
	ss.ctx, ss.ctxCancel = context.WithCancel(ss.conn.ctx)

	var ports sessionPorts
	var err error

	if protocol == headers.TransportProtocolTCP {
		ports, err = ss.startTCP()
	} else {
		ports, err = ss.startUDP()
	}
	if err != nil {
		ss.ctxCancel()
		return sessionPorts{}, err
	}

	ss.state = ServerSessionStateRunning

	ss.logger.WithFields(logrus.Fields{
		"protocol": protocol,
		"data":     ports.data,
		"control":  ports.control,
		"timing":   ports.timing,
	}).Info("session started")

	ss.wg.Add(1)
	go ss.runWorker()

	return ports, nil
}

func (ss *ServerSession) closeSockets() {
	if ss.udpControl != nil {
		ss.udpControl.Close()
	}
	if ss.udpTiming != nil {
		ss.udpTiming.Close()
	}
	if ss.udpData != nil {
		ss.udpData.Close()
	}
	if ss.tcpListener != nil {
		ss.tcpListener.Close()
	}
}

// stop can be called more than once.
// The worker is awaited without holding runMutex, since handlers
// can call State() from inside callbacks.
func (ss *ServerSession) stop() {
	ss.runMutex.Lock()

	switch ss.state {
	case ServerSessionStateIdle:
		ss.state = ServerSessionStateStopped
		ss.runMutex.Unlock()
		return

	case ServerSessionStateStopped:
		ss.runMutex.Unlock()
		return
	}

	ss.state = ServerSessionStateStopped
	ss.runMutex.Unlock()

	ss.ctxCancel()
	ss.closeSockets()
	ss.wg.Wait()

	ss.buffer.Flush(-1)

	ss.logger.Info("session stopped")
}

func (ss *ServerSession) close() {
	ss.stop()

	if ss.closed {
		return
	}
	ss.closed = true

	if h, ok := ss.s.Handler.(ServerHandlerOnSessionClose); ok {
		h.OnSessionClose(&ServerHandlerOnSessionCloseCtx{
			Session: ss,
		})
	}
}

func (ss *ServerSession) resendEnabled() bool {
	return ss.protocol == headers.TransportProtocolUDP && ss.remoteControlPort != 0
}

func (ss *ServerSession) runWorker() {
	defer ss.wg.Done()

	ss.s.Handler.(ServerHandlerOnAudioInit).OnAudioInit(&ServerHandlerOnAudioInitCtx{
		Session:    ss,
		Encoding:   ss.decoder.Encoding(),
		Channels:   ss.decoder.Channels(),
		BitDepth:   ss.decoder.BitDepth(),
		SampleRate: ss.decoder.SampleRate(),
	})

	ss.ntpSync.Init(ntp.Now())
	ss.processEvents()

	var timingC <-chan time.Time
	if ss.protocol == headers.TransportProtocolUDP && ss.remoteTimingPort != 0 {
		ticker := time.NewTicker(timingRequestPeriod)
		defer ticker.Stop()
		timingC = ticker.C

		ss.sendTimingRequest()
	}

	ss.runWorkerInner(timingC)

	ss.s.Handler.(ServerHandlerOnAudioDestroy).OnAudioDestroy(&ServerHandlerOnAudioDestroyCtx{
		Session: ss,
	})
}

func (ss *ServerSession) runWorkerInner(timingC <-chan time.Time) {
	for {
		select {
		case <-ss.events.notify:
			ss.processEvents()

		case <-timingC:
			ss.sendTimingRequest()

		case pkt := <-ss.chControl:
			ss.processEvents()
			ss.handleControlPacket(pkt)

		case pkt := <-ss.chTiming:
			ss.processEvents()
			ss.handleTimingPacket(pkt)

		case pkt, ok := <-ss.chData:
			if !ok {
				ss.logger.Debug("stream closed")
				return
			}
			ss.processEvents()
			ss.handleDataPacket(pkt)

		case <-ss.ctx.Done():
			return
		}
	}
}

func (ss *ServerSession) processEvents() {
	for _, e := range ss.events.pull() {
		switch e.typ {
		case sessionEventVolume:
			if h, ok := ss.s.Handler.(ServerHandlerOnAudioSetVolume); ok {
				h.OnAudioSetVolume(&ServerHandlerOnAudioSetVolumeCtx{
					Session: ss,
					Volume:  e.volume,
				})
			}

		case sessionEventFlush:
			ss.buffer.Flush(e.next)

			if h, ok := ss.s.Handler.(ServerHandlerOnAudioFlush); ok {
				h.OnAudioFlush(&ServerHandlerOnAudioFlushCtx{
					Session:            ss,
					NextSequenceNumber: e.next,
				})
			}

		case sessionEventMetadata:
			if h, ok := ss.s.Handler.(ServerHandlerOnAudioSetMetadata); ok {
				h.OnAudioSetMetadata(&ServerHandlerOnAudioSetMetadataCtx{
					Session:  ss,
					Metadata: e.data,
				})
			}

		case sessionEventCoverArt:
			if h, ok := ss.s.Handler.(ServerHandlerOnAudioSetCoverArt); ok {
				h.OnAudioSetCoverArt(&ServerHandlerOnAudioSetCoverArtCtx{
					Session:     ss,
					ContentType: e.contentType,
					Image:       e.data,
				})
			}

		case sessionEventRemoteControlID:
			if h, ok := ss.s.Handler.(ServerHandlerOnAudioRemoteControlID); ok {
				h.OnAudioRemoteControlID(&ServerHandlerOnAudioRemoteControlIDCtx{
					Session:      ss,
					DACPID:       e.dacpID,
					ActiveRemote: e.activeRemote,
				})
			}

		case sessionEventProgress:
			if h, ok := ss.s.Handler.(ServerHandlerOnAudioSetProgress); ok {
				h.OnAudioSetProgress(&ServerHandlerOnAudioSetProgressCtx{
					Session: ss,
					Start:   e.start,
					Current: e.current,
					End:     e.end,
				})
			}
		}
	}
}

func (ss *ServerSession) processFrame(fr *jitterbuffer.Frame) {
	if fr.Missing {
		ss.packetsLost.Add(1)
	}

	ss.s.Handler.(ServerHandlerOnAudioProcess).OnAudioProcess(&ServerHandlerOnAudioProcessCtx{
		Session:        ss,
		Data:           fr.Data,
		Timestamp:      fr.Timestamp,
		SequenceNumber: fr.SequenceNumber,
	})
}

func (ss *ServerSession) handleDataPacket(pkt []byte) {
	ss.packetsReceived.Add(1)

	if ss.protocol == headers.TransportProtocolTCP {
		_, err := ss.buffer.Queue(pkt, false)
		if err != nil {
			ss.logger.WithError(err).Debug("invalid audio packet")
			return
		}

		fr, ok := ss.buffer.Dequeue(true)
		if ok {
			ss.processFrame(fr)
		}
		return
	}

	_, err := ss.buffer.Queue(pkt, true)
	if err != nil {
		ss.logger.WithError(err).Debug("invalid audio packet")
		return
	}

	ss.processAvailableFrames()

	if ss.resendEnabled() {
		ss.buffer.HandleResends(ss.sendResendRequest)
	}
}

func (ss *ServerSession) processAvailableFrames() {
	noResend := !ss.resendEnabled()

	for {
		fr, ok := ss.buffer.Dequeue(noResend)
		if !ok {
			return
		}
		ss.processFrame(fr)
	}
}

func (ss *ServerSession) handleControlPacket(pkt []byte) {
	typ, err := rtpcontrol.Type(pkt)
	if err != nil {
		ss.logger.WithError(err).Debug("invalid control packet")
		return
	}

	switch typ {
	case rtpcontrol.PacketTypeRetransmit:
		inner, err := rtpcontrol.Retransmit(pkt)
		if err != nil {
			ss.logger.WithError(err).Debug("invalid control packet")
			return
		}

		_, err = ss.buffer.Queue(inner, true)
		if err != nil {
			ss.logger.WithError(err).Debug("invalid retransmitted packet")
			return
		}
		ss.packetsRetransmitted.Add(1)

		ss.processAvailableFrames()

	case rtpcontrol.PacketTypeSync:
		var sp rtpcontrol.Sync
		err := sp.Unmarshal(pkt)
		if err != nil {
			ss.logger.WithError(err).Debug("invalid control packet")
			return
		}

		ss.lastSync = &sp
		ss.emitSync()

	default:
		ss.logger.WithField("type", typ).Debug("unexpected control packet")
	}
}

func (ss *ServerSession) handleTimingPacket(pkt []byte) {
	var timing rtpcontrol.Timing
	err := timing.Unmarshal(pkt)
	if err != nil {
		ss.logger.WithError(err).Debug("invalid timing packet")
		return
	}

	if !timing.Response {
		return
	}

	ss.ntpSync.Add(timing.Origin, timing.Receive, timing.Transmit, ntp.Now())

	if ss.lastSync != nil {
		ss.emitSync()
	}
}

func (ss *ServerSession) emitSync() {
	h, ok := ss.s.Handler.(ServerHandlerOnAudioSync)
	if !ok {
		return
	}

	now := ntp.Now()
	offset, dispersion := ss.ntpSync.Offset(now)

	ctx := &ServerHandlerOnAudioSyncCtx{
		Session:    ss,
		RTPTime:    ss.lastSync.RTPTime,
		SampleRate: ss.decoder.SampleRate(),
	}

	if ntp.Synced(dispersion) {
		ctx.Clock = ntp.RemoteToLocal(ss.lastSync.NTPTime, offset)
		ctx.Dispersion = dispersion
		ctx.Synced = true
	} else {
		ctx.Clock = now
		ctx.Dispersion = ntp.MaxDispersion
	}

	h.OnAudioSync(ctx)
}
