package goraop

import (
	"github.com/bluenviron/goraop/pkg/base"
	"github.com/bluenviron/goraop/pkg/decoder"
)

// ServerHandler is the interface implemented by all the server handlers.
// ServerHandlerOnAudioInit, ServerHandlerOnAudioProcess and
// ServerHandlerOnAudioDestroy must be implemented.
type ServerHandler interface{}

// ServerHandlerOnConnOpenCtx is the context of OnConnOpen.
type ServerHandlerOnConnOpenCtx struct {
	Conn *ServerConn
}

// ServerHandlerOnConnOpen can be implemented by a ServerHandler.
type ServerHandlerOnConnOpen interface {
	// called when a connection is opened.
	OnConnOpen(*ServerHandlerOnConnOpenCtx)
}

// ServerHandlerOnConnCloseCtx is the context of OnConnClose.
type ServerHandlerOnConnCloseCtx struct {
	Conn  *ServerConn
	Error error
}

// ServerHandlerOnConnClose can be implemented by a ServerHandler.
type ServerHandlerOnConnClose interface {
	// called when a connection is closed.
	OnConnClose(*ServerHandlerOnConnCloseCtx)
}

// ServerHandlerOnSessionOpenCtx is the context OnSessionOpen.
type ServerHandlerOnSessionOpenCtx struct {
	Session *ServerSession
	Conn    *ServerConn
}

// ServerHandlerOnSessionOpen can be implemented by a ServerHandler.
type ServerHandlerOnSessionOpen interface {
	// called when a session is opened, after an ANNOUNCE request.
	OnSessionOpen(*ServerHandlerOnSessionOpenCtx)
}

// ServerHandlerOnSessionCloseCtx is the context of ServerHandlerOnSessionClose.
type ServerHandlerOnSessionCloseCtx struct {
	Session *ServerSession
}

// ServerHandlerOnSessionClose can be implemented by a ServerHandler.
type ServerHandlerOnSessionClose interface {
	// called when a session is closed.
	OnSessionClose(*ServerHandlerOnSessionCloseCtx)
}

// ServerHandlerOnRequest can be implemented by a ServerHandler.
type ServerHandlerOnRequest interface {
	// called when receiving a request from a connection.
	OnRequest(*ServerConn, *base.Request)
}

// ServerHandlerOnResponse can be implemented by a ServerHandler.
type ServerHandlerOnResponse interface {
	// called when sending a response to a connection.
	OnResponse(*ServerConn, *base.Response)
}

// ServerHandlerOnAudioInitCtx is the context of OnAudioInit.
type ServerHandlerOnAudioInitCtx struct {
	Session    *ServerSession
	Encoding   decoder.Encoding
	Channels   int
	BitDepth   int
	SampleRate int
}

// ServerHandlerOnAudioInit must be implemented by a ServerHandler.
type ServerHandlerOnAudioInit interface {
	// called when a session starts receiving audio.
	OnAudioInit(*ServerHandlerOnAudioInitCtx)
}

// ServerHandlerOnAudioProcessCtx is the context of OnAudioProcess.
type ServerHandlerOnAudioProcessCtx struct {
	Session *ServerSession

	// 16-bit little-endian interleaved PCM.
	// It is valid only during the call.
	Data []byte

	Timestamp      uint32
	SequenceNumber uint16
}

// ServerHandlerOnAudioProcess must be implemented by a ServerHandler.
type ServerHandlerOnAudioProcess interface {
	// called when a frame is ready to be played, in sequence order.
	OnAudioProcess(*ServerHandlerOnAudioProcessCtx)
}

// ServerHandlerOnAudioDestroyCtx is the context of OnAudioDestroy.
type ServerHandlerOnAudioDestroyCtx struct {
	Session *ServerSession
}

// ServerHandlerOnAudioDestroy must be implemented by a ServerHandler.
type ServerHandlerOnAudioDestroy interface {
	// called once when a session stops receiving audio.
	OnAudioDestroy(*ServerHandlerOnAudioDestroyCtx)
}

// ServerHandlerOnAudioFlushCtx is the context of OnAudioFlush.
type ServerHandlerOnAudioFlushCtx struct {
	Session *ServerSession

	// sequence number of the next frame, or -1.
	NextSequenceNumber int
}

// ServerHandlerOnAudioFlush can be implemented by a ServerHandler.
type ServerHandlerOnAudioFlush interface {
	// called when queued audio must be discarded.
	OnAudioFlush(*ServerHandlerOnAudioFlushCtx)
}

// ServerHandlerOnAudioSetVolumeCtx is the context of OnAudioSetVolume.
type ServerHandlerOnAudioSetVolumeCtx struct {
	Session *ServerSession

	// volume in dB, between -144 (mute) and 0.
	Volume float64
}

// ServerHandlerOnAudioSetVolume can be implemented by a ServerHandler.
type ServerHandlerOnAudioSetVolume interface {
	// called when the volume changes.
	OnAudioSetVolume(*ServerHandlerOnAudioSetVolumeCtx)
}

// ServerHandlerOnAudioSetMetadataCtx is the context of OnAudioSetMetadata.
type ServerHandlerOnAudioSetMetadataCtx struct {
	Session *ServerSession

	// DMAP-encoded metadata.
	Metadata []byte
}

// ServerHandlerOnAudioSetMetadata can be implemented by a ServerHandler.
type ServerHandlerOnAudioSetMetadata interface {
	// called when the track metadata changes.
	OnAudioSetMetadata(*ServerHandlerOnAudioSetMetadataCtx)
}

// ServerHandlerOnAudioSetCoverArtCtx is the context of OnAudioSetCoverArt.
type ServerHandlerOnAudioSetCoverArtCtx struct {
	Session     *ServerSession
	ContentType string
	Image       []byte
}

// ServerHandlerOnAudioSetCoverArt can be implemented by a ServerHandler.
type ServerHandlerOnAudioSetCoverArt interface {
	// called when the cover art changes.
	OnAudioSetCoverArt(*ServerHandlerOnAudioSetCoverArtCtx)
}

// ServerHandlerOnAudioSetProgressCtx is the context of OnAudioSetProgress.
type ServerHandlerOnAudioSetProgressCtx struct {
	Session *ServerSession

	// RTP timestamps of the track start, of the current position and of the track end.
	Start   uint32
	Current uint32
	End     uint32
}

// ServerHandlerOnAudioSetProgress can be implemented by a ServerHandler.
type ServerHandlerOnAudioSetProgress interface {
	// called when the playback progress changes.
	OnAudioSetProgress(*ServerHandlerOnAudioSetProgressCtx)
}

// ServerHandlerOnAudioRemoteControlIDCtx is the context of OnAudioRemoteControlID.
type ServerHandlerOnAudioRemoteControlIDCtx struct {
	Session      *ServerSession
	DACPID       string
	ActiveRemote string
}

// ServerHandlerOnAudioRemoteControlID can be implemented by a ServerHandler.
type ServerHandlerOnAudioRemoteControlID interface {
	// called when the sender exposes a DACP remote control service.
	OnAudioRemoteControlID(*ServerHandlerOnAudioRemoteControlIDCtx)
}

// ServerHandlerOnAudioSyncCtx is the context of OnAudioSync.
type ServerHandlerOnAudioSyncCtx struct {
	Session *ServerSession

	// local time at which RTPTime must be played, in NTP format.
	Clock uint64

	// estimated error of Clock, in NTP format.
	Dispersion uint64

	// whether the sender clock is synchronized.
	// When false, Clock is the current local time.
	Synced bool

	RTPTime    uint32
	SampleRate int
}

// ServerHandlerOnAudioSync can be implemented by a ServerHandler.
type ServerHandlerOnAudioSync interface {
	// called when a sync packet or a timing response is received.
	OnAudioSync(*ServerHandlerOnAudioSyncCtx)
}
