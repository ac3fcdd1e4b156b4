package main

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bluenviron/goraop"
	"github.com/bluenviron/goraop/pkg/ntp"
)

type serverHandler struct {
	out    io.Writer
	logger logrus.FieldLogger

	mutex  sync.Mutex
	active *goraop.ServerSession
}

// called when a connection is opened.
func (sh *serverHandler) OnConnOpen(ctx *goraop.ServerHandlerOnConnOpenCtx) {
	sh.logger.WithField("remote", ctx.Conn.NetConn().RemoteAddr()).Info("conn opened")
}

// called when a connection is closed.
func (sh *serverHandler) OnConnClose(ctx *goraop.ServerHandlerOnConnCloseCtx) {
	sh.logger.WithField("remote", ctx.Conn.NetConn().RemoteAddr()).WithError(ctx.Error).Info("conn closed")
}

// called when a session starts receiving audio.
func (sh *serverHandler) OnAudioInit(ctx *goraop.ServerHandlerOnAudioInitCtx) {
	sh.mutex.Lock()
	defer sh.mutex.Unlock()

	// the last sender takes over the output
	sh.active = ctx.Session

	sh.logger.WithFields(logrus.Fields{
		"encoding":    ctx.Encoding,
		"channels":    ctx.Channels,
		"bit_depth":   ctx.BitDepth,
		"sample_rate": ctx.SampleRate,
	}).Info("audio started")
}

// called when a decoded frame is ready.
func (sh *serverHandler) OnAudioProcess(ctx *goraop.ServerHandlerOnAudioProcessCtx) {
	sh.mutex.Lock()
	defer sh.mutex.Unlock()

	if ctx.Session != sh.active {
		return
	}

	_, err := sh.out.Write(ctx.Data)
	if err != nil {
		sh.logger.WithError(err).Warn("unable to write audio")
	}
}

// called when a session stops receiving audio.
func (sh *serverHandler) OnAudioDestroy(ctx *goraop.ServerHandlerOnAudioDestroyCtx) {
	sh.mutex.Lock()
	defer sh.mutex.Unlock()

	if ctx.Session == sh.active {
		sh.active = nil
	}

	stats := ctx.Session.Stats()

	sh.logger.WithFields(logrus.Fields{
		"received": stats.PacketsReceived,
		"resent":   stats.PacketsRetransmitted,
		"lost":     stats.PacketsLost,
	}).Info("audio stopped")
}

// called when the sender clock is resynchronized.
func (sh *serverHandler) OnAudioSync(ctx *goraop.ServerHandlerOnAudioSyncCtx) {
	sh.logger.WithFields(logrus.Fields{
		"rtptime": ctx.RTPTime,
		"play_at": ntp.Decode(ctx.Clock).Format("15:04:05.000"),
		"synced":  ctx.Synced,
	}).Debug("sync")
}

// called when the volume changes.
func (sh *serverHandler) OnAudioSetVolume(ctx *goraop.ServerHandlerOnAudioSetVolumeCtx) {
	sh.logger.WithField("volume", ctx.Volume).Info("volume changed")
}

// called when the track metadata changes.
func (sh *serverHandler) OnAudioSetMetadata(ctx *goraop.ServerHandlerOnAudioSetMetadataCtx) {
	sh.logger.WithField("size", len(ctx.Metadata)).Debug("metadata received")
}

// called when the cover art changes.
func (sh *serverHandler) OnAudioSetCoverArt(ctx *goraop.ServerHandlerOnAudioSetCoverArtCtx) {
	sh.logger.WithField("type", ctx.ContentType).Debug("cover art received")
}

// called when the sender exposes a remote control.
func (sh *serverHandler) OnAudioRemoteControlID(ctx *goraop.ServerHandlerOnAudioRemoteControlIDCtx) {
	sh.logger.WithFields(logrus.Fields{
		"dacp_id":       ctx.DACPID,
		"active_remote": ctx.ActiveRemote,
	}).Debug("remote control available")
}
