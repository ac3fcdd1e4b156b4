package goraop

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bluenviron/goraop/pkg/base"
	"github.com/bluenviron/goraop/pkg/decoder"
	"github.com/bluenviron/goraop/pkg/fairplay"
	"github.com/bluenviron/goraop/pkg/headers"
	"github.com/bluenviron/goraop/pkg/liberrors"
	"github.com/bluenviron/goraop/pkg/sdp"
)

func (sc *ServerConn) handleOptions(_ *base.Request) (*base.Response, error) {
	methods := []base.Method{
		base.Announce,
		base.Setup,
		base.Record,
		base.Pause,
		base.Flush,
		base.Teardown,
		base.Options,
		base.GetParameter,
		base.SetParameter,
	}

	tmp := make([]string, len(methods))
	for i, m := range methods {
		tmp[i] = string(m)
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Public": base.HeaderValue{strings.Join(tmp, ", ")},
		},
	}, nil
}

func octetStreamResponse(body []byte) *base.Response {
	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Content-Type": base.HeaderValue{"application/octet-stream"},
		},
		Body: body,
	}
}

func (sc *ServerConn) handlePairSetup(req *base.Request) (*base.Response, error) {
	res, err := sc.pairing.Setup(req.Body)
	if err != nil {
		sc.logger.WithError(err).Warn("pair-setup failed")
		return &base.Response{
			StatusCode: base.StatusBadRequest,
		}, nil
	}

	return octetStreamResponse(res), nil
}

func (sc *ServerConn) handlePairVerify(req *base.Request) (*base.Response, error) {
	if len(req.Body) < 4 {
		return &base.Response{
			StatusCode: base.StatusBadRequest,
		}, nil
	}

	if req.Body[0] == 1 {
		res, err := sc.pairing.VerifyStep1(req.Body)
		if err != nil {
			sc.logger.WithError(err).Warn("pair-verify failed")
			return &base.Response{
				StatusCode: base.StatusBadRequest,
			}, nil
		}

		return octetStreamResponse(res), nil
	}

	// a failed verification closes the connection
	err := sc.pairing.VerifyStep2(req.Body)
	if err != nil {
		return &base.Response{
			StatusCode: base.StatusForbidden,
		}, liberrors.ErrServerPairVerifyFailed{Err: err}
	}

	sc.logger.Debug("pair-verify completed")

	return &base.Response{
		StatusCode: base.StatusOK,
	}, nil
}

func (sc *ServerConn) handleFPSetup(req *base.Request) (*base.Response, error) {
	if sc.fairPlay == nil {
		return &base.Response{
			StatusCode: base.StatusNotImplemented,
		}, nil
	}

	var res []byte
	var err error

	if len(req.Body) == fairplay.SetupRequestLength {
		res, err = sc.fairPlay.Setup(req.Body)
	} else {
		res, err = sc.fairPlay.Handshake(req.Body)
	}

	if err != nil {
		sc.logger.WithError(err).Warn("FairPlay setup failed")

		var eerr liberrors.ErrServerFairPlayState
		if errors.As(err, &eerr) {
			return &base.Response{
				StatusCode: base.StatusMethodNotValidInThisState,
			}, nil
		}

		return &base.Response{
			StatusCode: base.StatusInternalServerError,
		}, nil
	}

	return octetStreamResponse(res), nil
}

func (sc *ServerConn) decryptAESKey(ann *sdp.Announce) ([]byte, []byte, error) {
	if !ann.Encrypted() {
		return nil, nil, nil
	}

	var key []byte

	switch {
	case ann.RSAAESKey != "":
		var err error
		key, err = sc.s.rsaKey.DecryptAESKey(ann.RSAAESKey)
		if err != nil {
			return nil, nil, err
		}

	case ann.FPAESKey != "":
		if sc.fairPlay == nil {
			return nil, nil, fmt.Errorf("FairPlay is not available")
		}

		enc, err := decodeBase64(ann.FPAESKey)
		if err != nil {
			return nil, nil, err
		}

		key, err = sc.fairPlay.Decrypt(enc)
		if err != nil {
			return nil, nil, err
		}
	}

	if ann.AESIV == "" {
		return nil, nil, fmt.Errorf("aesiv is missing")
	}

	iv, err := decodeBase64(ann.AESIV)
	if err != nil {
		return nil, nil, err
	}

	return key, iv, nil
}

func (sc *ServerConn) sessionRemoteIP(ann *sdp.Announce) net.IP {
	if ip := net.ParseIP(ann.ConnectionAddress); ip != nil && !ip.IsUnspecified() {
		// senders often advertise link-local addresses that cannot be
		// reached without a zone
		if !ip.IsLinkLocalUnicast() {
			return ip
		}
	}
	return sc.remoteIP()
}

func (sc *ServerConn) handleAnnounce(req *base.Request) (*base.Response, error) {
	var ann sdp.Announce
	err := ann.Unmarshal(req.Body)
	if err != nil {
		return &base.Response{
			StatusCode: base.StatusBadRequest,
		}, err
	}

	sc.logger.WithFields(logrus.Fields{
		"rtpmap": ann.RTPMap,
		"fmtp":   ann.FMTP,
	}).Debug("stream announced")

	key, iv, err := sc.decryptAESKey(&ann)
	if err != nil {
		return &base.Response{
			StatusCode: base.StatusBadRequest,
		}, liberrors.ErrServerAnnounceKey{Err: err}
	}

	dec := &decoder.Decoder{
		RTPMap:    ann.RTPMap,
		FMTP:      ann.FMTP,
		AESKey:    key,
		AESIV:     iv,
		NewAACELD: sc.s.AACELDDecoder,
	}
	err = dec.Initialize()
	if err != nil {
		return &base.Response{
			StatusCode: base.StatusNotAcceptable,
		}, err
	}

	if sc.session != nil {
		sc.logger.Warn("replacing existing session")
		sc.session.close()
		sc.session = nil
	}

	ss := &ServerSession{
		s:        sc.s,
		conn:     sc,
		decoder:  dec,
		remoteIP: sc.sessionRemoteIP(&ann),
		latency:  ann.MinLatency,
		logger:   sc.logger,
	}
	err = ss.initialize()
	if err != nil {
		return &base.Response{
			StatusCode: base.StatusInternalServerError,
		}, err
	}

	sc.session = ss

	if h, ok := sc.s.Handler.(ServerHandlerOnSessionOpen); ok {
		h.OnSessionOpen(&ServerHandlerOnSessionOpenCtx{
			Session: ss,
			Conn:    sc,
		})
	}

	return &base.Response{
		StatusCode: base.StatusOK,
	}, nil
}

func (sc *ServerConn) handleSetup(req *base.Request) (*base.Response, error) {
	if sc.session == nil {
		return &base.Response{
			StatusCode: base.StatusMethodNotValidInThisState,
		}, liberrors.ErrServerSessionNotAnnounced{}
	}

	dacpID := req.Header.Get("DACP-ID")
	activeRemote := req.Header.Get("Active-Remote")
	if dacpID != "" && activeRemote != "" {
		sc.session.SetRemoteControlID(dacpID, activeRemote)
	}

	var th headers.Transport
	err := th.Unmarshal(req.Header["Transport"])
	if err != nil {
		// UDP without remote ports: no resends and no timing requests
		sc.logger.WithError(err).Debug("invalid Transport header, using defaults")
		th = headers.Transport{Protocol: headers.TransportProtocolUDP}
	}

	sc.logger.WithFields(logrus.Fields{
		"protocol":     th.Protocol,
		"control_port": th.ControlPort,
		"timing_port":  th.TimingPort,
	}).Info("setting up session")

	ports, err := sc.session.start(th.Protocol, th.ControlPort, th.TimingPort)
	if err != nil {
		sc.logger.WithError(err).Warn("unable to start session")
		return &base.Response{
			StatusCode: base.StatusInternalServerError,
		}, nil
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Transport": headers.Transport{
				Protocol:    th.Protocol,
				ControlPort: ports.control,
				TimingPort:  ports.timing,
				ServerPort:  ports.data,
			}.Marshal(),
			"Session":           base.HeaderValue{serverSessionID},
			"Audio-Jack-Status": base.HeaderValue{serverJackState},
		},
	}, nil
}

func (sc *ServerConn) handleRecord(_ *base.Request) (*base.Response, error) {
	latency := uint32(serverAudioLatency)
	if sc.session != nil && sc.session.latency != 0 {
		latency = sc.session.latency
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Audio-Latency": base.HeaderValue{strconv.FormatUint(uint64(latency), 10)},
		},
	}, nil
}

func (sc *ServerConn) handleFlush(req *base.Request) (*base.Response, error) {
	next := -1

	if v, ok := req.Header["RTP-Info"]; ok {
		var ri headers.RTPInfo
		err := ri.Unmarshal(v)
		if err == nil && ri.SequenceNumber != nil {
			next = int(*ri.SequenceNumber)
		}
	}

	if sc.session != nil {
		sc.session.Flush(next)
	} else {
		sc.logger.Warn("FLUSH received before ANNOUNCE")
	}

	return &base.Response{
		StatusCode: base.StatusOK,
	}, nil
}

func (sc *ServerConn) handleTeardown(_ *base.Request) (*base.Response, error) {
	if sc.session != nil {
		sc.session.close()
		sc.session = nil
	}

	return &base.Response{
		StatusCode: base.StatusOK,
		Header: base.Header{
			"Connection": base.HeaderValue{"close"},
		},
	}, liberrors.ErrServerTeardown{Author: sc.nconn.RemoteAddr().String()}
}

// text/parameters bodies are lists of lines.
func parameterLines(body []byte) []string {
	var ret []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			ret = append(ret, line)
		}
	}
	return ret
}

func (sc *ServerConn) handleGetParameter(req *base.Request) (*base.Response, error) {
	res := &base.Response{
		StatusCode: base.StatusOK,
	}

	if req.Header.Get("Content-Type") != "text/parameters" {
		return res, nil
	}

	var body []byte

	for _, line := range parameterLines(req.Body) {
		if strings.TrimSpace(line) == "volume" {
			volume := 0.0
			if sc.session != nil {
				volume = sc.session.Volume()
			}
			body = append(body, []byte("volume: "+strconv.FormatFloat(volume, 'f', 6, 64)+"\r\n")...)
		} else {
			sc.logger.WithField("parameter", line).Warn("unknown parameter")
		}
	}

	if body != nil {
		res.Header = base.Header{
			"Content-Type": base.HeaderValue{"text/parameters"},
		}
		res.Body = body
	}

	return res, nil
}

func parseProgress(v string) (uint32, uint32, uint32, error) {
	parts := strings.Split(strings.TrimSpace(v), "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid progress (%v)", v)
	}

	var vals [3]uint32
	for i, p := range parts {
		tmp, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid progress (%v)", v)
		}
		vals[i] = uint32(tmp)
	}

	return vals[0], vals[1], vals[2], nil
}

func (sc *ServerConn) setTextParameters(body []byte) {
	for _, line := range parameterLines(body) {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch strings.TrimSpace(key) {
		case "volume":
			v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				sc.logger.WithField("value", val).Warn("invalid volume")
				continue
			}
			sc.session.SetVolume(v)

		case "progress":
			start, curr, end, err := parseProgress(val)
			if err != nil {
				sc.logger.WithError(err).Warn("invalid progress")
				continue
			}
			sc.session.SetProgress(start, curr, end)

		default:
			sc.logger.WithField("parameter", key).Debug("unknown parameter")
		}
	}
}

func (sc *ServerConn) handleSetParameter(req *base.Request) (*base.Response, error) {
	res := &base.Response{
		StatusCode: base.StatusOK,
	}

	contentType := req.Header.Get("Content-Type")

	if sc.session == nil {
		sc.logger.WithField("content_type", contentType).Warn("SET_PARAMETER received before ANNOUNCE")
		return res, nil
	}

	switch contentType {
	case "text/parameters":
		sc.setTextParameters(req.Body)

	case "image/jpeg", "image/png":
		sc.logger.WithField("size", len(req.Body)).Debug("received cover art")
		sc.session.SetCoverArt(contentType, req.Body)

	case "application/x-dmap-tagged":
		sc.logger.WithField("size", len(req.Body)).Debug("received metadata")
		sc.session.SetMetadata(req.Body)
	}

	return res, nil
}
