package goraop

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bluenviron/goraop/pkg/auth"
	"github.com/bluenviron/goraop/pkg/base"
	"github.com/bluenviron/goraop/pkg/bytecounter"
	"github.com/bluenviron/goraop/pkg/conn"
	"github.com/bluenviron/goraop/pkg/fairplay"
	"github.com/bluenviron/goraop/pkg/liberrors"
	"github.com/bluenviron/goraop/pkg/pairing"
)

var generateNonce = auth.GenerateNonce

type readReq struct {
	req *base.Request
	res chan error
}

// ServerConn is a server-side RTSP connection.
type ServerConn struct {
	s     *Server
	nconn net.Conn

	ctx        context.Context
	ctxCancel  func()
	id         uuid.UUID
	logger     logrus.FieldLogger
	userData   interface{}
	remoteAddr *net.TCPAddr
	localAddr  *net.TCPAddr
	bc         *bytecounter.Conn
	conn       *conn.Conn
	nonce      string
	nonceErr   error
	pairing    *pairing.Session
	fairPlay   *fairplay.Session
	session    *ServerSession

	// in
	chRequest   chan readReq
	chReadError chan error

	// out
	done chan struct{}
}

func (sc *ServerConn) initialize() {
	ctx, ctxCancel := context.WithCancel(sc.s.ctx)

	sc.ctx = ctx
	sc.ctxCancel = ctxCancel
	sc.id = uuid.New()
	sc.remoteAddr, _ = sc.nconn.RemoteAddr().(*net.TCPAddr)
	sc.localAddr, _ = sc.nconn.LocalAddr().(*net.TCPAddr)
	sc.logger = sc.s.Logger.WithFields(logrus.Fields{
		"conn":   sc.id.String(),
		"remote": sc.nconn.RemoteAddr().String(),
	})
	sc.bc = bytecounter.New(sc.nconn)
	sc.conn = conn.NewConn(sc.bc)
	sc.pairing = &pairing.Session{Identity: sc.s.Identity}
	if sc.s.FairPlay != nil {
		sc.fairPlay = &fairplay.Session{Oracle: sc.s.FairPlay()}
	}
	sc.chRequest = make(chan readReq)
	sc.chReadError = make(chan error)
	sc.done = make(chan struct{})

	// the nonce is used by all the challenges of the connection
	var err error
	sc.nonce, err = generateNonce()
	if err != nil {
		sc.nonceErr = fmt.Errorf("unable to generate nonce: %w", err)
	}

	sc.s.wg.Add(1)
	go sc.run()
}

// Close closes the ServerConn.
func (sc *ServerConn) Close() {
	sc.ctxCancel()
}

// NetConn returns the underlying net.Conn.
func (sc *ServerConn) NetConn() net.Conn {
	return sc.nconn
}

// Stats returns connection statistics.
func (sc *ServerConn) Stats() *ConnStats {
	return &ConnStats{
		BytesReceived: sc.bc.BytesReceived(),
		BytesSent:     sc.bc.BytesSent(),
	}
}

// ID returns the connection ID.
func (sc *ServerConn) ID() uuid.UUID {
	return sc.id
}

// Nonce returns the nonce used in authentication challenges.
func (sc *ServerConn) Nonce() string {
	return sc.nonce
}

// SetUserData sets some user data associated with the connection.
func (sc *ServerConn) SetUserData(v interface{}) {
	sc.userData = v
}

// UserData returns some user data associated with the connection.
func (sc *ServerConn) UserData() interface{} {
	return sc.userData
}

func (sc *ServerConn) localIP() net.IP {
	if sc.localAddr == nil {
		return net.IPv4zero
	}
	return sc.localAddr.IP
}

func (sc *ServerConn) remoteIP() net.IP {
	if sc.remoteAddr == nil {
		return net.IPv4(127, 0, 0, 1)
	}
	return sc.remoteAddr.IP
}

func (sc *ServerConn) run() {
	defer sc.s.wg.Done()
	defer close(sc.done)

	sc.logger.Info("connection opened")

	if h, ok := sc.s.Handler.(ServerHandlerOnConnOpen); ok {
		h.OnConnOpen(&ServerHandlerOnConnOpenCtx{
			Conn: sc,
		})
	}

	reader := &serverConnReader{
		sc: sc,
	}
	reader.initialize()

	err := sc.runInner()

	sc.ctxCancel()

	sc.nconn.Close()

	reader.wait()

	if sc.session != nil {
		sc.session.close()
		sc.session = nil
	}

	if sc.fairPlay != nil {
		sc.fairPlay.Close()
	}

	sc.s.closeConn(sc)

	sc.logger.WithError(err).Info("connection closed")

	if h, ok := sc.s.Handler.(ServerHandlerOnConnClose); ok {
		h.OnConnClose(&ServerHandlerOnConnCloseCtx{
			Conn:  sc,
			Error: err,
		})
	}
}

func (sc *ServerConn) runInner() error {
	if sc.nonceErr != nil {
		return sc.nonceErr
	}

	for {
		select {
		case req := <-sc.chRequest:
			req.res <- sc.handleRequestOuter(req.req)

		case err := <-sc.chReadError:
			return err

		case <-sc.ctx.Done():
			return liberrors.ErrServerTerminated{}
		}
	}
}

func (sc *ServerConn) readRequest(req readReq) error {
	select {
	case sc.chRequest <- req:
		return <-req.res

	case <-sc.ctx.Done():
		return liberrors.ErrServerTerminated{}
	}
}

func (sc *ServerConn) readError(err error) {
	select {
	case sc.chReadError <- err:
	case <-sc.ctx.Done():
	}
}

func (sc *ServerConn) authorized(req *base.Request) bool {
	if req.Method == base.Options || sc.s.Password == "" {
		return true
	}

	err := auth.Validate(req, sc.s.Password, serverAuthRealm, sc.nonce)
	if err != nil {
		sc.logger.WithError(err).Debug("authentication failed")
		return false
	}

	return true
}

func (sc *ServerConn) handleRequestInner(req *base.Request) (*base.Response, error) {
	if cseq, ok := req.Header["CSeq"]; !ok || len(cseq) != 1 {
		return &base.Response{
			StatusCode: base.StatusBadRequest,
		}, liberrors.ErrServerCSeqMissing{}
	}

	if !sc.authorized(req) {
		return &base.Response{
			StatusCode: base.StatusUnauthorized,
			Header: base.Header{
				"WWW-Authenticate": auth.GenerateWWWAuthenticate(serverAuthRealm, sc.nonce),
			},
		}, nil
	}

	res, err := sc.dispatch(req)

	if challenge := req.Header.Get("Apple-Challenge"); challenge != "" {
		sig, err2 := sc.s.rsaKey.Sign(challenge, sc.localIP(), sc.s.HardwareAddr)
		if err2 != nil {
			sc.logger.WithError(err2).Debug("unable to sign challenge")
		} else {
			if res.Header == nil {
				res.Header = make(base.Header)
			}
			res.Header["Apple-Response"] = base.HeaderValue{sig}
		}
	}

	return res, err
}

func (sc *ServerConn) dispatch(req *base.Request) (*base.Response, error) {
	sc.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL,
	}).Debug("request")

	switch req.Method {
	case base.Options:
		return sc.handleOptions(req)

	case base.Post:
		switch requestPath(req.URL) {
		case "/pair-setup":
			return sc.handlePairSetup(req)

		case "/pair-verify":
			return sc.handlePairVerify(req)

		case "/fp-setup":
			return sc.handleFPSetup(req)
		}

	case base.Announce:
		return sc.handleAnnounce(req)

	case base.Setup:
		return sc.handleSetup(req)

	case base.Record:
		return sc.handleRecord(req)

	case base.Flush:
		return sc.handleFlush(req)

	case base.Pause:
		return &base.Response{
			StatusCode: base.StatusOK,
		}, nil

	case base.Teardown:
		return sc.handleTeardown(req)

	case base.GetParameter:
		return sc.handleGetParameter(req)

	case base.SetParameter:
		return sc.handleSetParameter(req)
	}

	sc.logger.Debug(liberrors.ErrServerUnhandledRequest{Method: string(req.Method), Path: req.URL}.Error())

	return &base.Response{
		StatusCode: base.StatusNotImplemented,
	}, nil
}

func (sc *ServerConn) handleRequestOuter(req *base.Request) error {
	if h, ok := sc.s.Handler.(ServerHandlerOnRequest); ok {
		h.OnRequest(sc, req)
	}

	res, err := sc.handleRequestInner(req)

	if res.Header == nil {
		res.Header = make(base.Header)
	}

	var eerr liberrors.ErrServerCSeqMissing
	if !errors.As(err, &eerr) {
		res.Header["CSeq"] = req.Header["CSeq"]
	}

	res.Header["Server"] = base.HeaderValue{serverHeader}
	res.Header["Apple-Jack-Status"] = base.HeaderValue{serverJackState}

	if h, ok := sc.s.Handler.(ServerHandlerOnResponse); ok {
		h.OnResponse(sc, res)
	}

	sc.nconn.SetWriteDeadline(time.Now().Add(sc.s.WriteTimeout))
	err2 := sc.conn.WriteResponse(res)
	if err == nil && err2 != nil {
		err = err2
	}

	return err
}
