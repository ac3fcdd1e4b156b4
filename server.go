// Package goraop is a RAOP (AirPlay audio) receiver library for the Go programming language.
package goraop

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bluenviron/goraop/pkg/decoder"
	"github.com/bluenviron/goraop/pkg/fairplay"
	"github.com/bluenviron/goraop/pkg/liberrors"
	"github.com/bluenviron/goraop/pkg/pairing"
	"github.com/bluenviron/goraop/pkg/rsakey"
)

// Server is a RAOP server.
type Server struct {
	//
	// RTSP parameters (all optional except Handler, HardwareAddr and PrivateKey)
	//
	// the RTSP server handler. It must implement
	// ServerHandlerOnAudioInit, ServerHandlerOnAudioProcess and ServerHandlerOnAudioDestroy.
	Handler ServerHandler
	// address of the RTSP listener. It defaults to ":5000".
	RTSPAddress string
	// hardware address of the receiver. It is used to sign challenges.
	HardwareAddr net.HardwareAddr
	// PEM-encoded RSA private key of the receiver.
	PrivateKey []byte
	// password. If empty, authentication is disabled.
	Password string
	// maximum number of connections. Zero means unlimited.
	MaxClients int
	// timeout of read operations.
	// It defaults to 10 seconds.
	ReadTimeout time.Duration
	// timeout of write operations.
	// It defaults to 10 seconds.
	WriteTimeout time.Duration
	// size of the kernel buffer of UDP sockets.
	// It defaults to 512 KiB.
	UDPReadBufferSize int

	//
	// pairing and decoding (all optional)
	//
	// long-term identity used by pair-setup and pair-verify.
	// It defaults to a random identity.
	Identity *pairing.Identity
	// function that allocates a FairPlay oracle for each connection.
	// If nil, FairPlay requests and FairPlay-encrypted keys are refused.
	FairPlay func() fairplay.Oracle
	// factory of AAC-ELD codecs.
	// If nil, AAC-ELD streams are refused.
	AACELDDecoder decoder.CodecFactory

	//
	// system functions (all optional)
	//
	// function used to initialize the TCP listener.
	// It defaults to net.Listen.
	Listen func(network string, address string) (net.Listener, error)
	// function used to initialize UDP listeners.
	// It defaults to net.ListenPacket.
	ListenPacket func(network, address string) (net.PacketConn, error)
	// logger. It defaults to the standard logrus logger.
	Logger logrus.FieldLogger

	//
	// private
	//

	ctx         context.Context
	ctxCancel   func()
	wg          sync.WaitGroup
	rsaKey      *rsakey.Key
	tcpListener *serverTCPListener
	conns       map[*ServerConn]struct{}
	closeError  error

	// in
	chNewConn   chan net.Conn
	chAcceptErr chan error
	chCloseConn chan *ServerConn
}

func (s *Server) checkHandler() error {
	if _, ok := s.Handler.(ServerHandlerOnAudioInit); !ok {
		return liberrors.ErrServerMissingCallback{Name: "OnAudioInit"}
	}
	if _, ok := s.Handler.(ServerHandlerOnAudioProcess); !ok {
		return liberrors.ErrServerMissingCallback{Name: "OnAudioProcess"}
	}
	if _, ok := s.Handler.(ServerHandlerOnAudioDestroy); !ok {
		return liberrors.ErrServerMissingCallback{Name: "OnAudioDestroy"}
	}
	return nil
}

// Start starts the server.
func (s *Server) Start() error {
	// RTSP parameters
	if s.RTSPAddress == "" {
		s.RTSPAddress = ":5000"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 10 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 10 * time.Second
	}
	if s.UDPReadBufferSize == 0 {
		s.UDPReadBufferSize = udpKernelReadBufferSize
	}

	// system functions
	if s.Listen == nil {
		s.Listen = net.Listen
	}
	if s.ListenPacket == nil {
		s.ListenPacket = net.ListenPacket
	}
	if s.Logger == nil {
		s.Logger = logrus.StandardLogger()
	}

	err := s.checkHandler()
	if err != nil {
		return err
	}

	if len(s.HardwareAddr) == 0 {
		return fmt.Errorf("hardware address not provided")
	}

	if len(s.PrivateKey) == 0 {
		return liberrors.ErrServerInvalidKey{Err: fmt.Errorf("key not provided")}
	}

	s.rsaKey, err = rsakey.New(s.PrivateKey)
	if err != nil {
		return liberrors.ErrServerInvalidKey{Err: err}
	}

	if s.Identity == nil {
		s.Identity, err = pairing.NewIdentity()
		if err != nil {
			return err
		}
	}

	s.ctx, s.ctxCancel = context.WithCancel(context.Background())

	s.conns = make(map[*ServerConn]struct{})
	s.chNewConn = make(chan net.Conn)
	s.chAcceptErr = make(chan error)
	s.chCloseConn = make(chan *ServerConn)

	s.tcpListener = &serverTCPListener{
		s: s,
	}
	err = s.tcpListener.initialize()
	if err != nil {
		s.ctxCancel()
		return err
	}

	s.Logger.WithField("address", s.tcpListener.ln.Addr().String()).Info("listener opened")

	s.wg.Add(1)
	go s.run()

	return nil
}

// StartAndWait starts the server and waits until a fatal error.
func (s *Server) StartAndWait() error {
	err := s.Start()
	if err != nil {
		return err
	}

	return s.Wait()
}

// Close closes all the server resources and waits for them to close.
func (s *Server) Close() {
	s.ctxCancel()
	s.wg.Wait()
}

// Wait waits until all server resources are closed.
// This can happen when a fatal error occurs or when Close() is called.
func (s *Server) Wait() error {
	s.wg.Wait()
	return s.closeError
}

// Port returns the port of the RTSP listener.
func (s *Server) Port() int {
	return s.tcpListener.port()
}

func (s *Server) run() {
	defer s.wg.Done()

	s.closeError = s.runInner()

	s.ctxCancel()

	s.tcpListener.close()
}

func (s *Server) runInner() error {
	for {
		select {
		case err := <-s.chAcceptErr:
			return err

		case nconn := <-s.chNewConn:
			if s.MaxClients > 0 && len(s.conns) >= s.MaxClients {
				s.Logger.WithField("remote", nconn.RemoteAddr().String()).
					Warn(liberrors.ErrServerMaxClients{}.Error())
				nconn.Close()
				continue
			}

			sc := &ServerConn{
				s:     s,
				nconn: nconn,
			}
			sc.initialize()
			s.conns[sc] = struct{}{}

		case sc := <-s.chCloseConn:
			delete(s.conns, sc)

		case <-s.ctx.Done():
			return liberrors.ErrServerTerminated{}
		}
	}
}

func (s *Server) newConn(nconn net.Conn) {
	select {
	case s.chNewConn <- nconn:
	case <-s.ctx.Done():
		nconn.Close()
	}
}

func (s *Server) acceptErr(err error) {
	select {
	case s.chAcceptErr <- err:
	case <-s.ctx.Done():
	}
}

func (s *Server) closeConn(sc *ServerConn) {
	select {
	case s.chCloseConn <- sc:
	case <-s.ctx.Done():
	}
}
