package goraop

import (
	"time"
)

type serverConnReader struct {
	sc *ServerConn

	chReadDone chan struct{}
}

func (cr *serverConnReader) initialize() {
	cr.chReadDone = make(chan struct{})

	go cr.run()
}

func (cr *serverConnReader) wait() {
	<-cr.chReadDone
}

func (cr *serverConnReader) run() {
	defer close(cr.chReadDone)

	err := cr.readFuncStandard()
	cr.sc.readError(err)
}

func (cr *serverConnReader) readFuncStandard() error {
	for {
		// connections can stay idle while audio flows through the session sockets
		cr.sc.nconn.SetReadDeadline(time.Time{})

		err := cr.sc.conn.Peek()
		if err != nil {
			return err
		}

		cr.sc.nconn.SetReadDeadline(time.Now().Add(cr.sc.s.ReadTimeout))

		req, err := cr.sc.conn.ReadRequest()
		if err != nil {
			return err
		}

		err = cr.sc.readRequest(readReq{req: req, res: make(chan error)})
		if err != nil {
			return err
		}
	}
}
