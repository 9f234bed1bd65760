// Package netsock is a thin IPv4 UDP socket primitive.
//
// UDPSocket separates waiting for a datagram from reading it, so a caller can
// run its own timeout policy around a blocking wait and treat read failures
// differently from "nothing arrived":
//
//	sock, err := netsock.Open()
//	if err != nil {
//	    return err
//	}
//	defer sock.Close()
//
//	if err := sock.Bind(netsock.Wildcard(20088)); err != nil {
//	    return err
//	}
//	switch err := sock.Wait(10 * time.Second); {
//	case errors.Is(err, netsock.ErrTimeout):
//	    // nobody answered
//	case err != nil:
//	    return err
//	}
//	n, from, err := sock.RecvFrom(buf)
//
// On unix systems the socket is a raw non-blocking descriptor and Wait polls
// it. Elsewhere it falls back to the net package, and Wait holds the datagram
// it had to read until the next RecvFrom.
//
// Open always returns a non-nil socket. When it fails the socket reports
// Valid() == false, and every operation returns ErrClosed.
package netsock
