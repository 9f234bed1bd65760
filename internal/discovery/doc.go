// Package discovery finds a peer on the local subnet by UDP broadcast.
//
// An Endpoint owns two sockets. The listener is bound to a well-known port and
// receives replies. The sender has SO_BROADCAST set and fires one discovery
// datagram at the subnet broadcast address.
//
// # Usage Example
//
//	ep, err := discovery.New(discovery.DefaultConfig(),
//	    discovery.WithDispatcher(loop))
//	if discovery.IsFatal(err) {
//	    return err
//	}
//	defer ep.Close()
//
//	res, err := discovery.NewProber(ep, protocol.ComponentBots, uid, user).Probe()
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Announcement)
//
// # Construction
//
// New binds the listener to 0.0.0.0:BindPort, retrying up to BindAttempts
// times with BindRetryDelay between attempts. Running out of attempts is not
// fatal: New returns a *BindError and the endpoint stays unbound. A socket
// that cannot be opened, or a sender that refuses broadcast mode, is fatal.
//
// # Receiving
//
// ReceiveReply is a small state machine:
//
//	WAIT --data--> READ --ok--> DONE
//	  |  \                \
//	  |   timeout (<= max) read error
//	  |     back to WAIT    back to WAIT (not counted)
//	  |
//	  +--timeout (> max)--> FAILED (*FatalError)
//	  +--wait error-------> FAILED (*ReceiveError)
//
// With the defaults a call blocks for at most 16 x 10s.
//
// # Fatal Errors
//
// Fatal failures are returned as *FatalError; IsFatal reports them. When a
// Dispatcher is registered it is also told to BreakProcessing, once per
// failure, so a main loop owned elsewhere can stop.
//
// # Thread Safety
//
// An Endpoint is driven by one goroutine. ReceiveReply returns ErrReceiveBusy
// instead of sharing its buffer with a concurrent call.
package discovery
