// Package responder implements the peer that answers discovery probes.
//
// A responder binds the broadcast port (20086 by default) on all
// interfaces. Every datagram that decodes as a protocol.Query is answered
// with a protocol.Announcement, unicast to the sender's IP at the query's
// reply port. The announcement echoes the query's probe id so the prober
// can tell it apart from answers to older probes.
//
// # Usage Example
//
//	r := responder.New(responder.Config{
//	    Component:     protocol.ComponentMachine,
//	    ComponentID:   1,
//	    Hostname:      "node-a",
//	    AdvertiseMDNS: true,
//	})
//
//	// Run blocks until ctx is cancelled
//	if err := r.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Filtering
//
// With MatchUID set, queries from other users are counted and ignored. This
// is how several users share one subnet without seeing each other's
// components. Datagrams that are not queries, and queries without a reply
// port, are dropped.
//
// # Logging
//
//   - debug: hex dumps of every datagram, dropped and ignored queries
//   - info: listening address, each answered query, shutdown counters
//   - warn: read and send failures
//
// # Shutdown
//
// Serve runs the receive loop and, when enabled, the mDNS advertisement in
// one errgroup. Cancelling ctx stops both; the receive loop notices within
// PollInterval. The socket is closed before Serve returns.
package responder
