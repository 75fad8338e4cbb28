/*
Package itip implements the receiving side of iTIP (RFC 5546): it decides how
to answer an inbound scheduling message, stores its items in the target
calendar and submits the answer through a transport.

# Basic Usage

	msg, err := itip.ParseMessage(r)
	if err != nil {
		return err
	}
	msg.TargetCalendar = mo.Some[itip.Store](store)
	msg.Identity = "alice@example.com"

	dispatcher, err := itip.NewDispatcher(emailTransport, logger)
	if err != nil {
		return err
	}
	proc, err := itip.NewProcessor(dispatcher, logger)
	if err != nil {
		return err
	}
	err = proc.Process(ctx, msg, itip.ListenerFunc(func(c itip.Completion) {
		logger.Info("completed", "kind", c.Kind, "uid", c.ItemID, "error", c.Err)
	}))

# Methods

The response method is derived from the received method:

	REQUEST                                 -> REPLY
	REFRESH, COUNTER                        -> REQUEST
	PUBLISH, REPLY, ADD, CANCEL, DECLINECOUNTER -> same method

Only REQUEST and PUBLISH are processed. The other methods are rejected with
ErrNotImplemented, and so is every delete.

# Stores

A Store answers lookups through a channel so the processor can wait on it
without blocking the store. Stores that know which attendee represents their
owner expose it through SchedulingSupport; otherwise the message's Identity
is matched against the attendee list using the transport's scheme.
*/
package itip
