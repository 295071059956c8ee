// Package dispatch implements the channel worker: it consumes one channel
// queue and drives every delivery through a small lifecycle.
//
//	RECEIVED --decoded-->    PROCESSING
//	RECEIVED --malformed-->  REJECTED        (reject, routed to dead-letter by the queue)
//	PROCESSING --skip-->      SKIPPED        (channel disabled for the user; ack, status untouched)
//	PROCESSING --delivered--> SENT           (status sent; ack)
//	PROCESSING --exhausted--> DEAD_LETTERED  (dead-letter deposit; status failed; ack)
//	PROCESSING --requeue-->   REQUEUED       (republish a copy; ack; status untouched)
//
// Provider calls are composed as breaker.Guard(retry.Wrap(send)). An open
// breaker and any unclassified error requeue the message. Requeues are
// unbounded unless WithMaxRedeliveries is set, in which case the message is
// dead-lettered once its redelivery counter reaches the bound.
//
// A worker handles one delivery at a time. Stop, or cancelling the Run
// context, ends the loop after the in-flight delivery settles.
package dispatch
