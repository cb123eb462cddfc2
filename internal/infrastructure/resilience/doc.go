/*
Package resilience provides a circuit breaker for calls to a remote snippet
service.

A breaker moves between three states:

	Closed --[ReadyToTrip]--> Open --[Timeout]--> Half-Open --[MaxRequests successes]--> Closed
	                                                  |
	                                              [failure]
	                                                  v
	                                                 Open

Counts belong to a generation. A generation ends on every state change and,
while closed, every Interval; outcomes reported for an ended generation are
ignored.

IsSuccessful decides which errors count against the remote side. The jsrun
client uses it so that a snippet that throws, or a request the server
rejects as malformed, never opens the circuit.

	b := resilience.New("jsrun", resilience.Settings{
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 5 },
	})
	res, err := resilience.Execute(b, func() (*Response, error) { return call(ctx) })
*/
package resilience
