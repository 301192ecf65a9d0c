// Package client talks to the server over raw TCP and generates load.
//
// Do writes a request verbatim, half-closes the connection and reads until
// the server closes it; ParseResponse splits the result into status code,
// reason and body. Get is the common GET shortcut.
//
// # Load generation
//
// Client runs Concurrency request loops on its own worker.Pool and records
// every response in a metrics.Metrics.
//
//	config := client.DefaultConfig()
//	config.Addr = "127.0.0.1:8082"
//	config.Paths = []string{"/", "/index.html"}
//	cl, err := client.New(config)
//
//	// Run for a duration
//	snap := cl.RunFor(ctx, 10*time.Second)
//	fmt.Printf("Total: %d, RPS: %.2f\n", snap.TotalRequests, snap.RPS)
//
//	// Or run a fixed number of requests
//	snap := cl.RunRequests(ctx, 10000)
//
// A Client is single-use: once stopped it cannot be started again.
package client
