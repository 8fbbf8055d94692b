// Package querystream is an asynchronous client for a remote query engine
// with change-feed support.
//
// The module is organized around a small set of packages:
//
//   - driver: connections, cursors, handlers, dispatchers, and sessions.
//     This is the package applications import.
//   - wire: the frame format, query/response encoding, and change-row
//     classification primitives.
//   - transport: pluggable frame transports over TCP, WebSocket, and NATS,
//     with optional TLS.
//   - config: YAML configuration with environment overrides.
//   - errors: classified error types shared across the module.
//   - metric: Prometheus instrumentation for connections and cursors.
//   - pkg/executor: the bounded worker pool behind the pool dispatcher.
//   - pkg/retry: backoff policies for reconnects.
//
// A minimal consumer:
//
//	conn, err := driver.ConnectTCP("localhost:28015", 5*time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	pool := executor.NewPool(8, 1024)
//	_ = pool.Start(context.Background())
//	dispatcher := driver.NewPoolDispatcher(pool, slog.Default())
//
//	cursor, err := conn.RunAsync(query, nil, &driver.Handler{
//		OnChange: func(oldVal, newVal json.RawMessage) error {
//			fmt.Printf("%s -> %s\n", oldVal, newVal)
//			return nil
//		},
//		OnError: func(err error) { log.Println(err) },
//	}, dispatcher)
//
// Cursors deliver their callbacks through a Dispatcher and guarantee that
// OnClose fires exactly once no matter how the query ends. See the driver
// package documentation for the delivery and lifecycle rules.
package querystream
