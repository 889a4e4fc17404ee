package httpserver

import "time"

// ShutdownTimeout bounds how long in-flight uploads and streams may drain on shutdown.
var ShutdownTimeout = 30 * time.Second
