package server

import "google.golang.org/grpc"

// Registrar attaches one service to a gRPC server. Services accept the
// grpc.ServiceRegistrar interface so tests can register them anywhere.
type Registrar interface {
	Register(s grpc.ServiceRegistrar)
}

// Drainer is implemented by registrars whose services hold long-lived
// streams. Drain runs before GracefulStop so those streams can end.
type Drainer interface {
	Drain()
}
