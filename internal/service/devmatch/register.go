package devmatch

import (
	"google.golang.org/grpc"

	"github.com/oggyb/devmatch/internal/app"
)

// Registrar ties the DevMatch service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the DevMatch service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the DevMatch service implementation to the gRPC server
func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewService(r.appCtx))
}

// Drain stops the toast sequencers, which ends every open WatchToasts stream.
func (r *Registrar) Drain() {
	r.appCtx.Notifications.Close()
}
