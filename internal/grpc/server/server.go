// Package server поднимает gRPC-сервер со стандартным сервисом проверки
// состояния grpc.health.v1, который опрашивают оркестратор и балансировщик.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server gRPC-сервер с сервисом health.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	log        *slog.Logger
}

// New слушает addr и регистрирует сервис health. Пока не вызван SetServing,
// все сервисы отвечают NOT_SERVING.
func New(addr string, log *slog.Logger) (*Server, error) {
	const op = "grpc.server.New"
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	return &Server{
		grpcServer: grpcServer,
		health:     hs,
		listener:   lis,
		log:        log,
	}, nil
}

// Addr адрес, на котором слушает сервер.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// SetServing меняет статус сервиса; пустое имя задаёт статус процесса целиком.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Run обслуживает запросы до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gRPC health service listening on", slog.String("address", s.Addr()))
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
