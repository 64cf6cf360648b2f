package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

// startContainer runs image and returns host:port for the exposed port.
func startContainer(t *testing.T, ctx context.Context, image, port string, env map[string]string, waitFor wait.Strategy) (string, func()) {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        image,
			Env:          env,
			ExposedPorts: []string{port},
			WaitingFor:   waitFor,
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", image, err)
	}
	cleanup := func() { _ = container.Terminate(ctx) }
	host, err := container.Host(ctx)
	if err != nil {
		cleanup()
		t.Fatalf("%s host: %v", image, err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		cleanup()
		t.Fatalf("%s port: %v", image, err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), cleanup
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	addr, cleanup := startContainer(t, ctx, "postgres:15-alpine", "5432/tcp",
		map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second))
	return "postgres://quiz:quizpass@" + addr + "/quizdb?sslmode=disable", cleanup
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	return startContainer(t, ctx, "redis:7-alpine", "6379/tcp", nil,
		wait.ForListeningPort("6379/tcp").WithStartupTimeout(30*time.Second))
}

func startRabbit(t *testing.T, ctx context.Context) (string, func()) {
	addr, cleanup := startContainer(t, ctx, "rabbitmq:3-alpine", "5672/tcp", nil,
		wait.ForLog("Server startup complete").WithStartupTimeout(90*time.Second))
	return "amqp://guest:guest@" + addr + "/", cleanup
}
