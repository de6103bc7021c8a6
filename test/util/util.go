// Package util holds helpers shared by the container and end-to-end tests:
// a disposable Mosquitto broker, a free TCP address and a Prometheus
// scrape poller.
package util

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// Broker is a Mosquitto container reachable at URL.
type Broker struct {
	URL       string
	container tc.Container
}

// Close terminates the container.
func (b *Broker) Close() {
	if b.container != nil {
		_ = b.container.Terminate(context.Background())
	}
}

// StartMosquitto runs eclipse-mosquitto with anonymous access and waits until
// an MQTT client can connect to it.
func StartMosquitto(ctx context.Context) (*Broker, error) {
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConf),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return nil, err
	}
	b := &Broker{container: cont}
	host, err := cont.Host(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		b.Close()
		return nil, err
	}
	b.URL = fmt.Sprintf("tcp://%s:%s", host, port.Port())

	readyCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := probeBroker(readyCtx, b.URL); err != nil {
		b.Close()
		return nil, fmt.Errorf("mosquitto not ready: %w", err)
	}
	return b, nil
}

func probeBroker(ctx context.Context, url string) error {
	opts := paho.NewClientOptions().AddBroker(url).SetClientID("probe-" + uuid.NewString()[:8])
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// FreeAddr returns a loopback address with a port nothing listens on.
func FreeAddr(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// WaitForMetric scrapes metricsURL until the exposition contains substr or
// ctx is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		body, err := scrape(ctx, metricsURL)
		if err == nil && strings.Contains(body, substr) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}
