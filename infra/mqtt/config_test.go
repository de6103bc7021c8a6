package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateCert writes a self-signed certificate, its key and a CA bundle.
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o600))
	return certFile, keyFile, caFile
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptions(t *testing.T) {
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"}
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "or/status", opts.WillTopic)
	assert.Equal(t, "offline", string(opts.WillPayload))
	assert.True(t, opts.WillRetained)
}

func TestConfigDefaultsAndTopics(t *testing.T) {
	cfg := Config{Broker: "tcp://broker:1883", TopicPrefix: "hospital/or/"}
	cfg.SetDefaults()
	assert.Equal(t, "hospital/or/events/+", cfg.EventTopic())
	assert.Equal(t, "hospital/or/schedule", cfg.ScheduleTopic())
	assert.Equal(t, "hospital/or/schedule/rejected", cfg.RejectedTopic())
	assert.Contains(t, cfg.ClientID, "orplan-")
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, byte(1), cfg.qos(QoSEvents))
	assert.NoError(t, cfg.Validate())

	cfg.QoS = map[string]byte{QoSEvents: 0}
	assert.Equal(t, byte(0), cfg.qos(QoSEvents))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{Broker: "tcp://b", AuthMethod: "kerberos"}.Validate())
	assert.Error(t, Config{Broker: "tcp://b", QoS: map[string]byte{QoSSchedule: 3}}.Validate())
}
