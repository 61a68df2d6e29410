package client

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
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

	"github.com/otherjamesbrown/vidtwin-cli/config"
)

// writeSelfSigned writes a self-signed cert and key into dir and returns their paths.
func writeSelfSigned(t *testing.T, dir, name string) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "vidtwin-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath := filepath.Join(dir, name+".crt")
	keyPath := filepath.Join(dir, name+".key")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certPath, keyPath
}

func TestLoadClientTLSConfig_Disabled(t *testing.T) {
	tlsCfg, err := LoadClientTLSConfig(&config.TLSConfig{})
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

func TestLoadClientTLSConfig_CAOnly(t *testing.T) {
	dir := t.TempDir()
	caPath, _ := writeSelfSigned(t, dir, "ca")

	tlsCfg, err := LoadClientTLSConfig(&config.TLSConfig{Enabled: true, CACert: caPath})
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.NotNil(t, tlsCfg.RootCAs)
	assert.Empty(t, tlsCfg.Certificates)
}

func TestLoadClientTLSConfig_MutualTLSFromCertDir(t *testing.T) {
	dir := t.TempDir()
	writeSelfSigned(t, dir, "ca")
	writeSelfSigned(t, dir, "client")

	tlsCfg, err := LoadClientTLSConfig(&config.TLSConfig{Enabled: true, CertDir: dir})
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.NotNil(t, tlsCfg.RootCAs)
}

func TestLoadClientTLSConfig_InvalidCA(t *testing.T) {
	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(caPath, []byte("not pem"), 0600))

	_, err := LoadClientTLSConfig(&config.TLSConfig{Enabled: true, CACert: caPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PEM")
}

func TestCheckCertsExist_KeyWithoutCert(t *testing.T) {
	err := CheckCertsExist(&config.TLSConfig{ClientKey: "/tmp/client.key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured together")
}

func TestCheckCertsExist_Missing(t *testing.T) {
	err := CheckCertsExist(&config.TLSConfig{CACert: filepath.Join(t.TempDir(), "absent.crt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CA certificate not found")
}
