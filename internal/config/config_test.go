package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
is_debug: true
listen:
  port: "9000"
ocpp:
  call_timeout: 5s
charge_point:
  id: CP7
  preparing_delay: 100ms
telegram:
  chat_ids: [11, 22]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	conf := &Config{}
	require.NoError(t, cleanenv.ReadConfig(path, conf))

	assert.True(t, conf.IsDebug)
	assert.Equal(t, "9000", conf.Listen.Port)
	assert.Equal(t, "0.0.0.0", conf.Listen.BindIP)
	assert.Equal(t, 5*time.Second, conf.Ocpp.CallTimeout)
	assert.Equal(t, 10*time.Second, conf.Ocpp.HeartbeatInterval)
	assert.Equal(t, "CP7", conf.ChargePoint.Id)
	assert.Equal(t, 100*time.Millisecond, conf.ChargePoint.PreparingDelay)
	assert.Equal(t, 2*time.Second, conf.ChargePoint.FinishingDelay)
	assert.Equal(t, []int64{11, 22}, conf.Telegram.ChatIds)
}

func TestGetConfigDefaults(t *testing.T) {
	conf, err := GetConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", conf.Listen.Port)
	assert.Equal(t, 1, conf.ChargePoint.ConnectorId)
	assert.Equal(t, 11000, conf.ChargePoint.ChargingPower)
}
