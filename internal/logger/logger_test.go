package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProdLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "prod", "debug")
	log.WithField("ticket_id", 7).Info("confirmed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "confirmed", line["msg"])
	assert.Equal(t, float64(7), line["ticket_id"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput(&buf, "dev", "loud")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	log.Debug("hidden")
	assert.Empty(t, buf.String())
}
