package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	log := logrus.New()

	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"":        logrus.InfoLevel,
		"INFO":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"fatal":   logrus.FatalLevel,
	}

	for in, want := range tests {
		require.NoError(t, SetLevel(log, in), in)
		assert.Equal(t, want, log.GetLevel(), in)
	}

	assert.Error(t, SetLevel(log, "loud"))
}

func TestNew_AppendsToFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "filter.log")
	require.NoError(t, os.WriteFile(p, []byte("previous run\n"), 0644))

	log, closer, err := New(p, "info")
	require.NoError(t, err)

	log.Info("found 3 images")
	log.Debug("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(p)
	require.NoError(t, err)

	assert.Contains(t, string(data), "previous run\n")
	assert.Contains(t, string(data), "found 3 images")
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New("", "shout")
	assert.Error(t, err)
}
