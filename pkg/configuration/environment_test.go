package configuration

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoad_ConsoleLoggerWithoutLogPath(t *testing.T) {
	t.Setenv("LOG_PATH", "")

	c := &Configuration{}
	require.NoError(t, c.load(nil))
	t.Cleanup(c.Unload)

	require.NotNil(t, c.Logger())
	require.Nil(t, c.logFile)
}

func TestLoad_FileLoggerWithLogPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	t.Setenv("LOG_PATH", path)

	c := &Configuration{}
	require.NoError(t, c.load(nil))
	t.Cleanup(c.Unload)

	require.NotNil(t, c.Logger())
	require.FileExists(t, path)
}

func TestLogrusLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"silent": logrus.PanicLevel,
		"error":  logrus.ErrorLevel,
		"warn":   logrus.WarnLevel,
		"info":   logrus.InfoLevel,
		"debug":  logrus.DebugLevel,
		"bogus":  logrus.ErrorLevel,
	}
	for in, want := range cases {
		c := &Configuration{LogLevel: in}
		require.Equal(t, want, c.LogrusLogLevel(), "level=%s", in)
	}
}
