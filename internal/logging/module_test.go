package logging

import (
	"os"
	"path/filepath"
	"testing"

	"pos_console/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestModuleDecoratesOtherModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(zap.NewNop()),
		fx.Supply(config.Config{LogFile: path}),
		Module(),
		fx.Module("posapi",
			fx.Invoke(func(l *zap.Logger) { l.Named("posapi").Info("request sent") }),
		),
		fx.Invoke(func(l *zap.Logger) { l.Info("console started") }),
	)
	app.RequireStart()
	app.RequireStop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"request sent"`)
	assert.Contains(t, out, `"logger":"posapi"`)
	assert.Contains(t, out, `"msg":"console started"`)
}

func TestModuleWithoutLogFile(t *testing.T) {
	var got *zap.Logger
	base := zap.NewNop()

	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(base),
		fx.Supply(config.Config{}),
		Module(),
		fx.Populate(&got),
	)
	app.RequireStart()
	app.RequireStop()

	assert.Same(t, base, got)
}
