package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONRecord(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "storefront", "debug")

	l.Action("cart_add").With("user_id", "u-1").Error("Failed to add item", errors.New("boom"), "product_id", 4)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "storefront", rec["service"])
	assert.Equal(t, "cart_add", rec["action"])
	assert.Equal(t, "u-1", rec["user_id"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.EqualValues(t, 4, rec["product_id"])
	assert.Contains(t, rec, "timestamp")
	assert.Equal(t, map[string]any{"msg": "boom"}, rec["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "storefront", "warn")
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestLogger_Group(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "storefront", "info").WithGroup("details").With("port", 8080).Info("server is running")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, map[string]any{"port": float64(8080)}, rec["details"])
}

func TestLogger_SetLevelReachesDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, "storefront", "warn")
	child := root.Action("cart_load").With("user_id", "u-1")

	child.Info("hidden")
	assert.Zero(t, buf.Len())

	root.SetLevel("debug")
	child.Debug("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
