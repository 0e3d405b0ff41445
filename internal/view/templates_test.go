package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err, "templates should parse without error")
	require.NotNil(t, engine)
}

func TestRenderLanding(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/landing.html", TemplateData{Title: "Koinonia"})
	require.NoError(t, err)
	require.Contains(t, rr.Body.String(), "Koinonia")
}
