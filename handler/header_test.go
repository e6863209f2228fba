package handler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassengerHeaderWithoutMarker(t *testing.T) {
	h := newHeaderSource("", nil)
	defer h.close()
	assert.Equal(t, baseHeader, h.header())
}

func TestPassengerHeaderWithMarkerPresentAtConstruction(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "enterprise.marker")
	require.NoError(t, os.WriteFile(marker, nil, 0600))

	h := newHeaderSource(marker, newDiagLogger(""))
	defer h.close()
	assert.Equal(t, baseHeader+enterpriseSuffix, h.header())
}

func TestPassengerHeaderWatchesMarkerCreation(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "enterprise.marker")

	h := newHeaderSource(marker, newDiagLogger(""))
	defer h.close()
	assert.Equal(t, baseHeader, h.header())

	require.NoError(t, os.WriteFile(marker, nil, 0600))
	assert.Eventually(t, func() bool {
		return h.header() == baseHeader+enterpriseSuffix
	}, time.Second, 10*time.Millisecond)
}
