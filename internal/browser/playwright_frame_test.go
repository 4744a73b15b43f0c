package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFrame struct{ playwright.Frame }

type stubHandle struct {
	playwright.ElementHandle
	frame playwright.Frame
}

func (h stubHandle) ContentFrame() (playwright.Frame, error) { return h.frame, nil }

func TestFrameFromHandle_InheritsTimeout(t *testing.T) {
	page, err := frameFromHandle(stubHandle{frame: stubFrame{}}, nil, 7*time.Second)
	require.NoError(t, err)

	frame, ok := page.(*playwrightFrame)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, frame.timeout)
}

func TestFrameFromHandle_Missing(t *testing.T) {
	_, err := frameFromHandle(nil, nil, time.Second)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = frameFromHandle(stubHandle{}, nil, time.Second)
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("detached")
	_, err = frameFromHandle(nil, boom, time.Second)
	assert.ErrorIs(t, err, boom)
}
