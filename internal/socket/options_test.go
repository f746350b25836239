package socket

import (
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonServerDisconnect, classify(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.Equal(t, ReasonServerDisconnect, classify(&websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.Equal(t, ReasonTransportClose, classify(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}))
	assert.Equal(t, ReasonTransportClose, classify(io.EOF))
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 25*time.Second, o.Heartbeat)
	assert.Equal(t, 5, o.ReconnectAttempts)
	assert.Equal(t, time.Second, o.ReconnectDelay)
	assert.Equal(t, 5*time.Second, o.ReconnectMax)
	assert.Equal(t, 50, o.QueueCap)
	assert.Equal(t, o.Heartbeat, o.StableAfter)
	assert.Equal(t, 10*time.Second, o.WriteTimeout)
	assert.NotEmpty(t, o.Client.ID)
}
