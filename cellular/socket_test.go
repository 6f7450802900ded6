package cellular

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSocket(t *testing.T) {
	c, _ := setupContext(t, nil)
	s, err := c.CreateSocket(1)
	require.Nil(t, err)
	assert.Equal(t, SocketAllocated, s.State())
	assert.Equal(t, 1, s.PDNContextID())
	assert.True(t, c.IsValidSocket(s.ID()))
	assert.Equal(t, s, c.SocketByID(s.ID()))
}

func TestCreateSocketBadPDN(t *testing.T) {
	c, _ := setupContext(t, nil)
	_, err := c.CreateSocket(PDNContextIDMin - 1)
	assert.Equal(t, StatusBadParameter, errCause(err))
	_, err = c.CreateSocket(PDNContextIDMax + 1)
	assert.Equal(t, StatusBadParameter, errCause(err))
}

func TestSocketTableExhaustion(t *testing.T) {
	c, _ := setupContext(t, nil)
	var last *Socket
	for i := 0; i < NumSocketMax; i++ {
		s, err := c.CreateSocket(1)
		require.Nil(t, err)
		last = s
	}
	_, err := c.CreateSocket(1)
	assert.Equal(t, StatusNoMemory, errCause(err))

	// Freeing a slot makes it reusable.
	require.Nil(t, c.RemoveSocket(last))
	s, err := c.CreateSocket(2)
	require.Nil(t, err)
	assert.Equal(t, last.ID(), s.ID())
}

func TestRemoveSocket(t *testing.T) {
	c, _ := setupContext(t, nil)
	s, err := c.CreateSocket(1)
	require.Nil(t, err)
	require.Nil(t, c.RemoveSocket(s))
	assert.False(t, c.IsValidSocket(s.ID()))
	// removing twice is an error.
	assert.Equal(t, StatusBadParameter, errCause(c.RemoveSocket(s)))
	assert.Equal(t, StatusBadParameter, errCause(c.RemoveSocket(nil)))
}

func TestSocketOptionGuards(t *testing.T) {
	c, _ := setupContext(t, nil)
	s, err := c.CreateSocket(1)
	require.Nil(t, err)

	require.Nil(t, s.SetLocalPort(5000))
	assert.Equal(t, 5000, s.LocalPort())
	require.Nil(t, s.SetPDNContextID(3))
	assert.Equal(t, 3, s.PDNContextID())

	// Addressing options freeze once the socket leaves ALLOCATED.
	s.SetState(SocketConnecting)
	assert.Equal(t, StatusUnsupported, errCause(s.SetLocalPort(6000)))
	assert.Equal(t, StatusUnsupported, errCause(s.SetPDNContextID(4)))
	assert.Equal(t, 5000, s.LocalPort())
	assert.Equal(t, 3, s.PDNContextID())

	// Timeouts may change in any state.
	require.Nil(t, s.SetSendTimeout(2*time.Second))
	require.Nil(t, s.SetRecvTimeout(3*time.Second))
	assert.Equal(t, 2*time.Second, s.SendTimeout())
	assert.Equal(t, 3*time.Second, s.RecvTimeout())

	assert.Equal(t, StatusBadParameter, errCause(s.SetSendTimeout(0)))
	assert.Equal(t, StatusBadParameter, errCause(s.SetPDNContextID(PDNContextIDMax+1)))
	assert.Equal(t, StatusBadParameter, errCause(s.SetLocalPort(-1)))
}

func TestSocketNotifications(t *testing.T) {
	c, _ := setupContext(t, nil)
	s, err := c.CreateSocket(1)
	require.Nil(t, err)

	var dataReady, opened, closed int
	var openOK bool
	s.RegisterDataReadyCallback(func() { dataReady++ })
	s.RegisterOpenCallback(func(ok bool) { opened++; openOK = ok })
	s.RegisterClosedCallback(func() { closed++ })

	s.SetState(SocketConnecting)
	s.NotifyOpened(true)
	assert.Equal(t, SocketConnected, s.State())
	assert.Equal(t, 1, opened)
	assert.True(t, openOK)

	s.NotifyDataReady()
	assert.Equal(t, 1, dataReady)

	s.NotifyClosed()
	assert.Equal(t, SocketDisconnected, s.State())
	assert.Equal(t, 1, closed)
}

func TestSocketOpenFailure(t *testing.T) {
	c, _ := setupContext(t, nil)
	s, err := c.CreateSocket(1)
	require.Nil(t, err)
	s.SetState(SocketConnecting)
	s.NotifyOpened(false)
	assert.Equal(t, SocketDisconnected, s.State())
}

func TestIsValidSocketBounds(t *testing.T) {
	c, _ := setupContext(t, nil)
	assert.False(t, c.IsValidSocket(-1))
	assert.False(t, c.IsValidSocket(NumSocketMax))
	assert.Nil(t, c.SocketByID(NumSocketMax))
}
