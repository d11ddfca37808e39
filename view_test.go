package pcap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketView(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	lease := NewLease()
	v, err := lease.View(PacketHeader{Length: 100, CapturedLength: 4}, buf)
	require.NoError(t, err)
	require.True(t, v.Valid())
	require.Equal(t, []byte{1, 2, 3, 4}, v.BodyView())
	require.Equal(t, uint32(100), v.Header().Length)

	// the view borrows the buffer
	buf[0] = 9
	require.Equal(t, byte(9), v.BodyView()[0])

	// appending to the view never spills into the buffer
	_ = append(v.BodyView(), 0xee)
	require.Equal(t, byte(5), buf[4])

	p, err := v.Copy()
	require.NoError(t, err)
	buf[1] = 9
	require.Equal(t, []byte{9, 2, 3, 4}, p.Body())
	require.Equal(t, v.Header(), p.Header())

	lease.Expire()
	require.False(t, v.Valid())
	require.Nil(t, v.BodyView())
	require.Nil(t, v.Body())
	_, err = v.Copy()
	require.ErrorIs(t, err, ErrViewExpired)

	// the owned copy outlives the lease
	require.Equal(t, []byte{9, 2, 3, 4}, p.Body())

	_, err = lease.View(PacketHeader{CapturedLength: 1}, buf)
	require.ErrorIs(t, err, ErrViewExpired)
}

func TestPacketViewShort(t *testing.T) {
	_, err := NewLease().View(PacketHeader{Length: 10, CapturedLength: 10}, []byte{1})
	require.ErrorIs(t, err, ErrShortBody)
}

func TestPacketViewZero(t *testing.T) {
	var v PacketView
	require.False(t, v.Valid())
	require.Nil(t, v.BodyView())
	_, err := v.Copy()
	require.ErrorIs(t, err, ErrViewExpired)
}

func TestLeaseConcurrentExpire(t *testing.T) {
	lease := NewLease()
	v, err := lease.View(PacketHeader{Length: 2, CapturedLength: 2}, []byte{1, 2})
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = v.Valid()
			lease.Expire()
		}()
	}
	wg.Wait()
	require.True(t, lease.Expired())
	require.False(t, v.Valid())
}

func TestMatchExpiredView(t *testing.T) {
	p := compileEthernet(t, "")
	m, err := NewMatcher(p)
	require.NoError(t, err)
	require.NoError(t, p.Release())

	lease := NewLease()
	v, err := lease.View(PacketHeader{Length: 4, CapturedLength: 4}, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	ok, err := m.Match(v)
	require.NoError(t, err)
	require.True(t, ok)

	lease.Expire()
	_, err = m.Match(v)
	require.ErrorIs(t, err, ErrViewExpired)
	_, err = m.Match(&v)
	require.ErrorIs(t, err, ErrViewExpired)
}
