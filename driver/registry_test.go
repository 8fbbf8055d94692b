package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRegistry_CloseAll(t *testing.T) {
	conn, _ := newTestConn(t)
	registry := NewStreamRegistry(testLogger())

	recs := []*recorder{newRecorder(), newRecorder(), newRecorder()}
	for _, rec := range recs {
		cursor, err := conn.RunAsync("query", nil, rec.handler(), syncDispatcher{})
		require.NoError(t, err)
		registry.Track(cursor)
	}
	assert.Equal(t, 3, registry.Len())

	registry.CloseAll()

	for _, rec := range recs {
		rec.waitClosed(t)
	}
	assert.Equal(t, 0, registry.Len())
}

func TestStreamRegistry_CloseAllBestEffort(t *testing.T) {
	conn, ft := newTestConn(t)
	registry := NewStreamRegistry(testLogger())

	recs := []*recorder{newRecorder(), newRecorder()}
	for _, rec := range recs {
		cursor, err := conn.RunAsync("query", nil, rec.handler(), syncDispatcher{})
		require.NoError(t, err)
		registry.Track(cursor)
	}

	// Stop-frame writes fail, so each Close errors; teardown must still
	// reach every cursor
	ft.setFailWrites(true)
	registry.CloseAll()

	for _, rec := range recs {
		rec.waitClosed(t)
	}
	assert.Equal(t, 0, registry.Len())
}

func TestStreamRegistry_Reusable(t *testing.T) {
	conn, _ := newTestConn(t)
	registry := NewStreamRegistry(testLogger())

	rec := newRecorder()
	cursor, err := conn.RunAsync("query", nil, rec.handler(), syncDispatcher{})
	require.NoError(t, err)
	registry.Track(cursor)
	registry.CloseAll()
	rec.waitClosed(t)

	rec2 := newRecorder()
	cursor2, err := conn.RunAsync("query", nil, rec2.handler(), syncDispatcher{})
	require.NoError(t, err)
	registry.Track(cursor2)
	assert.Equal(t, 1, registry.Len())
	registry.CloseAll()
	rec2.waitClosed(t)
}

func TestStreamRegistry_IgnoresNil(t *testing.T) {
	registry := NewStreamRegistry(testLogger())
	registry.Track(nil)
	assert.Equal(t, 0, registry.Len())
	registry.CloseAll()
}
