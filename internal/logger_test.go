package internal

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.String()
}

type memoryDatabase struct {
	mutex    sync.Mutex
	messages []*FeatureLogMessage
}

func (m *memoryDatabase) WriteLogMessage(data Data) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.messages = append(m.messages, data.(*FeatureLogMessage))
	return nil
}

func (m *memoryDatabase) ReadLog() (interface{}, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.messages, nil
}

func (m *memoryDatabase) count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.messages)
}

func TestLoggerWritesFeatureEvents(t *testing.T) {
	out := &syncBuffer{}
	db := &memoryDatabase{}
	logger := NewLoggerWithOutput(out)
	logger.SetDatabase(db)

	logger.FeatureEvent("BootNotification", "CP1", "accepted")
	logger.Warn("something odd")

	assert.Eventually(t, func() bool { return db.count() == 2 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), `"feature":"BootNotification"`)
	assert.Contains(t, out.String(), `"id":"CP1"`)
	assert.Contains(t, out.String(), `"level":"warn"`)

	db.mutex.Lock()
	defer db.mutex.Unlock()
	assert.Equal(t, "*", db.messages[1].ChargePointId)
	assert.Equal(t, string(Warning), db.messages[1].Importance)
}

func TestLoggerRawDataOnlyInDebug(t *testing.T) {
	db := &memoryDatabase{}
	logger := NewLoggerWithOutput(&syncBuffer{})
	logger.SetDatabase(db)

	logger.RawDataEvent("IN", "[2,\"1\",\"Heartbeat\",{}]")
	logger.SetDebugMode(true)
	logger.RawDataEvent("OUT", "[3,\"1\",{}]")

	assert.Eventually(t, func() bool { return db.count() == 1 }, time.Second, 10*time.Millisecond)
	db.mutex.Lock()
	defer db.mutex.Unlock()
	assert.Equal(t, "OUT: [3,\"1\",{}]", db.messages[0].Text)
}
