package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransactionFinish(t *testing.T) {
	tx := &Transaction{Id: 7, MeterStart: 1200}
	assert.Equal(t, 0, tx.Consumed())

	now := time.Now()
	tx.Finish(1850, now, "Remote")
	assert.True(t, tx.IsFinished)
	assert.Equal(t, 650, tx.Consumed())
	assert.Equal(t, "Remote", tx.Reason)
	assert.Equal(t, now, *tx.TimeStop)
}

func TestTransactionCopy(t *testing.T) {
	tx := &Transaction{Id: 3, MeterStart: 10}
	tx.Finish(20, time.Now(), "Local")

	c := tx.Copy()
	*c.MeterStop = 99
	assert.Equal(t, 20, *tx.MeterStop)

	var empty *Transaction
	assert.Nil(t, empty.Copy())
}
