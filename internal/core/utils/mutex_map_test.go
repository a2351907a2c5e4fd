package utils_test

import (
	"testing"
	"time"

	"camqc-backend/internal/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hold = 200 * time.Millisecond

func lockAndHold(t *testing.T, m *utils.MutexMap, key string, done chan<- struct{}) {
	assert.NoError(t, m.Lock(key))
	time.Sleep(hold)
	assert.NoError(t, m.Unlock(key))
	done <- struct{}{}
}

func TestMutexMap_SameKeyIsSequential(t *testing.T) {
	m := utils.NewMutexMap(10)
	done := make(chan struct{}, 2)

	start := time.Now()
	go lockAndHold(t, &m, "serial-1", done)
	go lockAndHold(t, &m, "serial-1", done)
	<-done
	<-done

	assert.GreaterOrEqual(t, time.Since(start), 2*hold)
}

func TestMutexMap_DifferentKeysAreConcurrent(t *testing.T) {
	m := utils.NewMutexMap(10)
	done := make(chan struct{}, 2)

	start := time.Now()
	go lockAndHold(t, &m, "serial-1", done)
	go lockAndHold(t, &m, "serial-2", done)
	<-done
	<-done

	assert.Less(t, time.Since(start), 2*hold)
}

func TestMutexMap_MaxSize(t *testing.T) {
	m := utils.NewMutexMap(1)
	require.NoError(t, m.Lock("a"))
	assert.Error(t, m.Lock("b"))
	require.NoError(t, m.Unlock("a"))
	assert.NoError(t, m.Lock("b"))
}

func TestMutexMap_UnlockUnknownKey(t *testing.T) {
	m := utils.NewMutexMap(10)
	assert.Error(t, m.Unlock("missing"))
}
