package state

import (
	"fmt"
	"sync"
	"testing"

	"configurablestub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteRegistryPutGet(t *testing.T) {
	r := NewRouteRegistry()
	key := models.NewRouteKey("post", "/orders/")

	_, ok := r.Get(key)
	assert.False(t, ok)

	r.Put(key, models.RouteConfig{StatusCode: 201, Response: "first"})
	r.Put(key, models.RouteConfig{StatusCode: 202, Response: "second"})

	got, ok := r.Get(models.NewRouteKey("POST", "orders"))
	require.True(t, ok)
	assert.Equal(t, 202, got.StatusCode)
	assert.Equal(t, "second", got.Response)
	assert.Equal(t, 1, r.Len())
}

func TestRouteRegistryKeysAreDistinctPerVerb(t *testing.T) {
	r := NewRouteRegistry()
	r.Put(models.NewRouteKey("GET", "orders"), models.RouteConfig{StatusCode: 200})

	_, ok := r.Get(models.NewRouteKey("POST", "orders"))
	assert.False(t, ok)
}

func TestRouteRegistryResetAll(t *testing.T) {
	r := NewRouteRegistry()
	key := models.NewRouteKey("GET", "a")
	r.Put(key, models.RouteConfig{StatusCode: 200})

	r.ResetAll()

	_, ok := r.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRequestLedgerOrdering(t *testing.T) {
	l := NewRequestLedger()
	key := models.NewRouteKey("POST", "orders")

	_, ok := l.GetAll(key)
	assert.False(t, ok)
	_, ok = l.GetOne(key)
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		l.Append(key, models.RequestRecord{RequestBody: fmt.Sprintf("body-%d", i)})
	}

	all, ok := l.GetAll(key)
	require.True(t, ok)
	require.Len(t, all, 3)
	assert.Equal(t, "body-0", all[0].RequestBody)
	assert.Equal(t, "body-2", all[2].RequestBody)

	one, ok := l.GetOne(key)
	require.True(t, ok)
	assert.Equal(t, "body-0", one.RequestBody)
}

func TestRequestLedgerGetAllReturnsCopy(t *testing.T) {
	l := NewRequestLedger()
	key := models.NewRouteKey("GET", "x")
	l.Append(key, models.RequestRecord{RequestBody: "original"})

	all, _ := l.GetAll(key)
	all[0].RequestBody = "mutated"

	again, _ := l.GetAll(key)
	assert.Equal(t, "original", again[0].RequestBody)
}

func TestRequestLedgerResetAll(t *testing.T) {
	l := NewRequestLedger()
	key := models.NewRouteKey("GET", "x")
	l.Append(key, models.RequestRecord{})

	l.ResetAll()

	_, ok := l.GetAll(key)
	assert.False(t, ok)
	assert.Equal(t, 0, l.Count())
}

func TestRequestLedgerConcurrentAppend(t *testing.T) {
	l := NewRequestLedger()
	key := models.NewRouteKey("POST", "hot")

	const workers = 16
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				l.Append(key, models.RequestRecord{RequestBody: i})
			}
		}()
	}
	wg.Wait()

	all, ok := l.GetAll(key)
	require.True(t, ok)
	assert.Len(t, all, workers*perWorker)
}

func TestConcurrentResetWithReaders(t *testing.T) {
	r := NewRouteRegistry()
	l := NewRequestLedger()
	key := models.NewRouteKey("GET", "busy")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Put(key, models.RouteConfig{StatusCode: 200})
				r.Get(key)
				l.Append(key, models.RequestRecord{})
				l.GetAll(key)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			r.ResetAll()
			l.ResetAll()
		}
	}()
	wg.Wait()

	r.ResetAll()
	l.ResetAll()
	_, ok := r.Get(key)
	assert.False(t, ok)
	_, ok = l.GetAll(key)
	assert.False(t, ok)
}
