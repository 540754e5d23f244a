package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := Subscribe[ArticlePublished](bus, 4)
	defer unsub()

	evt := ArticlePublished{Tenant: "acme", ArticleNumber: 7, Version: 2, URLPath: "news/launch"}
	require.NoError(t, bus.Publish(t.Context(), evt))

	select {
	case got := <-ch:
		require.Equal(t, int64(7), got.ArticleNumber)
		require.Equal(t, "acme", got.Tenant)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusTypedRouting(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	pubCh, unsubPub := Subscribe[ArticlePublished](bus, 1)
	defer unsubPub()
	unpubCh, unsubUnpub := Subscribe[ArticleUnpublished](bus, 1)
	defer unsubUnpub()

	require.NoError(t, bus.Publish(t.Context(), ArticleUnpublished{ArticleNumber: 3}))

	select {
	case got := <-unpubCh:
		require.Equal(t, int64(3), got.ArticleNumber)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unpublish event")
	}

	select {
	case evt := <-pubCh:
		t.Errorf("publish subscriber received wrong event type: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := Subscribe[SiteRebuilt](bus, 1)
	require.Equal(t, 1, SubscriberCount[SiteRebuilt](bus))

	unsub()
	unsub() // idempotent

	require.Equal(t, 0, SubscriberCount[SiteRebuilt](bus))

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected closed channel after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()
	bus.Close() // idempotent

	require.Error(t, bus.Publish(t.Context(), SiteRebuilt{}))
}

func TestBusPublishNil(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	require.Error(t, bus.Publish(t.Context(), nil))
}

func TestBusPublishBlocksUntilCanceled(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// No reader; fill the subscription buffers, then expect the next
	// publish to block until the context is canceled.
	_, unsub := Subscribe[ContactReceived](bus, 0)
	defer unsub()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err = bus.Publish(ctx, ContactReceived{}); err != nil {
				return
			}
		}
	}()

	select {
	case <-done:
		require.Error(t, err, "expected a canceled publish")
	case <-time.After(2 * time.Second):
		t.Fatal("publish never unblocked on cancel")
	}
}

func TestBridgeForwardsEvents(t *testing.T) {
	var mu sync.Mutex
	type sent struct {
		subject string
		data    []byte
	}
	var messages []sent

	bridge := newBridgeWithPublisher("testprefix", nil, func(ctx context.Context, subject string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, sent{subject, data})
		return nil
	})

	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		bridge.Run(ctx, bus)
	}()

	// Give Run a moment to subscribe.
	deadline := time.Now().Add(time.Second)
	for SubscriberCount[ArticlePublished](bus) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("bridge never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, bus.Publish(ctx, ArticlePublished{Tenant: "acme", ArticleNumber: 1, URLPath: "root"}))
	require.NoError(t, bus.Publish(ctx, SiteRebuilt{Tenant: "acme", Pages: 10}))

	deadline = time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(messages)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bridge never forwarded events")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	bySubject := make(map[string][]byte, len(messages))
	for _, m := range messages {
		bySubject[m.subject] = m.data
	}

	data, ok := bySubject["testprefix.article.published"]
	require.True(t, ok, "article.published never forwarded; got %v", bySubject)

	var evt ArticlePublished
	require.NoError(t, json.Unmarshal(data, &evt), "forwarded payload is not valid JSON")
	require.Equal(t, "acme", evt.Tenant)

	_, ok = bySubject["testprefix.site.rebuilt"]
	require.True(t, ok, "site.rebuilt never forwarded; got %v", bySubject)
}
