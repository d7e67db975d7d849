package api

import (
	"encoding/json"
	"sync"
	"testing"
)

func subscribeMessage(t *testing.T, cameras ...interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(Message{Type: MessageTypeSubscribe, Data: cameras})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestClientSubscriptionRouting(t *testing.T) {
	c := &Client{
		send:          make(chan []byte, 1),
		subscriptions: map[string]bool{"*": true},
	}

	if !c.subscribedTo("cam1") {
		t.Error("new client should receive all cameras")
	}

	c.handleMessage(subscribeMessage(t, "cam2"))

	if c.subscribedTo("cam1") {
		t.Error("subscribe should replace the wildcard")
	}
	if !c.subscribedTo("cam2") {
		t.Error("client should receive cam2 after subscribing")
	}

	unsub, err := json.Marshal(Message{Type: MessageTypeUnsubscribe, Data: []interface{}{"cam2"}})
	if err != nil {
		t.Fatal(err)
	}
	c.handleMessage(unsub)
	if c.subscribedTo("cam2") {
		t.Error("client should not receive cam2 after unsubscribing")
	}
}

func TestClientSubscribeConcurrentWithRelay(t *testing.T) {
	// readPump mutates subscriptions while the dispatcher goroutine
	// checks them; both sides must go through subMu. Run with -race.
	c := &Client{
		send:          make(chan []byte, 1),
		subscriptions: map[string]bool{"*": true},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c.handleMessage(subscribeMessage(t, "cam1", "cam2"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = c.subscribedTo("cam1")
		}
	}()
	wg.Wait()

	if !c.subscribedTo("cam1") {
		t.Error("client should end up subscribed to cam1")
	}
}
