package pipeline

import (
	"sync"
	"testing"
)

func TestClaimAndPublishPreservesOrder(t *testing.T) {
	rb := NewRingBuffer[int](8)

	for i := 1; i <= 5; i++ {
		seq, err := rb.Claim()
		if err != nil {
			t.Fatalf("Claim: %v", err)
		}
		rb.Publish(seq, i*10)
	}

	done := make(chan struct{})
	for i := 1; i <= 5; i++ {
		v, ok := rb.Next(done)
		if !ok {
			t.Fatalf("Next: expected a value at i=%d", i)
		}
		if v != i*10 {
			t.Errorf("expected %d, got %d", i*10, v)
		}
	}
}

func TestNewRingBufferPanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for non-power-of-2 size")
		}
	}()
	NewRingBuffer[int](7)
}

func TestClaimReturnsErrBufferFullWhenSaturated(t *testing.T) {
	rb := NewRingBuffer[int](4)
	for i := 0; i < 4; i++ {
		if _, err := rb.Claim(); err != nil {
			t.Fatalf("Claim %d: %v", i, err)
		}
	}
	// No Next() call to release gatingSeq, so a further claim must fail
	// once the ring is fully outstanding.
	if _, err := rb.Claim(); err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got %v", err)
	}
}

func TestNextReturnsFalseWhenDoneClosed(t *testing.T) {
	rb := NewRingBuffer[int](4)
	done := make(chan struct{})
	close(done)

	_, ok := rb.Next(done)
	if ok {
		t.Errorf("expected Next to return ok=false once done is closed with nothing published")
	}
}

func TestNextStopsImmediatelyEvenWithPublishedEntriesWaiting(t *testing.T) {
	rb := NewRingBuffer[int](8)
	seq, err := rb.Claim()
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	rb.Publish(seq, 42) // a value is ready and waiting to be consumed

	done := make(chan struct{})
	close(done) // but the consumer is already dying

	if _, ok := rb.Next(done); ok {
		t.Errorf("expected Next to return ok=false once done is closed, even though a published entry was waiting")
	}
}

func TestConcurrentClaimsAreUnique(t *testing.T) {
	rb := NewRingBuffer[int](1024)
	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	seen := make(map[uint64]bool)
	var mu sync.Mutex

	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				seq, err := rb.Claim()
				if err != nil {
					t.Errorf("Claim: %v", err)
					return
				}
				rb.Publish(seq, int(seq))

				mu.Lock()
				if seen[seq] {
					t.Errorf("duplicate sequence claimed: %d", seq)
				}
				seen[seq] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	done := make(chan struct{})
	for i := 0; i < producers*perProducer; i++ {
		if _, ok := rb.Next(done); !ok {
			t.Fatalf("expected %d published values, Next failed at i=%d", producers*perProducer, i)
		}
	}
}
