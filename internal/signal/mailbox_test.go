package signal

import (
	"sync"
	"testing"

	"github.com/openlobby/LobbyPipe/internal/models"
)

func TestPostAndPeek(t *testing.T) {
	mb := NewMailbox()

	if got := mb.Peek("s1"); got != nil {
		t.Errorf("Peek on empty mailbox = %v, want nil", got)
	}

	mb.Post("s1", models.SignalStartFaceCapture, map[string]any{"next_endpoint": "/flow/capture_result"})

	sig := mb.Peek("s1")
	if sig == nil {
		t.Fatal("Peek returned nil after Post")
	}
	if sig.Name != models.SignalStartFaceCapture {
		t.Errorf("signal name = %v, want %v", sig.Name, models.SignalStartFaceCapture)
	}
	if sig.CreatedAt.IsZero() {
		t.Error("signal CreatedAt should be set")
	}

	// Peek is non-destructive.
	if mb.Peek("s1") == nil {
		t.Error("second Peek should still see the signal")
	}
}

func TestLastWriteWins(t *testing.T) {
	mb := NewMailbox()
	mb.Post("s1", models.SignalStartFaceCapture, nil)
	mb.Post("s1", models.SignalStopFaceCapture, nil)

	sig := mb.Consume("s1")
	if sig == nil || sig.Name != models.SignalStopFaceCapture {
		t.Errorf("Consume = %v, want %v", sig, models.SignalStopFaceCapture)
	}
}

func TestConsumeIdempotent(t *testing.T) {
	mb := NewMailbox()
	mb.Post("s1", models.SignalStartVisitorPhoto, nil)

	if sig := mb.Consume("s1"); sig == nil {
		t.Fatal("first Consume should return the signal")
	}
	if sig := mb.Consume("s1"); sig != nil {
		t.Errorf("second Consume = %v, want nil", sig)
	}
	if sig := mb.Peek("s1"); sig != nil {
		t.Errorf("Peek after Consume = %v, want nil", sig)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	mb := NewMailbox()
	mb.Post("s1", models.SignalStartFaceCapture, nil)
	mb.Post("s2", models.SignalStartVisitorInfo, nil)

	if sig := mb.Consume("s1"); sig == nil || sig.Name != models.SignalStartFaceCapture {
		t.Errorf("s1 Consume = %v, want start_face_capture", sig)
	}
	if sig := mb.Peek("s2"); sig == nil || sig.Name != models.SignalStartVisitorInfo {
		t.Errorf("s2 Peek = %v, want start_visitor_info", sig)
	}
}

func TestDrop(t *testing.T) {
	mb := NewMailbox()
	mb.Post("s1", models.SignalStartFaceCapture, nil)
	mb.Drop("s1")
	mb.Drop("s1") // idempotent
	if sig := mb.Peek("s1"); sig != nil {
		t.Errorf("Peek after Drop = %v, want nil", sig)
	}
}

func TestConcurrentAccess(t *testing.T) {
	mb := NewMailbox()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mb.Post("s1", models.SignalStartFaceCapture, nil)
				mb.Peek("s1")
				mb.Consume("s1")
			}
		}()
	}
	wg.Wait()
}
