package spindle

import (
	"testing"
	"time"
)

func TestDefaultEngine(t *testing.T) {
	eng := getDefaultEngine()

	if eng.BaseBackoff != 300*time.Millisecond {
		t.Errorf("BaseBackoff = %v, want 300ms", eng.BaseBackoff)
	}
	if eng.MaxIdleBackoff != 0 {
		t.Errorf("MaxIdleBackoff = %v, want uncapped by default", eng.MaxIdleBackoff)
	}
	if eng.MaxRetryAttempts != 3 {
		t.Errorf("MaxRetryAttempts = %d, want 3", eng.MaxRetryAttempts)
	}
	if eng.FollowRedirect {
		t.Error("FollowRedirect must default to false")
	}
	if eng.Adapter != HTTPEngine {
		t.Errorf("Adapter = %q, want %q", eng.Adapter, HTTPEngine)
	}
}

func TestOverrideEngineDefaults(t *testing.T) {
	eng := getDefaultEngine()
	overrideEngineDefaults(&eng, &Engine{
		WorkerCount:    4,
		BaseBackoff:    time.Second,
		MaxIdleBackoff: time.Minute,
		Adapter:        RodEngine,
		FollowRedirect: true,
	})

	if eng.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d, want 4", eng.WorkerCount)
	}
	if eng.BaseBackoff != time.Second {
		t.Errorf("BaseBackoff = %v, want 1s", eng.BaseBackoff)
	}
	if eng.MaxIdleBackoff != time.Minute {
		t.Errorf("MaxIdleBackoff = %v, want 1m", eng.MaxIdleBackoff)
	}
	if eng.Adapter != RodEngine {
		t.Errorf("Adapter = %q, want %q", eng.Adapter, RodEngine)
	}
	if !eng.FollowRedirect {
		t.Error("FollowRedirect override lost")
	}
	// untouched fields keep their defaults
	if eng.MaxRetryAttempts != 3 {
		t.Errorf("MaxRetryAttempts = %d, want default 3", eng.MaxRetryAttempts)
	}
}
