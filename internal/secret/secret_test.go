package secret

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestConfiguredKeyIsUsedVerbatim(t *testing.T) {
	p := New("test-secret")
	key, err := p.Key()
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if string(key) != "test-secret" {
		t.Fatalf("Key() = %q", key)
	}
	if p.Ephemeral() {
		t.Fatal("configured provider reported ephemeral")
	}
}

func TestGeneratedKeyIsStable(t *testing.T) {
	p := New("")
	if !p.Ephemeral() {
		t.Fatal("expected ephemeral provider")
	}
	first, err := p.Key()
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if len(first) != KeySize {
		t.Fatalf("len(Key()) = %d, want %d", len(first), KeySize)
	}
	second, _ := p.Key()
	if !bytes.Equal(first, second) {
		t.Fatal("Key() changed between calls")
	}
}

func TestConcurrentFirstUseYieldsOneKey(t *testing.T) {
	p := New("")
	const workers = 64
	keys := make([][]byte, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			key, err := p.Key()
			if err != nil {
				t.Errorf("Key() error = %v", err)
				return
			}
			keys[i] = key
		}(i)
	}
	close(start)
	wg.Wait()
	for i := 1; i < workers; i++ {
		if !bytes.Equal(keys[0], keys[i]) {
			t.Fatalf("worker %d saw a different key", i)
		}
	}
}

func TestSeparateProvidersGenerateDifferentKeys(t *testing.T) {
	a, _ := New("").Key()
	b, _ := New("").Key()
	if bytes.Equal(a, b) {
		t.Fatal("two providers generated the same key")
	}
}

func TestGenerationFailureIsReported(t *testing.T) {
	p := New("")
	p.read = func([]byte) (int, error) { return 0, errors.New("entropy unavailable") }
	if _, err := p.Key(); err == nil {
		t.Fatal("expected error when key generation fails")
	}
}

func TestKeyCannotBeModifiedByCallers(t *testing.T) {
	for _, configured := range []string{"test-secret", ""} {
		p := New(configured)
		key, err := p.Key()
		if err != nil {
			t.Fatalf("Key() error = %v", err)
		}
		want := bytes.Clone(key)
		for i := range key {
			key[i] = 0
		}
		again, _ := p.Key()
		if !bytes.Equal(again, want) {
			t.Fatalf("provider %q key changed after caller wrote to it", configured)
		}
	}
}
