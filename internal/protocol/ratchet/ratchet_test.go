package ratchet_test

import (
	"bytes"
	"testing"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
	"ciphera/internal/protocol/ratchet"
)

func makeIdentity(t *testing.T) (priv domain.X25519Private, pub domain.X25519Public) {
	t.Helper()
	p, P, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	return p, P
}

func bootstrap(t *testing.T) (a, b domain.RatchetHolder) {
	t.Helper()
	rk := bytes.Repeat([]byte{0x42}, 32)

	bPriv, bPub := makeIdentity(t)

	aState, err := ratchet.InitAsInitiator(rk, "alice-device", "conv-1", bPub)
	if err != nil {
		t.Fatalf("InitAsInitiator: %v", err)
	}
	bState, err := ratchet.InitAsResponder(rk, bPriv, bPub, aState.DiffieHellmanPublic, "bob-device", "conv-1")
	if err != nil {
		t.Fatalf("InitAsResponder: %v", err)
	}
	return aState, bState
}

func TestDoubleRatchet_OneRoundTrip(t *testing.T) {
	aState, bState := bootstrap(t)

	header, ct, iv, mk, err := ratchet.Encrypt(&aState, nil, []byte("hi"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	crypto.Wipe(mk)
	pt, err := ratchet.Decrypt(&bState, nil, header, iv, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "hi" {
		t.Fatalf("got %q, want %q", pt, "hi")
	}
}

func TestCounterMonotonicity(t *testing.T) {
	// Scenario 1: Alice sends 3, Bob sends 2, Alice sends 1 more.
	// Alice.NsTotal sequence observed after each op: [0,1,2,3,3,3,4].
	aState, bState := bootstrap(t)
	var got []uint64
	got = append(got, aState.SendCounterTotal)

	send := func(from *domain.RatchetHolder, to *domain.RatchetHolder, msg string) {
		header, ct, iv, mk, err := ratchet.Encrypt(from, nil, []byte(msg))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		crypto.Wipe(mk)
		if _, err := ratchet.Decrypt(to, nil, header, iv, ct); err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
	}

	send(&aState, &bState, "a0")
	got = append(got, aState.SendCounterTotal)
	send(&aState, &bState, "a1")
	got = append(got, aState.SendCounterTotal)
	send(&aState, &bState, "a2")
	got = append(got, aState.SendCounterTotal)
	send(&bState, &aState, "b0")
	got = append(got, aState.SendCounterTotal)
	send(&bState, &aState, "b1")
	got = append(got, aState.SendCounterTotal)
	send(&aState, &bState, "a3")
	got = append(got, aState.SendCounterTotal)

	want := []uint64{0, 1, 2, 3, 3, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at step %d: got %d, want %d (full=%v)", i, got[i], want[i], got)
		}
	}
	if bState.ReceiveCounterTotal != 4 {
		t.Fatalf("Bob.NrTotal = %d, want 4", bState.ReceiveCounterTotal)
	}
}

func TestRatchetDoesNotTouchTransportCounters(t *testing.T) {
	aState, _ := bootstrap(t)
	aState.SendCounterTotal = 42
	aState.ReceiveCounterTotal = 17

	otherPriv, otherPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	_ = otherPriv

	oldSendCK := aState.SendChainKey
	if err := ratchet.Ratchet(&aState, otherPub); err != nil {
		t.Fatalf("Ratchet: %v", err)
	}
	if aState.SendCounterTotal != 42 || aState.ReceiveCounterTotal != 17 {
		t.Fatalf("counters changed: ns_total=%d nr_total=%d", aState.SendCounterTotal, aState.ReceiveCounterTotal)
	}
	if bytes.Equal(oldSendCK, aState.ReceiveChainKey) {
		t.Fatal("receive chain key was not replaced")
	}
}

func TestBurstOfTen(t *testing.T) {
	aState, bState := bootstrap(t)
	for i := 0; i < 10; i++ {
		header, ct, iv, mk, err := ratchet.Encrypt(&aState, nil, []byte("burst"))
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		crypto.Wipe(mk)
		pt, err := ratchet.Decrypt(&bState, nil, header, iv, ct)
		if err != nil {
			t.Fatalf("Decrypt %d: %v", i, err)
		}
		if string(pt) != "burst" {
			t.Fatalf("plaintext mismatch at %d", i)
		}
	}
	if aState.SendCounterTotal != 10 {
		t.Fatalf("Alice.NsTotal = %d, want 10", aState.SendCounterTotal)
	}
	if bState.ReceiveCounterTotal != 10 {
		t.Fatalf("Bob.NrTotal = %d, want 10", bState.ReceiveCounterTotal)
	}
}

func TestDecrypt_CounterReplayOrGap(t *testing.T) {
	aState, bState := bootstrap(t)
	header, ct, iv, mk, err := ratchet.Encrypt(&aState, nil, []byte("one"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	crypto.Wipe(mk)
	if _, err := ratchet.Decrypt(&bState, nil, header, iv, ct); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	// Replay the same header/ciphertext: n=0 < Nr=1, no skipped key recorded.
	if _, err := ratchet.Decrypt(&bState, nil, header, iv, ct); err != ratchet.ErrCounterReplayOrGap {
		t.Fatalf("got %v, want ErrCounterReplayOrGap", err)
	}
}
