package address

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newKey(t *testing.T) Address {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	a, err := FromPublicKey(pub)
	if err != nil {
		t.Fatalf("from public key: %v", err)
	}
	return a
}

func TestDeriveDeterministic(t *testing.T) {
	creator := newKey(t)

	a1, n1, err := Bounty("logo design", creator)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	a2, n2, err := Bounty("logo design", creator)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a1 != a2 || n1 != n2 {
		t.Fatalf("same seeds gave %s/%d and %s/%d", a1, n1, a2, n2)
	}
	if a1.OnCurve() {
		t.Fatal("derived address must be off curve")
	}

	again, err := WithNonce(n1, TagBounty, []byte("logo design"), creator[:])
	if err != nil {
		t.Fatalf("with nonce: %v", err)
	}
	if again != a1 {
		t.Fatalf("WithNonce = %s, want %s", again, a1)
	}
}

func TestDeriveDistinctKinds(t *testing.T) {
	key := newKey(t)
	client, _, _ := Client(key)
	user, _, _ := User(key)
	if client == user {
		t.Fatal("client and user records for one key must not collide")
	}

	bounty, _, _ := Bounty("t", key)
	escrow, _, _ := Escrow(bounty)
	sub, _, _ := Submission(key, bounty)
	seen := map[Address]string{client: "client", user: "user"}
	for name, a := range map[string]Address{"bounty": bounty, "escrow": escrow, "submission": sub} {
		if prev, ok := seen[a]; ok {
			t.Fatalf("%s collides with %s", name, prev)
		}
		seen[a] = name
	}
}

func TestDeriveSeedBoundaries(t *testing.T) {
	// moving bytes across a seed boundary must change the address
	a, _, err := Derive([]byte("ab"), []byte("c"))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Derive([]byte("a"), []byte("bc"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("seed boundary ignored")
	}
}

func TestDeriveRejectsOversizedSeeds(t *testing.T) {
	creator := newKey(t)
	_, _, err := Bounty(strings.Repeat("x", MaxSeedLen+1), creator)
	if !errors.Is(err, ErrMaxSeedLength) {
		t.Fatalf("err = %v, want ErrMaxSeedLength", err)
	}

	seeds := make([][]byte, MaxSeeds+1)
	if _, _, err := Derive(seeds...); !errors.Is(err, ErrTooManySeeds) {
		t.Fatalf("err = %v, want ErrTooManySeeds", err)
	}
}

func TestAddressJSONRoundTrip(t *testing.T) {
	key := newKey(t)
	data, err := json.Marshal(struct {
		Key  Address `json:"key"`
		Zero Address `json:"zero"`
	}{Key: key})
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Key  Address `json:"key"`
		Zero Address `json:"zero"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Key != key || !out.Zero.IsZero() {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if _, err := Parse("zz"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Parse(zz) err = %v", err)
	}
}

func FuzzDeriveDistinct(f *testing.F) {
	f.Add([]byte("title"), []byte("other"))
	f.Add([]byte(""), []byte{0})
	f.Add([]byte("ab"), []byte("abc"))
	creator := bytes.Repeat([]byte{7}, Size)
	f.Fuzz(func(t *testing.T, a, b []byte) {
		if len(a) > MaxSeedLen || len(b) > MaxSeedLen {
			if _, _, err := Derive(TagBounty, a, creator); len(a) > MaxSeedLen && err == nil {
				t.Fatal("oversized seed accepted")
			}
			return
		}
		x, _, err := Derive(TagBounty, a, creator)
		if err != nil {
			t.Fatal(err)
		}
		y, _, err := Derive(TagBounty, b, creator)
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Equal(a, b) != (x == y) {
			t.Fatalf("seeds %q and %q: equal=%v addresses equal=%v", a, b, bytes.Equal(a, b), x == y)
		}
	})
}
