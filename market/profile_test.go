package market

import (
	"errors"
	"strings"
	"testing"
)

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	k := f.key()

	u, err := f.engine.RegisterUser(f.at(k, 0), "Grace Brewster Hopper", "grace@example.test", []string{"cobol"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Avatar != "GBH" || u.Bio != DefaultUserBio || u.Authority != k {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := f.engine.RegisterUser(f.at(k, 1), "Grace", "g@example.test", nil); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("second register err = %v", err)
	}

	for _, tt := range []struct {
		name, email string
		skills      []string
		want        error
	}{
		{"", "a@b.c", nil, ErrInvalidName},
		{"   ", "a@b.c", nil, ErrInvalidName},
		{strings.Repeat("n", MaxNameLen+1), "a@b.c", nil, ErrInvalidName},
		{"Ann", "", nil, ErrInvalidEmail},
		{"Ann", "a@b.c", []string{strings.Repeat("s", MaxSkillLen+1)}, ErrInvalidSkills},
	} {
		if _, err := f.engine.RegisterUser(f.at(f.key(), 0), tt.name, tt.email, tt.skills); !errors.Is(err, tt.want) {
			t.Errorf("RegisterUser(%q, %q) err = %v, want %v", tt.name, tt.email, err, tt.want)
		}
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	f := newFixture(t)
	k := f.newUser()

	u, err := f.engine.UpdateUser(f.at(k, 1), "Ada", "ada@new.test", "math", []string{"analysis"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Avatar != "Ad" || u.Bio != "math" || u.Email != "ada@new.test" {
		t.Fatalf("not updated: %+v", u)
	}
	if _, err := f.engine.UpdateUser(f.at(k, 1), "Ada", "a@b.c", strings.Repeat("b", MaxBioLen+1), nil); !errors.Is(err, ErrInvalidBio) {
		t.Fatalf("long bio err = %v", err)
	}

	if err := f.engine.DeleteUser(f.at(k, 2)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetUser(f.state, k); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("user still present: %v", err)
	}
	if err := f.engine.DeleteUser(f.at(k, 3)); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestClientLifecycle(t *testing.T) {
	f := newFixture(t)
	k := f.newClient(unit)

	c, err := f.engine.UpdateClient(f.at(k, 1), "Initech", "hr@initech.test", "https://initech.test", "We make TPS reports")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.CompanyAvatar != "In" || c.CompanyBio != "We make TPS reports" {
		t.Fatalf("not updated: %+v", c)
	}
	if _, err := f.engine.RegisterClient(f.at(k, 1), "Other", "o@o.test", "https://o.test"); !errors.Is(err, ErrClientAlreadyExists) {
		t.Fatalf("re-register err = %v", err)
	}
	if _, err := f.engine.RegisterClient(f.at(f.key(), 1), "Other", "o@o.test", ""); !errors.Is(err, ErrInvalidLink) {
		t.Fatalf("missing link err = %v", err)
	}

	f.newBounty(k, "first", 1)
	if err := f.engine.DeleteClient(f.at(k, 2)); !errors.Is(err, ErrClientHasBounties) {
		t.Fatalf("delete with bounties err = %v", err)
	}
	if _, err := f.engine.DeleteBounty(f.at(k, 3), "first"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.DeleteClient(f.at(k, 4)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetClient(f.state, k); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("client still present: %v", err)
	}
}

func TestAirdrop(t *testing.T) {
	f := newFixture(t)
	k := f.key()

	if err := f.engine.Airdrop(f.at(k, 0), 10); !errors.Is(err, ErrFaucetDisabled) {
		t.Fatalf("disabled faucet err = %v", err)
	}

	params := DefaultParams()
	params.FaucetLimit = 5 * unit
	f.engine = NewEngine(params, nil)
	if err := f.engine.Airdrop(f.at(k, 0), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero airdrop err = %v", err)
	}
	if err := f.engine.Airdrop(f.at(k, 0), 5*unit+1); !errors.Is(err, ErrFaucetLimitExceeded) {
		t.Fatalf("over limit err = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.engine.Airdrop(f.at(k, 0), 5*unit); err != nil {
			t.Fatalf("airdrop: %v", err)
		}
	}
	if got := f.balance(k); got != 10*unit {
		t.Fatalf("balance = %d, want %d", got, 10*unit)
	}
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	retained, err := p.RetainedMinimum(0)
	if err != nil || retained != 890880 {
		t.Fatalf("RetainedMinimum(0) = %d, %v", retained, err)
	}
	if _, err := p.ToMinorUnits(^uint64(0) / 2); !errors.Is(err, ErrOverflow) {
		t.Fatalf("overflow err = %v", err)
	}
	for in, want := range map[uint64]string{
		5 * unit:   "5",
		1500000000: "1.5",
		retained:   "0.00089088",
		0:          "0",
	} {
		if got := p.FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
	if err := (Params{}).Validate(); err == nil {
		t.Fatal("zero params validated")
	}
}

func TestClassify(t *testing.T) {
	for _, tt := range []struct {
		err  error
		code uint32
		kind Kind
	}{
		{ErrInvalidRewardAmount, ErrInvalidRewardAmount.Code, KindValidation},
		{wrap(ErrBountyAlreadyRewarded, "x"), ErrBountyAlreadyRewarded.Code, KindState},
		{ErrNotAuthorizedForBounty, ErrNotAuthorizedForBounty.Code, KindAuthorization},
		{ErrInsufficientBalance, ErrInsufficientBalance.Code, KindResource},
		{errors.New("disk on fire"), 1, KindInternal},
	} {
		code, kind := Classify(tt.err)
		if code != tt.code || kind != tt.kind {
			t.Errorf("Classify(%v) = %d/%v, want %d/%v", tt.err, code, kind, tt.code, tt.kind)
		}
	}
}
