package password

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if strings.Contains(hash, "s3cret-pass") {
		t.Fatal("hash contains the plaintext password")
	}

	ok, err := Verify(hash, "s3cret-pass")
	if err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v; want true, nil", ok, err)
	}
	ok, err = Verify(hash, "wrong-pass")
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v; want false, nil", ok, err)
	}

	other, err := Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if other == hash {
		t.Error("two hashes of the same password must use different salts")
	}
}

func TestVerifyInvalidHash(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"plaintext", "password123", ErrInvalidHash},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$a2V5", ErrInvalidHash},
		{"wrong version", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$a2V5", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$memory$c2FsdA$a2V5", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=65536,t=1,p=4$!!!$a2V5", ErrInvalidHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Verify(tt.encoded, "anything")
			if ok {
				t.Error("Verify must fail")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
