package testutil

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/authorizerdev/authorizer-go"
)

func randInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// GeneratePassword produces a password satisfying the Authorizer's
// complexity rules.
func GeneratePassword() string {
	const (
		lower   = "abcdefghijklmnopqrstuvwxyz"
		upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
		special = "!@#$%^&*"
		numbers = "0123456789"
		all     = lower + upper + special + numbers
	)

	password := make([]byte, 10)
	password[0] = upper[randInt(len(upper))]
	password[1] = special[randInt(len(special))]
	password[2] = numbers[randInt(len(numbers))]

	for i := 3; i < 10; i++ {
		password[i] = all[randInt(len(all))]
	}

	for i := range password {
		j := randInt(len(password))
		password[i], password[j] = password[j], password[i]
	}

	return string(password)
}

// AcquireAccount signs up (or reuses) an Authorizer account with the given
// roles and returns an access token.
func AcquireAccount(t *testing.T, authzURL, email, password string, roles []string) string {
	client, err := authorizer.NewAuthorizerClient("test_client", authzURL, "", nil)
	if err != nil {
		t.Fatalf("Failed to create authorizer client: %v", err)
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	signupReq := &authorizer.SignUpInput{
		Email:           &email,
		Password:        password,
		ConfirmPassword: password,
		Roles:           rolesPtrs,
	}

	if _, err = client.SignUp(signupReq); err != nil {
		// The account may already exist from a prior run; login decides.
		t.Logf("Signup failed (might already exist): %v", err)
	}

	loginReq := &authorizer.LoginInput{
		Email:    &email,
		Password: password,
	}

	res, err := client.Login(loginReq)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if res.AccessToken == nil {
		t.Fatal("Access token is nil")
	}

	return *res.AccessToken
}
