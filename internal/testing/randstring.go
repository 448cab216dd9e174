package testing

import (
	"math/rand"
	"strings"
)

const charSet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandString generates random string with 10 symbols length from lower- and uppercase alphabet.
// Used for usernames and message bodies that must not collide between test runs sharing a database.
func RandString() string {
	return RandStringN(10)
}

// RandStringN generates random string with n symbols length
func RandStringN(n int) string {
	var out strings.Builder
	out.Grow(n)
	for i := 0; i < n; i++ {
		out.WriteByte(charSet[rand.Intn(len(charSet))])
	}
	return out.String()
}
