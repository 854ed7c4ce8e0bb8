package utils

import (
	"testing"

	"go-userapi/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestMaskConnString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "--- EMPTY ---"},
		{"postgres url", "postgres://app:s3cret@db:5432/users?sslmode=disable", "postgres://app:***MASKED***@db:5432/users?sslmode=disable"},
		{"url without password", "postgres://app@db:5432/users", "postgres://app@db:5432/users"},
		{"oracle easy connect", "scott/tiger@dbhost:1521/ORCLPDB1", "scott/***MASKED***@dbhost:1521/ORCLPDB1"},
		{"no credentials", "./data/users.db", "./data/users.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskConnString(tt.in))
		})
	}
}

func TestMaskJWTSecret(t *testing.T) {
	assert.Contains(t, MaskJWTSecret(""), "EMPTY")
	assert.Contains(t, MaskJWTSecret(config.DefaultJWTSecret), "default")
	assert.Equal(t, "*** MASKED (short: 3 chars) ***", MaskJWTSecret("abc"))
	assert.Equal(t, "*** MASKED ***", MaskJWTSecret("a-long-enough-secret"))
}
