package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tokoban/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	assert.Error(t, validateSecurityConfig(config.Config{AuthSecret: "short"}))
	assert.Error(t, validateSecurityConfig(config.Config{
		AuthSecret:        "0123456789abcdef0123456789abcdef",
		SeedAdminPassword: "admin123",
	}))
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	assert.NoError(t, validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"}))
	assert.NoError(t, validateSecurityConfig(config.Config{
		AuthSecret:        "0123456789abcdef0123456789abcdef",
		SeedAdminPassword: "ban-motor-2026!",
	}))
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := map[string]bool{
		"short":     false,
		"aaaaaaaa":  false,
		"abcdefgh":  false,
		"87654321":  false,
		"Password":  false,
		"t1r3-sh0p": true,
	}
	for password, ok := range cases {
		err := validatePasswordStrength(password)
		if ok {
			assert.NoError(t, err, password)
		} else {
			assert.Error(t, err, password)
		}
	}
}
