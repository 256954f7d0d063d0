package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer = "26785a09-ab16-4eb0-8407-a37497a57506"
	testSecret = "3d844edf-8d35-48ac-975b-e847b4f122b0"
)

func TestCreateToken_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)

	token, err := CreateToken(testSecret, testIssuer, now)
	require.NoError(t, err)

	claims, err := DecodeToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.True(t, now.Equal(claims.IssuedAt))
}

func TestCreateToken_Header(t *testing.T) {
	token, err := CreateToken(testSecret, testIssuer, time.Now())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)

	var header map[string]string
	require.NoError(t, json.Unmarshal(raw, &header))
	assert.Equal(t, "HS256", header["alg"])
	assert.Equal(t, "JWT", header["typ"])
}

func TestCreateToken_MissingIssuer(t *testing.T) {
	_, err := CreateToken(testSecret, "", time.Now())
	assert.ErrorIs(t, err, ErrMissingIssuer)
}

func TestDecodeToken_Rejects(t *testing.T) {
	valid, err := CreateToken(testSecret, testIssuer, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "not-the-secret"},
		{"garbage", "not.a.token", testSecret},
		{"empty", "", testSecret},
		{"unsigned", "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJpc3MiOiJ4In0.", testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeToken(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}
