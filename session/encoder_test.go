package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authgate/identity"
)

func TestEncodeDecodeKeepsFields(t *testing.T) {
	in := &Session{
		ID:          "ignored",
		AccessToken: strings.Repeat("t", 2048),
		Username:    "alice",
		Role:        identity.RoleUser,
		CreatedAt:   time.Unix(1700000000, 0),
		ExpiresAt:   time.Unix(1700028800, 0),
	}

	data, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, byte(CurrentSchemaVersion), data[0])

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, out.ID)
	assert.Equal(t, in.AccessToken, out.AccessToken)
	assert.Equal(t, in.Username, out.Username)
	assert.Equal(t, in.Role, out.Role)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported session schema version")
}

func TestDecodeRejectsUnknownRole(t *testing.T) {
	data, err := Encode(&Session{Username: "alice", Role: "owner", AccessToken: "abc"})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.Error(t, err)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Encode(&Session{Username: "alice", Role: identity.RoleAdmin, AccessToken: "abc"})
	require.NoError(t, err)

	_, err = Decode(append(data, 0))
	assert.Error(t, err)
	_, err = Decode(data[:len(data)-1])
	assert.Error(t, err)
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	_, err := Encode(&Session{Username: strings.Repeat("u", 256), Role: identity.RoleAdmin})
	assert.Error(t, err)
	_, err = Encode(&Session{Username: "alice", Role: identity.RoleAdmin, AccessToken: strings.Repeat("t", 1<<16)})
	assert.Error(t, err)
	_, err = Encode(nil)
	assert.Error(t, err)
}
